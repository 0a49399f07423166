package main

import (
	"log/slog"
	"os"

	"github.com/verikit/verikit/internal/admission"
	"github.com/verikit/verikit/internal/build"
	"github.com/verikit/verikit/internal/config"
	"github.com/verikit/verikit/internal/env"
	"github.com/verikit/verikit/internal/history"
	"github.com/verikit/verikit/internal/orchestrator"
	"github.com/verikit/verikit/internal/repo"
	"github.com/verikit/verikit/internal/stimulus"
	"github.com/verikit/verikit/internal/suite"
)

// app bundles the wired services behind one config.
type app struct {
	cfg       config.Config
	log       *slog.Logger
	repos     *repo.Registry
	checkout  *repo.Coordinator
	builds    *build.Registry
	buildSvc  *build.Service
	buildEnvs *env.BuildRegistry
	exeEnvs   *env.ExeRegistry
	envs      *env.Manager
	stimuli   *stimulus.Registry
	acquirer  *stimulus.Acquirer
	suites    *suite.Loader
	history   *history.Manager
	admit     admission.Controller
}

func newApp(cfg config.Config) (*app, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	repos, err := repo.OpenRegistry(cfg.ReposFile)
	if err != nil {
		return nil, err
	}
	checkout := repo.NewCoordinator(repos, repo.Options{
		Root: cfg.WorkspaceDir,
		Log:  log,
	})

	builds, err := build.OpenRegistry(cfg.BuildsFile)
	if err != nil {
		return nil, err
	}
	buildSvc := build.NewService(build.Options{
		Registry: builds,
		Repos:    repos,
		Checkout: checkout,
		Log:      log,
	})

	buildEnvs, err := env.OpenBuildRegistry(cfg.EnvsFile)
	if err != nil {
		return nil, err
	}
	exeEnvs, err := env.OpenExeRegistry(cfg.EnvsFile)
	if err != nil {
		return nil, err
	}

	stimuli, err := stimulus.OpenRegistry(cfg.StimuliFile)
	if err != nil {
		return nil, err
	}

	var admit admission.Controller
	switch cfg.Resource.Mode {
	case config.ResourceAPI:
		admit = admission.NewAPIQueried(cfg.Resource.APIURL, nil, log)
	default:
		admit = admission.NewSelfManaged(cfg.Resource.Capacity, log)
	}

	return &app{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		checkout:  checkout,
		builds:    builds,
		buildSvc:  buildSvc,
		buildEnvs: buildEnvs,
		exeEnvs:   exeEnvs,
		envs:      env.NewManager(buildEnvs, exeEnvs, log),
		stimuli:   stimuli,
		acquirer: stimulus.NewAcquirer(stimulus.Options{
			Registry: stimuli,
			Checkout: checkout,
			Log:      log,
		}),
		suites:  suite.NewLoader(cfg.SuiteDir),
		history: history.NewManager(cfg.HistoryFile, log),
		admit:   admit,
	}, nil
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Suites:    a.suites,
		Envs:      a.envs,
		Repos:     a.checkout,
		Builds:    a.buildSvc,
		Stimuli:   a.acquirer,
		History:   a.history,
		Admission: a.admit,
		Log:       a.log,
	})
}
