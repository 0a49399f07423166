// Package orchestrator drives a full verification run through its fixed
// step sequence: environment provisioning, source checkout, design
// builds, stimulus acquisition, case execution, result collection, and a
// teardown that runs no matter how far the pipeline got.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/verikit/verikit/internal/admission"
	"github.com/verikit/verikit/internal/build"
	"github.com/verikit/verikit/internal/env"
	"github.com/verikit/verikit/internal/history"
	"github.com/verikit/verikit/internal/repo"
	"github.com/verikit/verikit/internal/scheduler"
	"github.com/verikit/verikit/internal/shell"
	"github.com/verikit/verikit/internal/stimulus"
	"github.com/verikit/verikit/internal/suite"
)

// Pipeline step names, in execution order.
const (
	StepProvision = "provision_env"
	StepCheckout  = "checkout"
	StepBuild     = "build"
	StepStimuli   = "acquire_stimuli"
	StepExecute   = "execute"
	StepCollect   = "collect"
	StepTeardown  = "teardown"
)

// Step record statuses.
const (
	StepDone    = "done"
	StepError   = "error"
	StepSkipped = "skipped"
)

// StepRecord is the outcome of one pipeline step.
type StepRecord struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full outcome of one orchestrated run. Steps always holds
// exactly one record per pipeline step, teardown last; steps the pipeline
// never reached are recorded as skipped. Result stays nil when the
// execute step never produced a suite outcome.
type Report struct {
	RunID  string        `json:"run_id"`
	Suite  string        `json:"suite"`
	Steps  []StepRecord  `json:"steps"`
	Result *suite.Result `json:"result,omitempty"`
}

// Success reports whether a suite outcome exists with no failed and no
// errored cases. Collect and teardown hiccups never mask a clean run.
func (r Report) Success() bool {
	return r.Result != nil && r.Result.Success()
}

// Plan names everything one run needs.
type Plan struct {
	Suite    string
	Filters  []string // case name patterns
	Tags     []string // case tag patterns
	BuildEnv string
	ExeEnv   string
	Repos    []string
	Builds   []string
	Stimuli  []string
	Params   map[string]string
	Ref      string // ref override applied to checkouts and builds
	Workers  int
}

// BuildRunner runs registered builds; satisfied by build.Service.
type BuildRunner interface {
	Run(ctx context.Context, name string, opts build.RunOptions) (build.Result, error)
}

// Acquirer materializes stimuli; satisfied by stimulus.Acquirer.
type Acquirer interface {
	Acquire(ctx context.Context, name string) (stimulus.Acquisition, error)
}

// Checkouter materializes repo workspaces; satisfied by repo.Coordinator.
type Checkouter interface {
	Checkout(ctx context.Context, name string, opts repo.CheckoutOptions) (*repo.Workspace, error)
}

// Options wire an Orchestrator to its collaborators. Envs and Suites are
// required; the rest degrade to skipped steps when absent.
type Options struct {
	Suites    *suite.Loader
	Envs      *env.Manager
	Repos     Checkouter
	Builds    BuildRunner
	Stimuli   Acquirer
	History   *history.Manager
	Admission admission.Controller
	Executor  shell.Executor
	Log       *slog.Logger
}

// Orchestrator executes run plans.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Executor == nil {
		opts.Executor = shell.Local{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Orchestrator{opts: opts}
}

// run carries the state threaded through the steps of one plan.
type run struct {
	plan    Plan
	report  *Report
	session *env.Session
	repos   map[string]*repo.Workspace
	builds  map[string]build.Result
	stimuli map[string]stimulus.Acquisition
	halted  bool
}

func (r *run) record(step, status, detail string) {
	r.report.Steps = append(r.report.Steps, StepRecord{Step: step, Status: status, Detail: detail})
}

func (r *run) fail(step, detail string) {
	r.record(step, StepError, detail)
	r.halted = true
}

// Run executes the plan. The returned report always carries one record
// per pipeline step; teardown runs even when an earlier step fails.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (report Report) {
	r := &run{
		plan: plan,
		report: &Report{
			RunID: uuid.NewString()[:8],
			Suite: plan.Suite,
		},
		repos:   map[string]*repo.Workspace{},
		builds:  map[string]build.Result{},
		stimuli: map[string]stimulus.Acquisition{},
	}
	o.opts.Log.Info("run start", "run_id", r.report.RunID, "suite", plan.Suite)

	defer func() {
		o.teardown(r)
		report = *r.report
	}()

	steps := []struct {
		name string
		fn   func(context.Context, *run)
	}{
		{StepProvision, o.provision},
		{StepCheckout, o.checkout},
		{StepBuild, o.build},
		{StepStimuli, o.acquireStimuli},
		{StepExecute, o.execute},
		{StepCollect, o.collect},
	}
	for _, step := range steps {
		if r.halted {
			r.record(step.name, StepSkipped, "not reached")
			continue
		}
		step.fn(ctx, r)
	}
	return
}

func (o *Orchestrator) provision(_ context.Context, r *run) {
	if r.plan.BuildEnv == "" && r.plan.ExeEnv == "" {
		r.record(StepProvision, StepSkipped, "no environment requested")
		return
	}
	session, err := o.opts.Envs.Apply(env.ApplyOptions{
		BuildEnv: r.plan.BuildEnv,
		ExeEnv:   r.plan.ExeEnv,
	})
	if err != nil {
		r.fail(StepProvision, err.Error())
		return
	}
	r.session = session
	r.record(StepProvision, StepDone, "session "+session.ID)
}

func (o *Orchestrator) checkout(ctx context.Context, r *run) {
	if len(r.plan.Repos) == 0 {
		r.record(StepCheckout, StepSkipped, "no repos requested")
		return
	}
	if o.opts.Repos == nil {
		r.fail(StepCheckout, "no checkout coordinator configured")
		return
	}
	var statuses []string
	for _, name := range r.plan.Repos {
		ws, err := o.opts.Repos.Checkout(ctx, name, repo.CheckoutOptions{RefOverride: r.plan.Ref})
		if err != nil {
			r.fail(StepCheckout, fmt.Sprintf("repo %q: %v", name, err))
			return
		}
		if ws.Status == repo.StatusError {
			o.opts.Log.Warn("checkout failed", "repo", name, "detail", ws.Message)
		}
		r.repos[name] = ws
		statuses = append(statuses, name+"="+ws.Status)
	}
	r.record(StepCheckout, StepDone, strings.Join(statuses, " "))
}

func (o *Orchestrator) build(ctx context.Context, r *run) {
	if len(r.plan.Builds) == 0 {
		r.record(StepBuild, StepSkipped, "no builds requested")
		return
	}
	if o.opts.Builds == nil {
		r.fail(StepBuild, "no build service configured")
		return
	}
	runOpts := build.RunOptions{RefOverride: r.plan.Ref}
	if r.session != nil {
		runOpts.Env = r.session.Vars
	}
	cached := 0
	var statuses []string
	for _, name := range r.plan.Builds {
		res, err := o.opts.Builds.Run(ctx, name, runOpts)
		if err != nil {
			r.fail(StepBuild, fmt.Sprintf("build %q: %v", name, err))
			return
		}
		if !res.OK() {
			o.opts.Log.Warn("build failed", "build", name, "detail", res.Message)
		}
		if res.Cached {
			cached++
		}
		r.builds[name] = res
		statuses = append(statuses, name+"="+res.Status)
	}
	detail := strings.Join(statuses, " ")
	if cached > 0 {
		detail += fmt.Sprintf(", %d cached", cached)
	}
	r.record(StepBuild, StepDone, detail)
}

func (o *Orchestrator) acquireStimuli(ctx context.Context, r *run) {
	if len(r.plan.Stimuli) == 0 {
		r.record(StepStimuli, StepSkipped, "no stimuli requested")
		return
	}
	if o.opts.Stimuli == nil {
		r.fail(StepStimuli, "no stimulus acquirer configured")
		return
	}
	var statuses []string
	for _, name := range r.plan.Stimuli {
		acq, err := o.opts.Stimuli.Acquire(ctx, name)
		if err != nil {
			r.fail(StepStimuli, fmt.Sprintf("stimulus %q: %v", name, err))
			return
		}
		if acq.Status != stimulus.StatusReady {
			o.opts.Log.Warn("stimulus acquisition failed", "stimulus", name, "detail", acq.Message)
		}
		r.stimuli[name] = acq
		statuses = append(statuses, name+"="+acq.Status)
	}
	r.record(StepStimuli, StepDone, strings.Join(statuses, " "))
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	cases, err := o.opts.Suites.Load(r.plan.Suite)
	if err != nil {
		r.fail(StepExecute, err.Error())
		return
	}
	if len(r.plan.Filters) > 0 || len(r.plan.Tags) > 0 {
		namePats, err := suite.Compile(r.plan.Filters)
		if err != nil {
			r.fail(StepExecute, err.Error())
			return
		}
		tagPats, err := suite.Compile(r.plan.Tags)
		if err != nil {
			r.fail(StepExecute, err.Error())
			return
		}
		cases = suite.Filter(cases, namePats, tagPats)
	}
	if len(cases) == 0 {
		r.record(StepExecute, StepSkipped, "no cases matched")
		res := suite.Summarize(nil, r.plan.Suite, r.plan.ExeEnv, r.snapshotID())
		r.report.Result = &res
		return
	}
	cases = suite.InjectParams(cases, o.runParams(r))

	var overlay map[string]string
	var workDir string
	if r.session != nil {
		overlay = r.session.Vars
		workDir = r.session.WorkDir
	}
	sched := scheduler.New(scheduler.Options{
		Workers:   r.plan.Workers,
		Admission: o.opts.Admission,
		Executor:  o.opts.Executor,
		WorkDir:   workDir,
		Env:       overlay,
		Log:       o.opts.Log,
	})
	tasks := sched.RunAll(ctx, cases)
	res := suite.Summarize(tasks, r.plan.Suite, r.plan.ExeEnv, r.snapshotID())
	r.report.Result = &res
	r.record(StepExecute, StepDone, fmt.Sprintf("%d passed, %d failed, %d errors of %d",
		res.Passed, res.Failed, res.Errors, res.Total))
}

// runParams augments the plan parameters with paths resolved by earlier
// steps so case commands can reference them as placeholders.
func (o *Orchestrator) runParams(r *run) map[string]string {
	params := map[string]string{}
	for k, v := range r.plan.Params {
		params[k] = v
	}
	for name, res := range r.builds {
		if res.OK() {
			params["build."+name] = res.OutputPath
		}
	}
	for name, ws := range r.repos {
		if ws.Status != repo.StatusError {
			params["repo."+name] = ws.LocalPath
		}
	}
	for name, acq := range r.stimuli {
		if acq.Status == stimulus.StatusReady {
			params["stimulus."+name] = acq.LocalPath
		}
	}
	return params
}

func (r *run) snapshotID() string {
	var revs []string
	for _, name := range r.plan.Repos {
		if ws, ok := r.repos[name]; ok && ws.Revision != "" {
			revs = append(revs, ws.Revision)
		}
	}
	return strings.Join(revs, "+")
}

func (o *Orchestrator) collect(_ context.Context, r *run) {
	if r.report.Result == nil {
		r.record(StepCollect, StepSkipped, "no results")
		return
	}
	if o.opts.History == nil {
		r.record(StepCollect, StepSkipped, "no history store configured")
		return
	}
	rec, err := o.opts.History.Append(*r.report.Result, r.plan.Params)
	if err != nil {
		r.record(StepCollect, StepError, err.Error())
		return
	}
	r.record(StepCollect, StepDone, "recorded as "+rec.RunID)
}

// teardown releases the session and always appends the final step record.
// Release failures are logged and recorded, never propagated; a crashed
// pipeline still ends with its environment let go.
func (o *Orchestrator) teardown(r *run) {
	if r.session == nil {
		r.record(StepTeardown, StepDone, "nothing to release")
		return
	}
	if err := o.opts.Envs.Release(r.session.ID); err != nil {
		o.opts.Log.Warn("teardown release failed", "session", r.session.ID, "err", err)
		r.record(StepTeardown, StepError, err.Error())
		return
	}
	r.record(StepTeardown, StepDone, "session "+r.session.ID+" released")
}
