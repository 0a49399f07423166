package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verikit/verikit/internal/fault"
)

func writeSuite(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "regression", `
testcases:
  - name: smoke
    args:
      cmd: run_sim --top smoke
    timeout: 120
    tags: [sanity]
  - name: full
    args:
      cmd: run_sim --top full
`)
	cases, err := NewLoader(dir).Load("regression")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].Command() != "run_sim --top smoke" || cases[0].Timeout != 120 {
		t.Fatalf("unexpected first case: %+v", cases[0])
	}
	if cases[1].Timeout != 3600 {
		t.Fatalf("expected default timeout, got %d", cases[1].Timeout)
	}
}

func TestLoaderMissingSuite(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("nope")
	if !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLoaderRejectsUnnamedCase(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "broken", "testcases:\n  - args:\n      cmd: ls\n")
	_, err := NewLoader(dir).Load("broken")
	if !fault.IsValidation(err) {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestLoaderDiscover(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "b_suite", "testcases: []\n")
	writeSuite(t, dir, "a_suite", "testcases: []\n")
	names, err := NewLoader(dir).Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(names) != 2 || names[0] != "a_suite" || names[1] != "b_suite" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestSummarize(t *testing.T) {
	tasks := []TaskResult{
		{Name: "a", Status: StatusPassed},
		{Name: "b", Status: StatusFailed},
		{Name: "c", Status: StatusError},
		{Name: "d", Status: StatusSkipped},
	}
	res := Summarize(tasks, "regression", "eda-farm", "snap-1")
	if res.Total != 4 || res.Passed != 1 || res.Failed != 1 || res.Errors != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if res.Success() {
		t.Fatal("result with failures must not be successful")
	}
	if !Summarize(nil, "empty", "", "").Success() {
		t.Fatal("empty result should count as success")
	}
}

func TestInjectParams(t *testing.T) {
	cases := []Case{{
		Name:   "smoke",
		Args:   map[string]string{"cmd": "run_sim --seed {seed} --top {top}"},
		Params: map[string]string{"top": "soc"},
	}}
	injected := InjectParams(cases, map[string]string{"seed": "42"})
	if got := injected[0].Command(); got != "run_sim --seed 42 --top soc" {
		t.Fatalf("unexpected expanded command: %q", got)
	}
	// the original slice must stay untouched
	if cases[0].Command() != "run_sim --seed {seed} --top {top}" {
		t.Fatalf("input mutated: %q", cases[0].Command())
	}
	if injected[0].Params["seed"] != "42" || injected[0].Params["top"] != "soc" {
		t.Fatalf("params not merged: %v", injected[0].Params)
	}
}

func TestFilterByNameAndTag(t *testing.T) {
	cases := []Case{
		{Name: "uart_smoke", Tags: []string{"sanity"}},
		{Name: "uart_stress", Tags: []string{"stress"}},
		{Name: "ddr_smoke", Tags: []string{"sanity"}},
	}
	names, err := Compile([]string{"/^uart/"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	tags, err := Compile([]string{"sanity"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := Filter(cases, names, tags)
	if len(got) != 1 || got[0].Name != "uart_smoke" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if all := Filter(cases, nil, nil); len(all) != 3 {
		t.Fatalf("no patterns must keep everything, got %d", len(all))
	}
}

func TestCompileRejectsBadRegex(t *testing.T) {
	if _, err := Compile([]string{"/([/"}); err == nil {
		t.Fatal("expected regexp compile error")
	}
}
