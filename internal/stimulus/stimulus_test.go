package stimulus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/repo"
	"github.com/verikit/verikit/internal/shell"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, specs ...Spec) *Registry {
	t.Helper()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "stimuli.yml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, spec := range specs {
		if err := reg.Put(spec); err != nil {
			t.Fatalf("put %q: %v", spec.Name, err)
		}
	}
	return reg
}

func sha256Hex(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func TestAcquireStored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.hex")
	if err := os.WriteFile(path, []byte("deadbeef"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newTestRegistry(t, Spec{Name: "boot", Source: SourceStored, Path: path})
	acq := NewAcquirer(Options{Registry: reg, Root: dir, Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "boot")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.Message)
	}
	if got.Checksum != sha256Hex("deadbeef") {
		t.Fatalf("checksum = %q", got.Checksum)
	}
}

func TestAcquireChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.hex")
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newTestRegistry(t, Spec{
		Name:     "boot",
		Source:   SourceStored,
		Path:     path,
		Checksum: sha256Hex("deadbeef"),
	})
	acq := NewAcquirer(Options{Registry: reg, Root: dir, Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "boot")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusError {
		t.Fatalf("status = %q, want error on mismatch", got.Status)
	}
	if !strings.Contains(got.Message, "checksum mismatch") {
		t.Fatalf("message = %q", got.Message)
	}
}

// writingExec fakes a generator by creating the output file it was asked
// to produce.
type writingExec struct {
	body   string
	result shell.Result
	calls  int
}

func (w *writingExec) Execute(_ context.Context, cmd shell.Command) (shell.Result, error) {
	w.calls++
	if w.result.Success() {
		if err := os.WriteFile(filepath.Join(cmd.Dir, "vectors.bin"), []byte(w.body), 0o644); err != nil {
			return shell.Result{ExitCode: 1}, nil
		}
	}
	return w.result, nil
}

func TestAcquireGenerated(t *testing.T) {
	reg := newTestRegistry(t, Spec{
		Name:   "rand-vectors",
		Source: SourceGenerated,
		GenCmd: "vecgen --seed 7",
		Path:   "vectors.bin",
	})
	exec := &writingExec{body: "0101"}
	acq := NewAcquirer(Options{Registry: reg, Executor: exec, Root: t.TempDir(), Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "rand-vectors")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.Message)
	}
	if exec.calls != 1 {
		t.Fatalf("generator ran %d times", exec.calls)
	}
	if got.Checksum != sha256Hex("0101") {
		t.Fatalf("checksum = %q", got.Checksum)
	}
}

func TestAcquireGeneratorFailure(t *testing.T) {
	reg := newTestRegistry(t, Spec{Name: "rand-vectors", Source: SourceGenerated, GenCmd: "vecgen"})
	exec := &writingExec{result: shell.Result{ExitCode: 3, Stderr: "seed exhausted"}}
	acq := NewAcquirer(Options{Registry: reg, Executor: exec, Root: t.TempDir(), Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "rand-vectors")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusError || !strings.Contains(got.Message, "rc=3") {
		t.Fatalf("acquisition = %+v", got)
	}
}

func TestAcquireExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "firmware-image")
	}))
	defer srv.Close()

	reg := newTestRegistry(t, Spec{Name: "fw", Source: SourceExternal, URL: srv.URL + "/fw.bin"})
	acq := NewAcquirer(Options{Registry: reg, Client: srv.Client(), Root: t.TempDir(), Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "fw")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.Message)
	}
	if filepath.Base(got.LocalPath) != "fw.bin" {
		t.Fatalf("local path = %q", got.LocalPath)
	}
	body, err := os.ReadFile(got.LocalPath)
	if err != nil || string(body) != "firmware-image" {
		t.Fatalf("downloaded body = %q, err %v", body, err)
	}
}

func TestAcquireExternalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	reg := newTestRegistry(t, Spec{Name: "fw", Source: SourceExternal, URL: srv.URL + "/fw.bin"})
	acq := NewAcquirer(Options{Registry: reg, Client: srv.Client(), Root: t.TempDir(), Log: quietLog()})

	got, err := acq.Acquire(context.Background(), "fw")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusError || !strings.Contains(got.Message, "status 410") {
		t.Fatalf("acquisition = %+v", got)
	}
}

type stubCheckouter struct {
	ws repo.Workspace
}

func (s *stubCheckouter) Checkout(context.Context, string, repo.CheckoutOptions) (*repo.Workspace, error) {
	ws := s.ws
	return &ws, nil
}

func TestAcquireFromRepo(t *testing.T) {
	wsDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(wsDir, "stim"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, "stim", "sweep.csv"), []byte("a,b"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newTestRegistry(t, Spec{Name: "sweep", Source: SourceRepo, RepoName: "rtl", Path: "stim/sweep.csv"})
	acq := NewAcquirer(Options{
		Registry: reg,
		Checkout: &stubCheckouter{ws: repo.Workspace{LocalPath: wsDir, Status: repo.StatusUpdated}},
		Root:     t.TempDir(),
		Log:      quietLog(),
	})

	got, err := acq.Acquire(context.Background(), "sweep")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.Message)
	}
	if want := filepath.Join(wsDir, "stim", "sweep.csv"); got.LocalPath != want {
		t.Fatalf("local path = %q, want %q", got.LocalPath, want)
	}
}

func TestRegistryValidation(t *testing.T) {
	reg := newTestRegistry(t)
	cases := []Spec{
		{Source: SourceStored, Path: "x"},
		{Name: "a", Source: "ftp"},
		{Name: "b", Source: SourceRepo},
		{Name: "c", Source: SourceGenerated},
		{Name: "d", Source: SourceExternal},
	}
	for _, spec := range cases {
		if err := reg.Put(spec); !fault.IsValidation(err) {
			t.Errorf("Put(%+v) err = %v, want validation", spec, err)
		}
	}
	if _, err := reg.Get("missing"); !fault.IsNotFound(err) {
		t.Errorf("Get(missing) err = %v", err)
	}
}
