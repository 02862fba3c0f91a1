package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photobooth/internal/config"
	"photobooth/internal/export"
	"photobooth/internal/pipeline"
	"photobooth/internal/session"
	"photobooth/internal/watch"
)

func TestCommandsSubmitJobs(t *testing.T) {
	temp := t.TempDir()
	photos := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	for i := range photos {
		photos[i] = filepath.Join(temp, photos[i])
	}

	cases := []struct {
		name       string
		args       []string
		expectType pipeline.JobType
		expectMode session.Mode
		inputs     int
	}{
		{"strip", append([]string{"strip", "--note", "hi", "--date"}, photos...), pipeline.JobStrip, session.Modern, 4},
		{"strip vintage", append([]string{"strip", "-m", "Vintage", "--zoom", "60"}, photos...), pipeline.JobStrip, session.Vintage, 4},
		{"capture", []string{"capture", "--background", "cream"}, pipeline.JobCapture, session.Vintage, 0},
		{"capture modern", []string{"capture", "--mode", "modern"}, pipeline.JobCapture, session.Modern, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, fakePipe, _ := newTestRoot(t)
			if err := execute(root, tc.args...); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if len(fakePipe.jobs) != 1 {
				t.Fatalf("expected one job, got %d", len(fakePipe.jobs))
			}
			job := fakePipe.jobs[0]
			if job.Type != tc.expectType || job.Mode != tc.expectMode || len(job.Inputs) != tc.inputs {
				t.Fatalf("unexpected job %+v", job)
			}
			if job.Output != root.cfg.Paths.OutputDir {
				t.Fatalf("expected default output dir, got %q", job.Output)
			}
		})
	}
}

func TestStripOptionsReachJob(t *testing.T) {
	root, fakePipe, out := newTestRoot(t)
	args := []string{"strip", "--note", "Ana & Luis", "--frame", "mint", "--date", "--zoom", "90", "-o", "/tmp/out", "1.jpg", "2.jpg", "3.jpg", "4.jpg"}
	if err := execute(root, args...); err != nil {
		t.Fatal(err)
	}
	job := fakePipe.jobs[0]
	if job.Options["note"] != "Ana & Luis" || job.Options["frame"] != "mint" || job.Options["date"] != true || job.Options["zoom"] != 90.0 {
		t.Fatalf("unexpected options %v", job.Options)
	}
	if job.Output != "/tmp/out" || job.Inputs[3].Path != "4.jpg" {
		t.Fatalf("unexpected job %+v", job)
	}
	if !strings.Contains(out.String(), "photobooth-1.jpg") {
		t.Fatalf("expected strip reported, got %q", out.String())
	}
}

func TestCommandsValidateArguments(t *testing.T) {
	root, fakePipe, _ := newTestRoot(t)
	err := execute(root, "strip", "a.jpg", "b.jpg", "c.jpg")
	if !errors.Is(err, session.ErrInvalidUploadCount) {
		t.Fatalf("expected ErrInvalidUploadCount, got %v", err)
	}
	if err := execute(root, "capture", "--mode", "sepia"); !errors.Is(err, session.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if err := execute(root, "capture", "extra"); err == nil {
		t.Fatalf("expected error for unexpected argument")
	}
	if len(fakePipe.jobs) != 0 {
		t.Fatalf("no job should be submitted, got %d", len(fakePipe.jobs))
	}
}

func TestEnqueueAndWaitPropagatesErrors(t *testing.T) {
	root, fakePipe, _ := newTestRoot(t)
	job := pipeline.Job{ID: "err-job", Type: pipeline.JobStrip}
	fakePipe.jobErrors["err-job"] = session.ErrDecodeFailure
	if _, err := root.enqueueAndWait(context.Background(), job); !errors.Is(err, session.ErrDecodeFailure) {
		t.Fatalf("expected error from pipeline result, got %v", err)
	}
}

func TestServeCommandUsesInjectedFunction(t *testing.T) {
	root, _, _ := newTestRoot(t)
	var gotAddr, gotWatch string
	root.serveFn = func(ctx context.Context, r *Root, addr, watchDir string) error {
		gotAddr, gotWatch = addr, watchDir
		return nil
	}
	if err := execute(root, "serve", "--watch", "hot"); err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	if gotAddr != root.cfg.Server.Addr || gotWatch != "hot" {
		t.Fatalf("unexpected serve args %q %q", gotAddr, gotWatch)
	}
	if err := execute(root, "serve", "--addr", ":9999"); err != nil {
		t.Fatal(err)
	}
	if gotAddr != ":9999" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
}

func TestWatchCommandSubmitsBatches(t *testing.T) {
	root, fakePipe, _ := newTestRoot(t)
	dir := filepath.Join(t.TempDir(), "hot")
	root.watchFn = func(ctx context.Context, d string, settle time.Duration, submit watch.Submitter, log *slog.Logger) error {
		if d != dir {
			t.Errorf("unexpected dir %s", d)
		}
		if settle != 1500*time.Millisecond {
			t.Errorf("unexpected settle %v", settle)
		}
		return submit(ctx, []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg"})
	}
	if err := execute(root, "watch", "--mode", "vintage", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("watch dir not created: %v", err)
	}
	fakePipe.mu.Lock()
	defer fakePipe.mu.Unlock()
	if len(fakePipe.jobs) != 1 || fakePipe.jobs[0].Mode != session.Vintage || len(fakePipe.jobs[0].Inputs) != 4 {
		t.Fatalf("unexpected jobs %+v", fakePipe.jobs)
	}
}

func TestConfigCommands(t *testing.T) {
	root, _, out := newTestRoot(t)
	if err := execute(root, "config", "show"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Current configuration") || !strings.Contains(out.String(), "Brand: photobooth") {
		t.Fatalf("expected configuration output, got %q", out.String())
	}

	out.Reset()
	if err := execute(root, "config", "show", "--format", "yaml"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "brand: photobooth") {
		t.Fatalf("expected yaml output, got %q", out.String())
	}

	out.Reset()
	if err := execute(root, "config", "validate"); err != nil {
		t.Fatal(err)
	}
	root.cfg.Booth.ExportQuality = 0
	if err := execute(root, "config", "validate"); err == nil {
		t.Fatalf("expected validation error")
	}

	out.Reset()
	if err := execute(root, "version"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Photobooth v"+Version) || !strings.Contains(out.String(), "pattern") {
		t.Fatalf("expected version string, got %q", out.String())
	}
}

func TestSetupLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "booth.yaml")
	yaml := "booth:\n  brand: Summer Fair\nprocessing:\n  parallel_jobs: 1\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	root := NewRoot()
	root.configPath = path
	if err := root.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer root.Close()
	if root.cfg.Booth.Brand != "Summer Fair" || root.cfg.Processing.ParallelJobs != 1 {
		t.Fatalf("config not loaded: %+v", root.cfg.Booth)
	}
	if root.pipeline == nil || root.store == nil || root.device == nil {
		t.Fatalf("setup left components unset")
	}
}

// Test helpers

func execute(root *Root, args ...string) error {
	cmd := NewRootCmd(root)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func newTestRoot(t *testing.T) (*Root, *fakePipeline, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	tmp := t.TempDir()
	cfg.Paths.OutputDir = filepath.Join(tmp, "strips")
	cfg.Paths.WatchDir = filepath.Join(tmp, "hotfolder")

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pipe := newFakePipeline()
	out := &bytes.Buffer{}

	root := &Root{
		pipeline: pipe,
		cfg:      cfg,
		log:      logger,
		out:      out,
		serveFn:  defaultServe,
		watchFn:  defaultWatch,
	}
	return root, pipe, out
}

type fakePipeline struct {
	mu        sync.Mutex
	jobs      []pipeline.Job
	subs      map[int]chan pipeline.Result
	nextSubID int
	jobErrors map[string]error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		subs:      make(map[int]chan pipeline.Result),
		jobErrors: make(map[string]error),
	}
}

func (f *fakePipeline) Submit(job pipeline.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	subs := make([]chan pipeline.Result, 0, len(f.subs))
	for _, ch := range f.subs {
		subs = append(subs, ch)
	}
	err := f.errorFor(job)
	f.mu.Unlock()

	res := pipeline.Result{Job: job, Error: err, Meta: map[string]any{"ok": true}}
	if err == nil {
		res.Artifact = &export.Artifact{ID: "art", Filename: "photobooth-1.jpg", Width: 400, Height: 1205, Data: []byte{1, 2}}
	}
	for _, ch := range subs {
		ch <- res
	}
	return nil
}

func (f *fakePipeline) Subscribe() (<-chan pipeline.Result, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSubID
	f.nextSubID++
	ch := make(chan pipeline.Result, 2)
	f.subs[id] = ch
	unsub := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			close(c)
			delete(f.subs, id)
		}
	}
	return ch, unsub
}

func (f *fakePipeline) errorFor(job pipeline.Job) error {
	if err, ok := f.jobErrors[job.ID]; ok {
		return err
	}
	return nil
}
