package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/compose"
	"photobooth/internal/config"
	"photobooth/internal/export"
	"photobooth/internal/fsutil"
	"photobooth/internal/logging"
	"photobooth/internal/pipeline"
	"photobooth/internal/server"
	"photobooth/internal/session"
	"photobooth/internal/storage"
	"photobooth/internal/watch"
	"photobooth/internal/web"
)

// Version is the photobooth release.
const Version = "0.3.0"

type pipelineClient interface {
	Submit(job pipeline.Job) error
	Subscribe() (<-chan pipeline.Result, func())
}

type serverFunc func(ctx context.Context, r *Root, addr, watchDir string) error

type watchFunc func(ctx context.Context, dir string, settle time.Duration, submit watch.Submitter, log *slog.Logger) error

// Root wires CLI commands to the pipeline and the booth.
type Root struct {
	pipeline pipelineClient
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.Store
	device   camera.Device
	out      io.Writer
	serveFn  serverFunc
	watchFn  watchFunc

	configPath string
	closers    []func()
}

// NewRoot returns an unconfigured root. Setup runs before the first command.
func NewRoot() *Root {
	return &Root{
		out:     os.Stdout,
		serveFn: defaultServe,
		watchFn: defaultWatch,
	}
}

// Setup loads configuration and starts the store, camera and pipeline.
func (r *Root) Setup(ctx context.Context) error {
	if r.cfg != nil {
		return nil
	}
	load := config.Load
	if r.configPath != "" {
		load = func() (*config.Config, error) { return config.LoadFile(r.configPath) }
	}
	cfg, err := load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	store, err := storage.New()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var dev camera.Device
	dev, err = camera.New(cfg.Camera.Device, cfg.Camera.Source)
	logging.LogDeviceStatus(logger, cfg.Camera.Device, cfg.Camera.Source, err)
	if err != nil {
		dev = camera.Unavailable{Err: err}
	}

	pipe := pipeline.New(ctx, cfg, logger, store, dev)
	r.cfg, r.log, r.store, r.device, r.pipeline = cfg, logger, store, dev, pipe
	r.closers = append(r.closers, pipe.Stop, func() { store.Close() })
	return nil
}

// Close stops everything Setup started.
func (r *Root) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// stripRequest is what the strip, capture and watch commands share.
type stripRequest struct {
	mode       string
	background string
	frame      string
	note       string
	date       bool
	zoom       float64
	output     string
}

func (s stripRequest) options() map[string]any {
	opts := map[string]any{
		"background": s.background,
		"frame":      s.frame,
		"note":       s.note,
		"date":       s.date,
		"source":     "cli",
	}
	if s.zoom != 0 {
		opts["zoom"] = s.zoom
	}
	return opts
}

func (r *Root) outputDir(req stripRequest) string {
	if req.output != "" {
		return req.output
	}
	return r.cfg.Paths.OutputDir
}

func (r *Root) cmdStrip(ctx context.Context, req stripRequest, paths []string) error {
	mode, err := session.ParseMode(req.mode)
	if err != nil {
		return err
	}
	if len(paths) != session.RequiredPhotos {
		return fmt.Errorf("%w: got %d files", session.ErrInvalidUploadCount, len(paths))
	}
	job := pipeline.Job{
		ID:      pipeline.NewID("strip"),
		Type:    pipeline.JobStrip,
		Mode:    mode,
		Output:  r.outputDir(req),
		Options: req.options(),
	}
	for _, p := range paths {
		job.Inputs = append(job.Inputs, pipeline.Input{Path: p})
	}
	res, err := r.enqueueAndWait(ctx, job)
	if err != nil {
		return err
	}
	r.report(res)
	return nil
}

func (r *Root) cmdCapture(ctx context.Context, req stripRequest) error {
	mode, err := session.ParseMode(req.mode)
	if err != nil {
		return err
	}
	job := pipeline.Job{
		ID:      pipeline.NewID("capture"),
		Type:    pipeline.JobCapture,
		Mode:    mode,
		Output:  r.outputDir(req),
		Options: req.options(),
	}
	res, err := r.enqueueAndWait(ctx, job)
	if err != nil {
		return err
	}
	r.report(res)
	return nil
}

func (r *Root) cmdServe(ctx context.Context, addr, watchDir string) error {
	if addr == "" {
		addr = r.cfg.Server.Addr
	}
	return r.serveFn(ctx, r, addr, watchDir)
}

// cmdWatch submits a strip job for every four images dropped into dir and
// logs each finished strip until ctx is done.
func (r *Root) cmdWatch(ctx context.Context, req stripRequest, dir string) error {
	mode, err := session.ParseMode(req.mode)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = r.cfg.Paths.WatchDir
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}

	results, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	go func() {
		for res := range results {
			if res.Error != nil {
				r.log.Error("hot folder strip failed", "job", res.Job.ID, "error", res.Error)
				continue
			}
			r.report(res)
		}
	}()

	settle := time.Duration(r.cfg.Processing.WatchSettleMS) * time.Millisecond
	return r.watchFn(ctx, dir, settle, r.submitBatch(mode, req), r.log)
}

func (r *Root) submitBatch(mode session.Mode, req stripRequest) watch.Submitter {
	return func(ctx context.Context, paths []string) error {
		job := pipeline.Job{
			ID:      pipeline.NewID("watch"),
			Type:    pipeline.JobStrip,
			Mode:    mode,
			Output:  r.outputDir(req),
			Options: req.options(),
		}
		for _, p := range paths {
			job.Inputs = append(job.Inputs, pipeline.Input{Path: p})
		}
		return r.enqueue(ctx, job)
	}
}

func (r *Root) report(res pipeline.Result) {
	if res.Artifact == nil {
		return
	}
	out, _ := res.Meta["output"].(string)
	if out == "" {
		out = res.Artifact.Filename
	}
	fmt.Fprintf(r.out, "%s (%dx%d, %s)\n", out, res.Artifact.Width, res.Artifact.Height, humanize.Bytes(uint64(len(res.Artifact.Data))))
}

func (r *Root) enqueueAndWait(ctx context.Context, job pipeline.Job) (pipeline.Result, error) {
	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	if err := r.enqueue(ctx, job); err != nil {
		return pipeline.Result{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return pipeline.Result{}, ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return pipeline.Result{}, errors.New("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				return res, res.Error
			}
		}
	}
}

func (r *Root) enqueue(ctx context.Context, job pipeline.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.pipeline.Submit(job); err != nil {
		return err
	}

	r.log.Info("job queued", "type", job.Type, "id", job.ID, "mode", job.Mode, "inputs", len(job.Inputs))
	return nil
}

func defaultServe(ctx context.Context, r *Root, addr, watchDir string) error {
	pipe, ok := r.pipeline.(*pipeline.Pipeline)
	if !ok {
		return fmt.Errorf("pipeline does not support server operation")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := web.NewHub(r.log)
	go hub.Run(ctx)

	enc, err := export.LookupEncoder(r.cfg.Booth.Encoder)
	if err != nil {
		r.log.Warn("encoder not available, using default", "encoder", r.cfg.Booth.Encoder, "error", err)
		enc, _ = export.LookupEncoder(export.DefaultEncoder)
	}
	b := booth.New(hub, r.device,
		booth.WithLogger(r.log),
		booth.WithStore(r.store),
		booth.WithCaptureQuality(r.cfg.Booth.CaptureQuality),
		booth.WithCropQuality(r.cfg.Booth.CropQuality),
		booth.WithExporter(export.New(r.cfg.Booth.Brand,
			export.WithQuality(r.cfg.Booth.ExportQuality),
			export.WithEncoder(enc),
			export.WithLogger(r.log),
		)),
		booth.WithDefaults(compose.Options{
			Background: r.cfg.Strip.VintageBackground,
			Frame:      r.cfg.Strip.ModernFrame,
		}),
	)
	defer b.Close()
	b.GoHome()

	if watchDir != "" {
		req := stripRequest{mode: string(session.Modern)}
		settle := time.Duration(r.cfg.Processing.WatchSettleMS) * time.Millisecond
		go func() {
			if err := r.watchFn(ctx, watchDir, settle, r.submitBatch(session.Modern, req), r.log); err != nil {
				r.log.Error("hot folder stopped", "dir", watchDir, "error", err)
			}
		}()
	}

	srv := server.NewServer(addr, b, hub, r.store, pipe, r.log)
	r.log.Info("kiosk ready",
		"addr", addr,
		"endpoints", []string{"/healthz", "/ws", "/api/status", "/api/strips", "/api/jobs", "/stream"},
	)
	return srv.Start(ctx)
}

func defaultWatch(ctx context.Context, dir string, settle time.Duration, submit watch.Submitter, log *slog.Logger) error {
	return watch.New(dir, settle, submit, log).Run(ctx)
}
