package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"photobooth/internal/camera"
	"photobooth/internal/capture"
	"photobooth/internal/clock"
	"photobooth/internal/compose"
	"photobooth/internal/config"
	"photobooth/internal/crop"
	"photobooth/internal/export"
	"photobooth/internal/session"
	"photobooth/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log      *slog.Logger
	store    *storage.Store
	dev      camera.Device
	clock    clock.Clock
	cropFn   cropFunc
	composer stripComposer
	exporter stripExporter
	defaults compose.Options
	zoom     float64

	captureQuality int
	cropQuality    int

	// camMu keeps capture jobs from sharing the camera.
	camMu sync.Mutex
}

type cropFunc func(ctx context.Context, sess *session.Session, uploads []crop.Upload, zoom float64, opts ...crop.Option) error

type stripComposer interface {
	Compose(ctx context.Context, photos [][]byte, spec compose.Spec) (*compose.Strip, error)
}

type stripExporter interface {
	Export(strip *compose.Strip) (*export.Artifact, error)
}

func newRouter(cfg *config.Config, logger *slog.Logger, store *storage.Store, dev camera.Device) *router {
	enc, err := export.LookupEncoder(cfg.Booth.Encoder)
	if err != nil {
		logger.Warn("encoder not available, using default", "encoder", cfg.Booth.Encoder, "error", err)
		enc, _ = export.LookupEncoder(export.DefaultEncoder)
	}
	return &router{
		log:      logger,
		store:    store,
		dev:      dev,
		clock:    clock.Real{},
		cropFn:   crop.Auto,
		composer: compose.New(compose.WithLogger(logger)),
		exporter: export.New(cfg.Booth.Brand,
			export.WithQuality(cfg.Booth.ExportQuality),
			export.WithEncoder(enc),
			export.WithLogger(logger),
		),
		defaults: compose.Options{
			Background: cfg.Strip.VintageBackground,
			Frame:      cfg.Strip.ModernFrame,
		},
		zoom:           cfg.Booth.AutoCropZoom,
		captureQuality: cfg.Booth.CaptureQuality,
		cropQuality:    cfg.Booth.CropQuality,
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobStrip:
		return r.handleStrip(ctx, job)
	case JobCapture:
		return r.handleCapture(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleStrip(ctx context.Context, job Job) Result {
	sess, err := newSession(job.Mode)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	uploads, err := loadInputs(job.Inputs)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	zoom := getFloat64Option(job.Options, "zoom")
	if zoom == 0 {
		zoom = r.zoom
	}
	if err := r.cropFn(ctx, sess, uploads, zoom, crop.WithLogger(r.log), crop.WithJPEGQuality(r.cropQuality)); err != nil {
		return Result{Job: job, Error: err}
	}
	res := r.finish(ctx, job, sess)
	if res.Meta != nil {
		res.Meta["zoom"] = zoom
	}
	return res
}

func (r *router) handleCapture(ctx context.Context, job Job) Result {
	if r.dev == nil {
		return Result{Job: job, Error: camera.ErrNoDevice}
	}
	sess, err := newSession(job.Mode)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	r.camMu.Lock()
	ctl := capture.New(sess, r.dev,
		capture.WithClock(r.clock),
		capture.WithLogger(r.log),
		capture.WithJPEGQuality(r.captureQuality),
	)
	err = ctl.Run(ctx)
	r.camMu.Unlock()
	if err != nil {
		return Result{Job: job, Error: err}
	}
	return r.finish(ctx, job, sess)
}

// finish composes the session's photos, exports the strip and keeps it.
func (r *router) finish(ctx context.Context, job Job, sess *session.Session) Result {
	opts := r.options(sess.Mode, job.Options)
	spec, err := compose.NewSpec(sess.Mode, opts)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	strip, err := r.composer.Compose(ctx, sess.Photos(), spec)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	art, err := r.exporter.Export(strip)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.store.Put(ctx, art); err != nil {
		return Result{Job: job, Error: err, Artifact: art}
	}

	meta := map[string]any{
		"session":  sess.ID,
		"strip":    art.ID,
		"filename": art.Filename,
		"width":    art.Width,
		"height":   art.Height,
		"bytes":    len(art.Data),
		"reveal":   strip.Reveal(),
	}
	if job.Output != "" {
		path, err := export.Save(job.Output, art)
		if err != nil {
			return Result{Job: job, Error: err, Artifact: art, Meta: meta}
		}
		meta["output"] = path
	}
	return Result{Job: job, Artifact: art, Meta: meta}
}

func (r *router) options(mode session.Mode, o map[string]any) compose.Options {
	opts := compose.Options{
		Background:  getStringOption(o, "background"),
		Frame:       getStringOption(o, "frame"),
		Note:        getStringOption(o, "note"),
		IncludeDate: getBoolOption(o, "date"),
		Date:        r.clock.Now(),
	}
	if opts.Background == "" {
		opts.Background = r.defaults.Background
	}
	if opts.Frame == "" {
		opts.Frame = r.defaults.Frame
	}
	if mode == session.Vintage {
		opts.Note = ""
	}
	return opts
}

func newSession(mode session.Mode) (*session.Session, error) {
	if mode == "" {
		return nil, session.ErrNoMode
	}
	m, err := session.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	return session.New(m), nil
}

// loadInputs reads path-only inputs from disk and names every upload.
func loadInputs(inputs []Input) ([]crop.Upload, error) {
	uploads := make([]crop.Upload, 0, len(inputs))
	for i, in := range inputs {
		data := in.Data
		if data == nil && in.Path != "" {
			b, err := os.ReadFile(in.Path)
			if err != nil {
				return nil, fmt.Errorf("read input %d: %w", i+1, err)
			}
			data = b
		}
		name := in.Name
		if name == "" && in.Path != "" {
			name = filepath.Base(in.Path)
		}
		if name == "" {
			name = fmt.Sprintf("photo-%d", i+1)
		}
		uploads = append(uploads, crop.Upload{Name: name, Data: data})
	}
	return uploads, nil
}

// Helper functions to safely extract typed options from job.Options map
func getBoolOption(options map[string]any, key string) bool {
	if val, ok := options[key].(bool); ok {
		return val
	}
	return false
}

func getFloat64Option(options map[string]any, key string) float64 {
	switch val := options[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return 0.0
}

func getStringOption(options map[string]any, key string) string {
	if val, ok := options[key].(string); ok {
		return val
	}
	return ""
}
