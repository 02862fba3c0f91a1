package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"photobooth/internal/config"
)

// Setup configures global logging. Text format goes through TraditionalHandler;
// with file output enabled a dated file is added next to a current-log symlink.
func Setup(cfg *config.Config) (*slog.Logger, error) {
	return setup(cfg, os.Stdout, time.Now())
}

func setup(cfg *config.Config, stdout io.Writer, now time.Time) (*slog.Logger, error) {
	level := parseLevel(cfg.Logging.Level)

	writers := []io.Writer{stdout}
	if cfg.Logging.FileOutput {
		if err := os.MkdirAll(cfg.Logging.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile := filepath.Join(cfg.Logging.LogDir, fmt.Sprintf("photobooth-%s.log", now.Format("2006-01-02")))
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)

		current := filepath.Join(cfg.Logging.LogDir, "photobooth-current.log")
		_ = os.Remove(current)
		// Symlinks may be unsupported; the dated file is still written.
		_ = os.Symlink(filepath.Base(logFile), current)
	}
	out := io.MultiWriter(writers...)

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = NewTraditionalHandler(out, level)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Debug("photobooth logging initialized",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"file_output", cfg.Logging.FileOutput,
		"log_dir", cfg.Logging.LogDir,
	)
	return logger, nil
}

// TraditionalHandler writes "[LEVEL] message [k=v ...]" lines through a
// standard library logger.
type TraditionalHandler struct {
	logger *log.Logger
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
	mu     *sync.Mutex
}

// NewTraditionalHandler returns a handler writing to w.
func NewTraditionalHandler(w io.Writer, level slog.Leveler) *TraditionalHandler {
	return &TraditionalHandler{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
		mu:     &sync.Mutex{},
	}
}

func (h *TraditionalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TraditionalHandler) Handle(_ context.Context, r slog.Record) error {
	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		parts = append(parts, formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		parts = append(parts, formatAttr(a))
		return true
	})

	msg := r.Message
	if len(parts) > 0 {
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(parts, " "))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Printf("[%s] %s", strings.ToUpper(r.Level.String()), msg)
	return nil
}

func formatAttr(a slog.Attr) string {
	return fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve())
}

func (h *TraditionalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.group != "" {
		for i := len(h.attrs); i < len(nh.attrs); i++ {
			nh.attrs[i].Key = h.group + "." + nh.attrs[i].Key
		}
	}
	return &nh
}

func (h *TraditionalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	nh.group = name
	return &nh
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogJobStart logs the beginning of a pipeline job.
func LogJobStart(logger *slog.Logger, jobType, jobID string, inputs int, options map[string]any) {
	logger.Info("job started",
		"type", jobType,
		"id", jobID,
		"inputs", inputs,
		"options", options,
	)
}

// LogJobComplete logs successful job completion.
func LogJobComplete(logger *slog.Logger, jobType, jobID string, duration time.Duration, outputBytes int) {
	logger.Info("job completed successfully",
		"type", jobType,
		"id", jobID,
		"duration_ms", duration.Milliseconds(),
		"output", humanize.Bytes(uint64(outputBytes)),
	)
}

// LogJobError logs job failures.
func LogJobError(logger *slog.Logger, jobType, jobID string, duration time.Duration, err error) {
	logger.Error("job failed",
		"type", jobType,
		"id", jobID,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	)
}

// LogDeviceStatus logs camera device detection.
func LogDeviceStatus(logger *slog.Logger, kind, source string, err error) {
	if err == nil {
		logger.Debug("camera device ready", "device", kind, "source", source)
		return
	}
	logger.Warn("camera device not available", "device", kind, "source", source, "error", err)
}

// LogPhaseStart logs entry into a booth phase.
func LogPhaseStart(logger *slog.Logger, phase, sessionID string) {
	logger.Debug("phase started", "phase", phase, "session", sessionID)
}

// LogPhaseComplete logs leaving a booth phase.
func LogPhaseComplete(logger *slog.Logger, phase, sessionID string, duration time.Duration) {
	logger.Debug("phase finished",
		"phase", phase,
		"session", sessionID,
		"duration", duration.Round(time.Millisecond).String(),
	)
}

// LogPhaseError logs a phase aborted by err.
func LogPhaseError(logger *slog.Logger, phase, sessionID string, err error) {
	logger.Error("phase aborted", "phase", phase, "session", sessionID, "error", err.Error())
}
