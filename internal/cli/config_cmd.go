package cli

import (
	"fmt"
	"runtime"
	"strings"

	"photobooth/internal/camera"
	"photobooth/internal/config"
	"photobooth/internal/export"
)

func (r *Root) configShow(format string) error {
	if format != "" {
		return config.Encode(r.out, r.cfg, format)
	}
	path := r.configPath
	if path == "" {
		path = config.Path()
	}
	fmt.Fprintf(r.out, "Current configuration:\n")
	fmt.Fprintf(r.out, "Config file: %s\n", path)
	fmt.Fprintf(r.out, "\nBooth:\n")
	fmt.Fprintf(r.out, "  Brand: %s\n", r.cfg.Booth.Brand)
	fmt.Fprintf(r.out, "  Quality (capture/crop/export): %d/%d/%d\n", r.cfg.Booth.CaptureQuality, r.cfg.Booth.CropQuality, r.cfg.Booth.ExportQuality)
	fmt.Fprintf(r.out, "  Encoder: %s\n", r.cfg.Booth.Encoder)
	fmt.Fprintf(r.out, "  Auto crop zoom: %g\n", r.cfg.Booth.AutoCropZoom)
	fmt.Fprintf(r.out, "\nCamera: %s %s\n", r.cfg.Camera.Device, r.cfg.Camera.Source)
	fmt.Fprintf(r.out, "\nStrip colors:\n")
	fmt.Fprintf(r.out, "  Vintage background: %s\n", r.cfg.Strip.VintageBackground)
	fmt.Fprintf(r.out, "  Modern frame: %s\n", r.cfg.Strip.ModernFrame)
	fmt.Fprintf(r.out, "\nParallel Jobs: %d\n", r.cfg.Processing.ParallelJobs)
	fmt.Fprintf(r.out, "Output Directory: %s\n", r.cfg.Paths.OutputDir)
	fmt.Fprintf(r.out, "Watch Directory: %s\n", r.cfg.Paths.WatchDir)
	fmt.Fprintf(r.out, "Server Address: %s\n", r.cfg.Server.Addr)
	fmt.Fprintf(r.out, "Log Level: %s\n", r.cfg.Logging.Level)
	fmt.Fprintf(r.out, "Log Format: %s\n", r.cfg.Logging.Format)
	return nil
}

func (r *Root) configValidate() error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if _, err := export.LookupEncoder(r.cfg.Booth.Encoder); err != nil {
		return err
	}
	r.log.Info("configuration validation", "status", "valid")
	fmt.Fprintln(r.out, "Configuration is valid")
	return nil
}

func (r *Root) cmdVersion() {
	fmt.Fprintf(r.out, "Photobooth v%s\n", Version)
	fmt.Fprintf(r.out, "Built with Go %s\n", runtime.Version())
	fmt.Fprintf(r.out, "Camera devices: %s\n", strings.Join(camera.Kinds(), ", "))
	fmt.Fprintf(r.out, "Encoders: %s\n", strings.Join(export.Encoders(), ", "))
}
