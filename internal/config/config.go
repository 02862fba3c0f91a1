package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig overrides the config file location.
	EnvConfig = "PHOTOBOOTH_CONFIG"

	DefaultConfigPath = "~/.config/photobooth/config.json"
	defaultParallel   = 2
)

// Config holds user-editable settings for the booth.
type Config struct {
	Booth      Booth      `json:"booth" yaml:"booth" toml:"booth"`
	Camera     Camera     `json:"camera" yaml:"camera" toml:"camera"`
	Strip      Strip      `json:"strip" yaml:"strip" toml:"strip"`
	Processing Processing `json:"processing" yaml:"processing" toml:"processing"`
	Logging    Logging    `json:"logging" yaml:"logging" toml:"logging"`
	Server     Server     `json:"server" yaml:"server" toml:"server"`
	Paths      Paths      `json:"paths" yaml:"paths" toml:"paths"`
}

// Booth controls output naming and encoding. Encoder is "imaging" or, in
// builds tagged imagick, "imagick". AutoCropZoom is used by headless crops.
type Booth struct {
	Brand          string  `json:"brand" yaml:"brand" toml:"brand"`
	CaptureQuality int     `json:"capture_quality" yaml:"capture_quality" toml:"capture_quality"`
	CropQuality    int     `json:"crop_quality" yaml:"crop_quality" toml:"crop_quality"`
	ExportQuality  int     `json:"export_quality" yaml:"export_quality" toml:"export_quality"`
	Encoder        string  `json:"encoder" yaml:"encoder" toml:"encoder"`
	AutoCropZoom   float64 `json:"auto_crop_zoom" yaml:"auto_crop_zoom" toml:"auto_crop_zoom"`
}

// Camera selects the capture device.
type Camera struct {
	Device string `json:"device" yaml:"device" toml:"device"` // pattern, folder, webcam
	Source string `json:"source" yaml:"source" toml:"source"` // folder path or webcam index
}

// Strip holds the preselected customization colors.
type Strip struct {
	VintageBackground string `json:"vintage_background" yaml:"vintage_background" toml:"vintage_background"`
	ModernFrame       string `json:"modern_frame" yaml:"modern_frame" toml:"modern_frame"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int `json:"parallel_jobs" yaml:"parallel_jobs" toml:"parallel_jobs"`
	QueueSize    int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`

	// WatchSettleMS is how long a hot-folder batch must be quiet before it is processed.
	WatchSettleMS int `json:"watch_settle_ms" yaml:"watch_settle_ms" toml:"watch_settle_ms"`
}

// Logging controls logging verbosity and destinations. Level is one of
// debug, info, warn or error; Format is text or json.
type Logging struct {
	Level      string `json:"level" yaml:"level" toml:"level"`
	Format     string `json:"format" yaml:"format" toml:"format"`
	FileOutput bool   `json:"file_output" yaml:"file_output" toml:"file_output"`
	LogDir     string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
}

// Server configures the kiosk HTTP surface.
type Server struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// Paths configures default input/output locations.
type Paths struct {
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	WatchDir  string `json:"watch_dir" yaml:"watch_dir" toml:"watch_dir"`
}

// Path returns the config file location in effect.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads the config file named by Path.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the given file. A missing file yields the defaults. The
// format follows the extension: .json, .yaml/.yml or .toml.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	expanded, err := expandUser(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := decode(bytes.NewReader(data), formatOf(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", expanded, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func decode(r io.Reader, format string, cfg *Config) error {
	switch format {
	case "yaml":
		err := yaml.NewDecoder(r).Decode(cfg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	case "toml":
		return toml.NewDecoder(r).Decode(cfg)
	default:
		return json.NewDecoder(r).Decode(cfg)
	}
}

// Encode writes cfg in the given format (json, yaml or toml).
func Encode(w io.Writer, cfg *Config, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	for _, q := range []struct {
		name  string
		value int
	}{
		{"booth.capture_quality", c.Booth.CaptureQuality},
		{"booth.crop_quality", c.Booth.CropQuality},
		{"booth.export_quality", c.Booth.ExportQuality},
	} {
		if q.value < 1 || q.value > 100 {
			errs = append(errs, fmt.Errorf("%s must be within 1..100, got %d", q.name, q.value))
		}
	}
	if z := c.Booth.AutoCropZoom; z < 20 || z > 100 {
		errs = append(errs, fmt.Errorf("booth.auto_crop_zoom must be within 20..100, got %v", z))
	}
	switch c.Camera.Device {
	case "pattern", "folder", "webcam":
	default:
		errs = append(errs, fmt.Errorf("camera.device must be pattern, folder or webcam, got %q", c.Camera.Device))
	}
	if c.Camera.Device == "folder" && c.Camera.Source == "" {
		errs = append(errs, errors.New("camera.source is required for the folder device"))
	}
	if c.Processing.ParallelJobs < 1 {
		errs = append(errs, fmt.Errorf("processing.parallel_jobs must be positive, got %d", c.Processing.ParallelJobs))
	}
	if c.Processing.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("processing.queue_size must be positive, got %d", c.Processing.QueueSize))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errors.Join(errs...)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Booth: Booth{
			Brand:          "photobooth",
			CaptureQuality: 92,
			CropQuality:    100,
			ExportQuality:  95,
			Encoder:        "imaging",
			AutoCropZoom:   80,
		},
		Camera: Camera{
			Device: "pattern",
		},
		Strip: Strip{
			VintageBackground: "white",
			ModernFrame:       "#FFE4E1",
		},
		Processing: Processing{
			ParallelJobs:  defaultParallel,
			QueueSize:     16,
			WatchSettleMS: 1500,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Server: Server{
			Addr: "127.0.0.1:8080",
		},
		Paths: Paths{
			OutputDir: "./strips",
			WatchDir:  "./hotfolder",
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
