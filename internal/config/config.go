package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Values are the declared controller values supplied by the host.
type Values struct {
	Srcs        string `yaml:"srcs"`
	Sizes       string `yaml:"sizes"`
	Preload     bool   `yaml:"preload"`
	TotalFrames int    `yaml:"total_frames"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Page describes the host element on a simulated page (headless and terminal hosts).
type Page struct {
	// Top is the element's offset from the top of the document.
	Top float64 `yaml:"top"`
	// Height is the element's rendered height.
	Height float64 `yaml:"height"`
	// Length is the total scrollable document height. Zero means Top+Height+viewport.
	Length float64 `yaml:"length"`
}

type Config struct {
	Values `yaml:",inline"`

	Fit        string        `yaml:"fit"`
	RootMargin float64       `yaml:"root_margin"`
	Threshold  float64       `yaml:"threshold"`
	Tick       time.Duration `yaml:"tick"`
	Root       string        `yaml:"root"`

	// CacheMB bounds the frame cache. Zero picks the built-in default.
	CacheMB int `yaml:"cache_mb"`

	Viewport Size `yaml:"viewport"`
	Surface  Size `yaml:"surface"`
	Page     Page `yaml:"page"`

	Output   string `yaml:"output"`
	Steps    int    `yaml:"steps"`
	FPS      int    `yaml:"fps"`
	Quality  int    `yaml:"quality"`
	Encoder  string `yaml:"encoder"`
	LogLevel string `yaml:"log_level"`
}

// Default returns a config with every ambient field filled.
func Default() *Config {
	return &Config{
		Fit:       "cover",
		Threshold: 1.0,
		Tick:      16 * time.Millisecond,
		Viewport:  Size{Width: 1280, Height: 720},
		Surface:   Size{Width: 1280, Height: 720},
		Page:      Page{Top: 720, Height: 2160},
		Steps:     240,
		FPS:       30,
		LogLevel:  "info",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges. Malformed sizes are not an error: those breakpoints are skipped.
func (c *Config) Validate() error {
	var errs []error
	if c.TotalFrames < 0 {
		errs = append(errs, fmt.Errorf("total_frames must be >= 0, got %d", c.TotalFrames))
	}
	if strings.TrimSpace(c.Srcs) == "" {
		errs = append(errs, errors.New("srcs is empty"))
	}
	switch c.Fit {
	case "", "none", "cover":
	default:
		errs = append(errs, fmt.Errorf("unknown fit %q", c.Fit))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be in [0,1], got %v", c.Threshold))
	}
	if c.CacheMB < 0 {
		errs = append(errs, fmt.Errorf("cache_mb must be >= 0, got %d", c.CacheMB))
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height))
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		errs = append(errs, fmt.Errorf("surface must be positive, got %dx%d", c.Surface.Width, c.Surface.Height))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
