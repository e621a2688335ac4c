package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrub.yaml")
	data := `
srcs: "tmpl-small-#.jpg,tmpl-large-#.jpg"
sizes: "0,768"
preload: true
total_frames: 99
fit: none
tick: 8ms
viewport:
  width: 1024
  height: 768
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Srcs != "tmpl-small-#.jpg,tmpl-large-#.jpg" || cfg.Sizes != "0,768" {
		t.Errorf("Unexpected values: %+v", cfg.Values)
	}
	if !cfg.Preload || cfg.TotalFrames != 99 {
		t.Errorf("Expected preload and 99 frames, got %v %d", cfg.Preload, cfg.TotalFrames)
	}
	if cfg.Fit != "none" || cfg.Tick != 8*time.Millisecond {
		t.Errorf("Unexpected ambient fields: fit=%s tick=%v", cfg.Fit, cfg.Tick)
	}
	if cfg.Viewport.Width != 1024 {
		t.Errorf("Expected viewport width 1024, got %d", cfg.Viewport.Width)
	}
	if cfg.Surface.Width != 1280 || cfg.FPS != 30 {
		t.Errorf("Expected defaults kept, got surface %+v fps %d", cfg.Surface, cfg.FPS)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Srcs = "a-#.png"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	cfg.TotalFrames = -1
	cfg.Fit = "stretch"
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Expected ErrInvalid, got %v", err)
	}
	t.Logf("validation error: %v", err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Values = Values{Srcs: "f-#.webp", Sizes: "0", TotalFrames: 12}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Values != cfg.Values {
		t.Errorf("Values mismatch: %+v vs %+v", got.Values, cfg.Values)
	}
}
