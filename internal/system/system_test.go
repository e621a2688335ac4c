package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPreloadWorkers(t *testing.T) {
	n := PreloadWorkers()
	if n < 1 || n > maxPreloadWorkers {
		t.Errorf("PreloadWorkers() = %d, out of [1,%d]", n, maxPreloadWorkers)
	}
	t.Logf("preload workers: %d", n)
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.pdf", "b.PDF", "c.txt"}
	for i, name := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(p, mt, mt)
	}

	latest, err := FindLatest(dir, ".pdf")
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if filepath.Base(latest) != "b.PDF" {
		t.Errorf("Expected b.PDF, got %s", latest)
	}

	if _, err := FindLatest(dir, ".webp"); err == nil {
		t.Error("Expected error when nothing matches")
	}
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	r := image.Rect(0, 0, 16, 9)
	img := p.Get(r)
	if img.Rect != r {
		t.Fatalf("Expected bounds %v, got %v", r, img.Rect)
	}
	p.Put(img)
	p.Put(nil)
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))

	again := p.Get(r)
	if again.Rect != r {
		t.Errorf("Expected bounds %v, got %v", r, again.Rect)
	}
}

func TestDefaultQuality(t *testing.T) {
	if DefaultQuality("libx264") != 23 || DefaultQuality("h264_nvenc") != 28 || DefaultQuality("h264_videotoolbox") != 75 {
		t.Error("unexpected quality defaults")
	}
}
