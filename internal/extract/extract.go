// Package extract writes an image sequence (PDF pages or a directory of images) out as a
// numbered frame sequence that the scrubber can load.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framescrub/internal/frameurl"
	"github.com/ivlev/framescrub/internal/sequence"
)

var ErrNoFrames = errors.New("extract: sequence is empty")

// Options control the output size and parallelism. A zero Width or Height is derived from the
// other side and the source aspect ratio; both zero keeps the source size.
type Options struct {
	Width   int
	Height  int
	DPI     int
	Quality int
	Workers int
	Logger  *slog.Logger
}

// Result reports what was written.
type Result struct {
	TotalFrames int
	Written     int
	Paths       []string
}

// Extract renders every element of seq and writes it to the path produced by substituting
// the frame index into template. The highest index is seq.Count()-1.
func Extract(ctx context.Context, seq sequence.Sequence, template string, opts Options) (*Result, error) {
	count := seq.Count()
	if count == 0 {
		return nil, ErrNoFrames
	}
	if !strings.Contains(template, frameurl.Placeholder) {
		return nil, fmt.Errorf("extract: template %q has no %s placeholder", template, frameurl.Placeholder)
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	total := count - 1
	paths := frameurl.All(template, total)
	if err := os.MkdirAll(filepath.Dir(paths[0]), 0755); err != nil {
		return nil, err
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := seq.Render(i, opts.DPI)
			if err != nil {
				return fmt.Errorf("render frame %d: %w", i, err)
			}
			img = Scale(img, opts.Width, opts.Height)
			if err := writeFile(path, img, opts.Quality); err != nil {
				return fmt.Errorf("write frame %d: %w", i, err)
			}
			written.Add(1)
			logger.Debug("frame written", "index", i, "path", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{TotalFrames: total, Written: int(written.Load()), Paths: paths}, nil
}

// Scale resizes img with Catmull-Rom. See Options for how zero sides are treated.
func Scale(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch {
	case width <= 0 && height <= 0:
		return img
	case width <= 0:
		width = max(1, w*height/h)
	case height <= 0:
		height = max(1, h*width/w)
	}
	if width == w && height == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writeFile(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, path, img, quality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode picks the format from the file extension of name. Anything but .jpg/.jpeg is PNG.
func Encode(w io.Writer, name string, img image.Image, quality int) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return png.Encode(w, img)
	}
}
