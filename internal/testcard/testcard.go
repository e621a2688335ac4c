// Package testcard generates synthetic frame sequences for trying out a scrubber: every frame
// has its own hue, a progress bar and a QR code naming the frame.
package testcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gg"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framescrub/internal/extract"
	"github.com/ivlev/framescrub/internal/frameurl"
)

var ErrNoPlaceholder = errors.New("testcard: template has no placeholder")

type Options struct {
	Width   int
	Height  int
	Workers int
	Logger  *slog.Logger
}

// Generate writes frames 0..totalFrames to the paths produced from template and returns them.
func Generate(ctx context.Context, template string, totalFrames int, opts Options) ([]string, error) {
	if !strings.Contains(template, frameurl.Placeholder) {
		return nil, ErrNoPlaceholder
	}
	if totalFrames < 0 {
		return nil, fmt.Errorf("testcard: negative frame count %d", totalFrames)
	}
	if opts.Width <= 0 {
		opts.Width = 960
	}
	if opts.Height <= 0 {
		opts.Height = 540
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	paths := frameurl.All(template, totalFrames)
	if err := os.MkdirAll(filepath.Dir(paths[0]), 0755); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := writeCard(path, i, totalFrames, opts.Width, opts.Height); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			logger.Debug("test card written", "index", i, "path", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeCard(path string, frame, total, w, h int) error {
	dc := gg.NewContext(w, h)
	defer dc.Close()

	progress := 0.0
	if total > 0 {
		progress = float64(frame) / float64(total)
	}
	dc.ClearWithColor(gg.HSL(300*progress, 0.6, 0.45))

	barH := float64(h) / 20
	dc.SetRGBA(0, 0, 0, 0.4)
	dc.DrawRectangle(0, float64(h)-barH, float64(w), barH)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, float64(h)-barH, float64(w)*progress, barH)
	dc.Fill()

	label := fmt.Sprintf("frame %s/%d", frameurl.Pad(frame, total), total)
	qr, err := qrcode.New(label, qrcode.Medium)
	if err != nil {
		return err
	}
	size := min(w, h) / 2
	img := qr.Image(size)
	b := img.Bounds()
	dc.DrawImage(gg.ImageBufFromImage(img), float64((w-b.Dx())/2), float64((h-b.Dy())/2))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := extract.Encode(f, path, dc.Image(), 90); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
