package headless

import (
	"context"
	"image"

	"github.com/ivlev/framescrub/internal/render"
	"github.com/ivlev/framescrub/internal/scrubber"
)

// Snapshotter is a surface that can copy out its pixels.
type Snapshotter interface {
	Snapshot() *image.RGBA
}

// Step is one position of a sweep.
type Step struct {
	Index   int
	ScrollY float64
	Frame   int
	// Listening reports whether the scroll listener was attached at this position.
	Listening bool
	Image     *image.RGBA
}

// Sweep scrolls from the top of the page to the bottom in steps+1 positions. At each one it
// runs a tick, waits for the frame load and hands a snapshot of the surface to fn.
func (p *Page) Sweep(ctx context.Context, c *scrubber.Controller, steps int, fn func(Step) error) error {
	if steps < 1 {
		steps = 1
	}
	snap, _ := p.surface.(Snapshotter)
	maxY := p.MaxScroll()

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.ScrollTo(maxY * float64(i) / float64(steps))
		p.Tick()
		if r := c.Renderer(); r != nil {
			r.Wait()
		}

		st := Step{Index: i, ScrollY: p.ScrollY(), Frame: lastDrawn(c.Renderer()), Listening: p.Listeners() > 0}
		if snap != nil {
			st.Image = snap.Snapshot()
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	return nil
}

func lastDrawn(r *render.Renderer) int {
	if r == nil {
		return -1
	}
	return r.LastDrawn()
}
