// Package term previews a scrubber in a terminal. The headless page is scrolled with the
// mouse wheel or keys and its surface is painted with half-block cells, two pixels per cell.
package term

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"

	"github.com/ivlev/framescrub/internal/host/headless"
	"github.com/ivlev/framescrub/internal/render"
	"github.com/ivlev/framescrub/internal/scrubber"
)

const (
	lineStep  = 40
	wheelStep = 60
	halfBlock = '▀'
)

// Preview owns the screen for the lifetime of a session.
type Preview struct {
	screen tcell.Screen
	page   *headless.Page
	ctrl   *scrubber.Controller
	snap   headless.Snapshotter
	tick   time.Duration
	logger *slog.Logger

	width, height int
	lastFrame     int
	dirty         bool
}

type Option func(*Preview)

func WithTick(d time.Duration) Option {
	return func(p *Preview) { p.tick = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Preview) { p.logger = l }
}

// New initializes screen and takes over its input. The page surface must support snapshots.
func New(screen tcell.Screen, page *headless.Page, ctrl *scrubber.Controller, opts ...Option) (*Preview, error) {
	snap, ok := page.Surface().(headless.Snapshotter)
	if !ok {
		return nil, fmt.Errorf("term: surface %T cannot be snapshotted", page.Surface())
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.HideCursor()

	p := &Preview{
		screen:    screen,
		page:      page,
		ctrl:      ctrl,
		snap:      snap,
		tick:      16 * time.Millisecond,
		logger:    slog.New(slog.DiscardHandler),
		lastFrame: -1,
		dirty:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.width, p.height = screen.Size()
	return p, nil
}

// Handle applies one input event. It returns false when the user asked to quit.
func (p *Preview) Handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			p.scroll(-lineStep)
		case tcell.KeyDown:
			p.scroll(lineStep)
		case tcell.KeyPgUp:
			p.scroll(-p.pageStep())
		case tcell.KeyPgDn:
			p.scroll(p.pageStep())
		case tcell.KeyHome:
			p.scrollTo(0)
		case tcell.KeyEnd:
			p.scrollTo(p.page.MaxScroll())
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'j':
				p.scroll(lineStep)
			case 'k':
				p.scroll(-lineStep)
			case ' ':
				p.scroll(p.pageStep())
			}
		}

	case *tcell.EventMouse:
		btn := ev.Buttons()
		if btn&tcell.WheelUp != 0 {
			p.scroll(-wheelStep)
		}
		if btn&tcell.WheelDown != 0 {
			p.scroll(wheelStep)
		}

	case *tcell.EventResize:
		p.width, p.height = p.screen.Size()
		p.screen.Sync()
		p.dirty = true
	}
	return true
}

func (p *Preview) pageStep() float64 {
	_, h := p.page.Surface().Size()
	return float64(h)
}

func (p *Preview) scroll(dy float64) {
	p.page.ScrollBy(dy)
	p.dirty = true
}

func (p *Preview) scrollTo(y float64) {
	p.page.ScrollTo(y)
	p.dirty = true
}

// Update runs one paint tick and redraws the screen if anything changed.
func (p *Preview) Update() {
	p.page.Tick()
	p.refresh()
}

// refresh redraws the screen if the page scrolled or a new frame was drawn.
func (p *Preview) refresh() {
	frame := -1
	if r := p.ctrl.Renderer(); r != nil {
		frame = r.LastDrawn()
	}
	if frame != p.lastFrame {
		p.lastFrame = frame
		p.dirty = true
	}
	if p.dirty {
		p.Draw()
		p.dirty = false
	}
}

// Draw paints the surface and a status line.
func (p *Preview) Draw() {
	p.screen.Clear()
	rows := p.height - 1
	if p.width > 0 && rows > 0 {
		px := downscale(p.snap.Snapshot(), p.width, rows*2)
		paint(p.screen, px)
	}
	p.status()
	p.screen.Show()
}

func (p *Preview) status() {
	st := p.ctrl.Stats()
	line := fmt.Sprintf(" scroll %4.0f/%-4.0f  frame %d  %s  drawn %d superseded %d  cache %d/%d  [q]uit ",
		p.page.ScrollY(), p.page.MaxScroll(), st.LastFrame, st.Gate, st.Render.Drawn, st.Render.Superseded,
		st.Cache.Hits, st.Cache.Hits+st.Cache.Misses)
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range line {
		if x >= p.width {
			break
		}
		p.screen.SetContent(x, p.height-1, r, nil, style)
		x++
	}
}

// Run drives the preview until the user quits or ctx is cancelled. The page's paint loop
// ticks on its own goroutine; the screen is refreshed at the same rate.
func (p *Preview) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.page.Loop().Run(runCtx)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	p.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventChan:
			if !p.Handle(ev) {
				p.logger.Debug("preview quit")
				return nil
			}
		case <-ticker.C:
			p.refresh()
		}
	}
}

// Close restores the terminal.
func (p *Preview) Close() {
	p.screen.Fini()
}

// downscale letterboxes src into a w x h image.
func downscale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	r := render.ContainRect(float64(w), float64(h), float64(b.Dx()), float64(b.Dy()))
	if r.W < 1 || r.H < 1 {
		return dst
	}
	target := image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)),
	)
	draw.CatmullRom.Scale(dst, target, src, b, draw.Src, nil)
	return dst
}

// paint writes px into the screen, one cell per two vertical pixels.
func paint(screen tcell.Screen, px *image.RGBA) {
	b := px.Bounds()
	for y := 0; y+1 < b.Dy(); y += 2 {
		for x := 0; x < b.Dx(); x++ {
			top := px.RGBAAt(x, y)
			bot := px.RGBAAt(x, y+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bot.R), int32(bot.G), int32(bot.B)))
			screen.SetContent(x, y/2, halfBlock, nil, style)
		}
	}
}
