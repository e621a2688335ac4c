package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/framescrub/internal/source"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestCoverRect(t *testing.T) {
	r := CoverRect(400, 300, 960, 540)
	if !near(r.W, 533.33) || !near(r.H, 300) || !near(r.X, -66.67) || !near(r.Y, 0) {
		t.Fatalf("Unexpected cover rect %+v", r)
	}
	if r.X+r.W < 400 || r.Y+r.H < 300 {
		t.Error("cover rect does not cover destination")
	}
	left, right := -r.X, r.X+r.W-400
	if !near(left, right) {
		t.Errorf("overflow not centered: %v vs %v", left, right)
	}

	tall := CoverRect(400, 300, 100, 400)
	if !near(tall.W, 400) || !near(tall.H, 1600) || !near(tall.Y, -650) || tall.X != 0 {
		t.Errorf("Unexpected tall cover rect %+v", tall)
	}

	if (CoverRect(400, 300, 0, 10) != Rect{}) {
		t.Error("Expected empty rect for empty source")
	}
}

func TestContainRect(t *testing.T) {
	r := ContainRect(400, 300, 960, 540)
	if !near(r.W, 400) || !near(r.H, 225) || !near(r.X, 0) || !near(r.Y, 37.5) {
		t.Errorf("Unexpected contain rect %+v", r)
	}
}

func TestCoverPreservesAspect(t *testing.T) {
	for _, c := range [][4]float64{{400, 300, 960, 540}, {1920, 1080, 640, 640}, {320, 640, 1600, 900}} {
		r := CoverRect(c[0], c[1], c[2], c[3])
		if !near(r.W/r.H, c[2]/c[3]) {
			t.Errorf("%v: aspect changed to %v", c, r.W/r.H)
		}
		if r.W+1e-9 < c[0] || r.H+1e-9 < c[1] {
			t.Errorf("%v: rect %+v does not cover", c, r)
		}
	}
}

func TestPlaceNone(t *testing.T) {
	r := Place(FitNone, 400, 300, 960, 540)
	if (r != Rect{W: 960, H: 540}) {
		t.Errorf("Expected natural size at origin, got %+v", r)
	}
}

func TestParseFit(t *testing.T) {
	if f, err := ParseFit("none"); err != nil || f != FitNone {
		t.Errorf("ParseFit(none) = %v, %v", f, err)
	}
	if f, err := ParseFit(""); err != nil || f != FitCover {
		t.Errorf("ParseFit(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFit("stretch"); err == nil {
		t.Error("Expected error for unknown fit")
	}
}

func TestClip(t *testing.T) {
	src, dst, ok := Clip(CoverRect(400, 300, 960, 540), 400, 300, 960, 540)
	if !ok {
		t.Fatal("Expected visible region")
	}
	if src != image.Rect(120, 0, 840, 540) {
		t.Errorf("Unexpected source crop %v", src)
	}
	if (dst != Rect{W: 400, H: 300}) {
		t.Errorf("Unexpected destination %+v", dst)
	}

	src, dst, ok = Clip(Rect{W: 960, H: 540}, 400, 300, 960, 540)
	if !ok || src != image.Rect(0, 0, 400, 300) || (dst != Rect{W: 400, H: 300}) {
		t.Errorf("natural size clip: %v %+v %v", src, dst, ok)
	}

	if _, _, ok := Clip(Rect{X: 500, W: 10, H: 10}, 400, 300, 10, 10); ok {
		t.Error("Expected offscreen placement to be invisible")
	}
}

// stripes returns a w x h image whose left, middle and right thirds are red, green and blue.
func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{B: 255, A: 255}
			switch {
			case x < w/3:
				c = color.RGBA{R: 255, A: 255}
			case x < 2*w/3:
				c = color.RGBA{G: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGGSurfaceCover(t *testing.T) {
	s := NewGGSurface(400, 300)
	defer s.Close()

	s.Draw(stripes(960, 540), CoverRect(400, 300, 960, 540))
	out := s.Snapshot()

	check := func(x, y int, want string) {
		r, g, b, _ := out.At(x, y).RGBA()
		got := map[string]uint32{"red": r, "green": g, "blue": b}[want]
		if got < 0xc000 {
			t.Errorf("pixel (%d,%d) = %d,%d,%d, want mostly %s", x, y, r>>8, g>>8, b>>8, want)
		}
	}
	check(10, 150, "red")
	check(200, 150, "green")
	check(390, 150, "blue")
}

type fakeSurface struct {
	mu    sync.Mutex
	w, h  int
	draws []Rect
	imgs  []image.Image
}

func (f *fakeSurface) Size() (int, int) { return f.w, f.h }

func (f *fakeSurface) Draw(img image.Image, r Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draws = append(f.draws, r)
	f.imgs = append(f.imgs, img)
}

// gatedLoader returns a distinct image per URL once that URL's gate is released.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	sizes map[string]image.Point
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gates: make(map[string]chan struct{}), sizes: make(map[string]image.Point)}
}

func (g *gatedLoader) gate(u string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[u]
	if !ok {
		ch = make(chan struct{})
		g.gates[u] = ch
	}
	return ch
}

func (g *gatedLoader) Load(ctx context.Context, u string) (image.Image, error) {
	if u == "" {
		return nil, source.ErrEmptyURL
	}
	select {
	case <-g.gate(u):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	sz, ok := g.sizes[u]
	g.mu.Unlock()
	if !ok {
		sz = image.Pt(960, 540)
	}
	return image.NewRGBA(image.Rect(0, 0, sz.X, sz.Y)), nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRendererDrawsCover(t *testing.T) {
	l := newGatedLoader()
	surf := &fakeSurface{w: 400, h: 300}
	r := New(l, surf, "tmpl-large-#.jpg", 99)

	if r.URL(5) != "tmpl-large-05.jpg" {
		t.Fatalf("Unexpected URL %s", r.URL(5))
	}

	r.Render(context.Background(), 5)
	close(l.gate("tmpl-large-05.jpg"))
	r.Wait()

	if len(surf.draws) != 1 {
		t.Fatalf("Expected 1 draw, got %d", len(surf.draws))
	}
	d := surf.draws[0]
	if !near(d.X, -66.67) || !near(d.W, 533.33) {
		t.Errorf("Unexpected placement %+v", d)
	}
	if r.LastDrawn() != 5 {
		t.Errorf("Expected last drawn 5, got %d", r.LastDrawn())
	}
}

func TestRendererLatestWins(t *testing.T) {
	l := newGatedLoader()
	surf := &fakeSurface{w: 400, h: 300}
	r := New(l, surf, "f-#.png", 10, WithFit(FitNone))
	ctx := context.Background()

	r.Render(ctx, 1)
	r.Render(ctx, 2)
	r.Render(ctx, 3)

	// Newest finishes first; older completions arrive afterwards and must not draw.
	close(l.gate("f-03.png"))
	waitFor(t, func() bool { return r.Stats().Drawn == 1 })
	close(l.gate("f-01.png"))
	close(l.gate("f-02.png"))
	r.Wait()

	st := r.Stats()
	if st.Drawn != 1 || st.Superseded != 2 || st.Requested != 3 {
		t.Errorf("Unexpected stats %+v", st)
	}
	if r.LastDrawn() != 3 {
		t.Errorf("Expected frame 3 on surface, got %d", r.LastDrawn())
	}
}

func TestRendererSameTargetDrawsAgain(t *testing.T) {
	l := newGatedLoader()
	surf := &fakeSurface{w: 10, h: 10}
	r := New(l, surf, "f-#.png", 10)

	close(l.gate("f-04.png"))
	r.Render(context.Background(), 4)
	r.Render(context.Background(), 4)
	r.Wait()

	if r.Stats().Drawn != 2 {
		t.Errorf("Expected both completions for the current target to draw, got %+v", r.Stats())
	}
}

func TestRendererEmptyTemplateDegrades(t *testing.T) {
	l := newGatedLoader()
	surf := &fakeSurface{w: 10, h: 10}
	r := New(l, surf, "", 10)

	r.Render(context.Background(), 3)
	r.Wait()

	if len(surf.draws) != 0 {
		t.Error("Expected nothing drawn")
	}
	if r.Stats().Failed != 1 {
		t.Errorf("Expected one failure, got %+v", r.Stats())
	}
	if r.LastDrawn() != -1 {
		t.Errorf("Expected no frame drawn, got %d", r.LastDrawn())
	}
}

func TestRendererCancelledLoad(t *testing.T) {
	l := newGatedLoader()
	surf := &fakeSurface{w: 10, h: 10}
	r := New(l, surf, "f-#.png", 10)
	ctx, cancel := context.WithCancel(context.Background())

	r.Render(ctx, 1)
	cancel()
	r.Wait()

	if st := r.Stats(); st.Failed != 1 || st.Drawn != 0 {
		t.Errorf("Unexpected stats %+v", st)
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("context not cancelled")
	}
}

func TestStraightCropKeepsStraightAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{200, 100, 50, 128})
	}

	out, at, ok := StraightCrop(src, Rect{X: 2, Y: 2, W: 16, H: 16}, 10, 10)
	if !ok {
		t.Fatal("Expected a visible crop")
	}
	if at != image.Pt(2, 2) || out.Bounds().Dx() != 8 || out.Bounds().Dy() != 8 {
		t.Fatalf("Unexpected crop at %v size %v", at, out.Bounds())
	}
	px := out.NRGBAAt(4, 4)
	if px.R < 195 || px.G < 95 || px.B < 45 || px.A < 125 || px.A > 131 {
		t.Errorf("Expected straight (200,100,50,128), got %v", px)
	}

	if _, _, ok := StraightCrop(src, Rect{X: 20, Y: 0, W: 8, H: 8}, 10, 10); ok {
		t.Error("Expected no crop for an off-surface placement")
	}
}
