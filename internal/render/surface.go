package render

import (
	"image"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/ivlev/framescrub/internal/system"
)

// Surface is the drawing target. Its size is read once when a Renderer is created.
type Surface interface {
	Size() (width, height int)
	// Draw composites img into placement r. r may extend past the surface.
	Draw(img image.Image, r Rect)
}

// GGSurface is a Surface backed by an immediate-mode gg drawing context.
type GGSurface struct {
	mu sync.Mutex
	dc *gg.Context
}

// NewGGSurface creates a width x height surface.
func NewGGSurface(width, height int) *GGSurface {
	return &GGSurface{dc: gg.NewContext(width, height)}
}

func (s *GGSurface) Size() (int, int) {
	return s.dc.Width(), s.dc.Height()
}

func (s *GGSurface) Draw(img image.Image, r Rect) {
	b := img.Bounds()
	w, h := s.Size()
	src, dst, ok := Clip(r, w, h, b.Dx(), b.Dy())
	if !ok {
		return
	}

	// gg samples 1:1, so scale the visible part of the frame first.
	x0, y0 := int(math.Floor(dst.X)), int(math.Floor(dst.Y))
	x1, y1 := int(math.Ceil(dst.X+dst.W)), int(math.Ceil(dst.Y+dst.H))
	scaled := system.GetImage(image.Rect(0, 0, x1-x0, y1-y0))
	defer system.PutImage(scaled)
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, src.Add(b.Min), draw.Src, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.DrawImageEx(gg.ImageBufFromImage(scaled), gg.DrawImageOptions{
		X:             float64(x0),
		Y:             float64(y0),
		Interpolation: gg.InterpNearest,
		Opacity:       1.0,
		BlendMode:     gg.BlendNormal,
	})
}

// StraightCrop scales the part of img visible through placement r on a dstW x dstH surface
// into non-premultiplied pixels, for targets such as canvas ImageData that expect straight
// alpha. at is the top-left corner of the result on the surface.
func StraightCrop(img image.Image, r Rect, dstW, dstH int) (out *image.NRGBA, at image.Point, ok bool) {
	b := img.Bounds()
	src, dst, ok := Clip(r, dstW, dstH, b.Dx(), b.Dy())
	if !ok {
		return nil, image.Point{}, false
	}
	x0, y0 := int(math.Floor(dst.X)), int(math.Floor(dst.Y))
	x1, y1 := int(math.Ceil(dst.X+dst.W)), int(math.Ceil(dst.Y+dst.H))
	out = image.NewNRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, src.Add(b.Min), draw.Src, nil)
	return out, image.Pt(x0, y0), true
}

// Clear fills the surface with col.
func (s *GGSurface) Clear(col gg.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.ClearWithColor(col)
}

// Snapshot copies the current pixels.
func (s *GGSurface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

// SavePNG writes the surface to path.
func (s *GGSurface) SavePNG(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.SavePNG(path)
}

func (s *GGSurface) Close() error {
	return s.dc.Close()
}
