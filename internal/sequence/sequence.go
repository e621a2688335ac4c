// Package sequence enumerates still images (PDF pages or the files of an image folder) so
// they can be exported as numbered frames. It links MuPDF through go-fitz and must stay out of
// the import graph of the js/wasm build.
package sequence

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/framescrub/internal/source"
)

// Sequence is an ordered set of still images that can be exported as frames.
type Sequence interface {
	Count() int
	Dimensions(index int) (width, height float64, err error)
	Render(index int, dpi int) (image.Image, error)
	Close() error
}

// Open picks a PDFSequence for .pdf files and a DirSequence otherwise.
func Open(path string) (Sequence, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return NewPDFSequence(path)
	}
	return NewDirSequence(path)
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DirSequence is every image in a directory, sorted by name, or a single image file.
type DirSequence struct {
	paths []string
}

func NewDirSequence(path string) (*DirSequence, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		return &DirSequence{paths: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(paths)
	return &DirSequence{paths: paths}, nil
}

func (s *DirSequence) Count() int {
	return len(s.paths)
}

func (s *DirSequence) Dimensions(index int) (float64, float64, error) {
	if index < 0 || index >= len(s.paths) {
		return 0, 0, fmt.Errorf("frame %d out of range", index)
	}
	f, err := os.Open(s.paths[index])
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

func (s *DirSequence) Render(index int, _ int) (image.Image, error) {
	if index < 0 || index >= len(s.paths) {
		return nil, fmt.Errorf("frame %d out of range", index)
	}
	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return source.Decode(f)
}

func (s *DirSequence) Close() error {
	return nil
}

// PDFSequence renders PDF pages as frames.
type PDFSequence struct {
	doc  *fitz.Document
	path string
}

func NewPDFSequence(path string) (*PDFSequence, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &PDFSequence{doc: doc, path: path}, nil
}

func (p *PDFSequence) Count() int {
	return p.doc.NumPage()
}

func (p *PDFSequence) Dimensions(index int) (float64, float64, error) {
	rect, err := p.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// Render opens a private document handle so pages can be rendered from several goroutines.
func (p *PDFSequence) Render(index int, dpi int) (image.Image, error) {
	doc, err := fitz.New(p.path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ImageDPI(index, float64(dpi))
}

func (p *PDFSequence) Close() error {
	return p.doc.Close()
}
