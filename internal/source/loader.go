// Package source fetches and decodes frame images.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrEmptyURL is returned when asked to load a frame whose URL could not be synthesized.
var ErrEmptyURL = errors.New("empty frame url")

// Loader fetches and decodes one frame image.
type Loader interface {
	Load(ctx context.Context, rawURL string) (image.Image, error)
}

// Decode reads a JPEG, PNG, GIF or WebP image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// HTTPLoader fetches frames over HTTP(S).
type HTTPLoader struct {
	Client *http.Client
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	return fetchDecode(ctx, l, rawURL)
}

// Fetch returns the response body of a successful GET.
func (l *HTTPLoader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FileLoader reads frames from disk. Relative paths resolve against Root.
type FileLoader struct {
	Root string
}

func (l *FileLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	return fetchDecode(ctx, l, rawURL)
}

func (l *FileLoader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(rawURL, "file://")
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	return os.ReadFile(path)
}

// MuxLoader dispatches http and https URLs to HTTP and everything else to File.
type MuxLoader struct {
	HTTP Fetcher
	File Fetcher
}

// NewLoader returns a MuxLoader with default HTTP and file loaders rooted at root.
func NewLoader(root string) *MuxLoader {
	return &MuxLoader{
		HTTP: &HTTPLoader{},
		File: &FileLoader{Root: root},
	}
}

func (m *MuxLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	return fetchDecode(ctx, m, rawURL)
}

func (m *MuxLoader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	if u, err := url.Parse(rawURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return m.HTTP.Fetch(ctx, rawURL)
	}
	return m.File.Fetch(ctx, rawURL)
}

func fetchDecode(ctx context.Context, f Fetcher, rawURL string) (image.Image, error) {
	data, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}
