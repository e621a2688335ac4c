// Package video streams rendered surfaces into an ffmpeg process.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"
)

var ErrClosed = errors.New("video: encoder closed")

var _ Encoder = (*FFmpegEncoder)(nil)

// Params describe the output stream.
type Params struct {
	Width   int
	Height  int
	FPS     int
	Encoder string
	Quality int
}

// Encoder accepts frames of a fixed size and writes them to a video file.
type Encoder interface {
	WriteFrame(img image.Image) error
	Close() error
}

// FFmpegEncoder pipes raw RGBA frames to an ffmpeg child process.
type FFmpegEncoder struct {
	params Params
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	buf    *image.RGBA

	mu     sync.Mutex
	frames int
	closed bool
}

// Start launches ffmpeg writing to path. Cancelling ctx kills the process.
func Start(ctx context.Context, path string, p Params) (*FFmpegEncoder, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("video: invalid frame size %dx%d", p.Width, p.Height)
	}
	if p.FPS <= 0 {
		p.FPS = 30
	}
	if p.Encoder == "" {
		p.Encoder = "libx264"
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildArgs(path, p)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &FFmpegEncoder{
		params: p,
		cmd:    cmd,
		stdin:  stdin,
		buf:    image.NewRGBA(image.Rect(0, 0, p.Width, p.Height)),
	}, nil
}

// WriteFrame appends one frame. Images of another size are drawn at the origin and cropped.
func (e *FFmpegEncoder) WriteFrame(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := writeRawRGBA(e.stdin, img, e.buf); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	e.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (e *FFmpegEncoder) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Close flushes the stream and waits for ffmpeg to exit.
func (e *FFmpegEncoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w", err)
	}
	return nil
}

func buildArgs(path string, p Params) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", p.Encoder,
	}
	args = append(args, qualityArgs(p.Encoder, p.Quality)...)
	// yuv420p needs even dimensions
	if p.Width%2 != 0 || p.Height%2 != 0 {
		args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}
	return append(args, path)
}

func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// writeRawRGBA writes img as tightly packed RGBA. Anything that is not already a packed
// RGBA of the stream size goes through scratch first.
func writeRawRGBA(w io.Writer, img image.Image, scratch *image.RGBA) error {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect != scratch.Rect || rgba.Stride != rgba.Rect.Dx()*4 {
		draw.Draw(scratch, scratch.Rect, image.Transparent, image.Point{}, draw.Src)
		draw.Draw(scratch, scratch.Rect, img, img.Bounds().Min, draw.Src)
		rgba = scratch
	}
	_, err := w.Write(rgba.Pix)
	return err
}
