package video

import (
	"bytes"
	"image"
	"image/color"
	"slices"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    []string
	}{
		{"libx264", 23, []string{"-crf", "23", "-preset", "medium"}},
		{"h264_nvenc", 28, []string{"-cq", "28"}},
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			args := buildArgs("out.mp4", Params{Width: 640, Height: 360, FPS: 30, Encoder: tt.encoder, Quality: tt.quality})
			joined := strings.Join(args, " ")
			if !strings.Contains(joined, strings.Join(tt.want, " ")) {
				t.Errorf("quality args %v missing from %q", tt.want, joined)
			}
			if !strings.Contains(joined, "-video_size 640x360") {
				t.Errorf("missing frame size: %q", joined)
			}
			if args[len(args)-1] != "out.mp4" {
				t.Errorf("Expected output path last, got %q", args[len(args)-1])
			}
			if slices.Contains(args, "-vf") {
				t.Error("unexpected pad filter for even dimensions")
			}
		})
	}
}

func TestBuildArgsOddSize(t *testing.T) {
	args := buildArgs("out.mp4", Params{Width: 641, Height: 360, FPS: 30, Encoder: "libx264"})
	if !slices.Contains(args, "-vf") {
		t.Errorf("Expected pad filter for odd width, got %v", args)
	}
}

func TestWriteRawRGBA(t *testing.T) {
	scratch := image.NewRGBA(image.Rect(0, 0, 2, 2))

	var buf bytes.Buffer
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 1, color.RGBA{9, 8, 7, 255})
	if err := writeRawRGBA(&buf, src, scratch); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 16 {
		t.Fatalf("Expected 16 bytes, got %d", buf.Len())
	}
	if !bytes.Equal(buf.Bytes()[12:], []byte{9, 8, 7, 255}) {
		t.Errorf("unexpected last pixel %v", buf.Bytes()[12:])
	}

	// Non-RGBA sources and offset bounds go through the scratch buffer.
	buf.Reset()
	gray := image.NewGray(image.Rect(5, 5, 8, 8))
	for i := range gray.Pix {
		gray.Pix[i] = 100
	}
	if err := writeRawRGBA(&buf, gray, scratch); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 16 {
		t.Fatalf("Expected 16 bytes, got %d", buf.Len())
	}
	if buf.Bytes()[0] != 100 {
		t.Errorf("Expected gray 100 at origin, got %d", buf.Bytes()[0])
	}
}
