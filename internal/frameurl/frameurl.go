// Package frameurl turns a frame URL template into the concrete URL of one frame.
package frameurl

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder is replaced by the zero-padded frame number.
const Placeholder = "#"

// Digits returns the pad width used for a sequence whose highest index is totalFrames.
func Digits(totalFrames int) int {
	return len(strconv.Itoa(totalFrames))
}

// Pad formats frame with leading zeros to the width of totalFrames.
func Pad(frame, totalFrames int) string {
	return fmt.Sprintf("%0*d", Digits(totalFrames), frame)
}

// Synthesize replaces the first placeholder in template with the padded frame number.
// An empty template yields an empty URL.
func Synthesize(template string, frame, totalFrames int) string {
	if template == "" {
		return ""
	}
	return strings.Replace(template, Placeholder, Pad(frame, totalFrames), 1)
}

// All returns the URLs of every frame in [0, totalFrames].
func All(template string, totalFrames int) []string {
	if template == "" || totalFrames < 0 {
		return nil
	}
	urls := make([]string, 0, totalFrames+1)
	for i := 0; i <= totalFrames; i++ {
		urls = append(urls, Synthesize(template, i, totalFrames))
	}
	return urls
}
