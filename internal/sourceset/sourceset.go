// Package sourceset picks the frame URL template for the current viewport width
// from a responsive set of breakpoints.
package sourceset

import (
	"errors"
	"strconv"
	"strings"
)

// invalidWidth marks a breakpoint that failed to parse. It never qualifies.
const invalidWidth = -1

// Set is an index-aligned list of breakpoint widths and URL templates.
// Widths are expected in ascending order; that is the caller's responsibility.
type Set struct {
	Widths    []int
	Templates []string
	valid     []bool
}

// Parse splits the comma-delimited sizes and srcs values into a Set.
func Parse(sizes, srcs string) Set {
	var s Set
	for _, raw := range split(sizes) {
		w, ok := leadingInt(raw)
		if !ok {
			s.Widths = append(s.Widths, invalidWidth)
			s.valid = append(s.valid, false)
			continue
		}
		s.Widths = append(s.Widths, w)
		s.valid = append(s.valid, true)
	}
	for _, raw := range split(srcs) {
		s.Templates = append(s.Templates, strings.TrimSpace(raw))
	}
	return s
}

// Len returns the number of usable breakpoints (the shorter of the two lists).
func (s Set) Len() int {
	return min(len(s.Widths), len(s.Templates))
}

// Index returns the position of the greatest width not exceeding viewportWidth.
// It falls back to 0 when nothing qualifies, and returns -1 for an empty set.
func (s Set) Index(viewportWidth int) int {
	if len(s.Templates) == 0 {
		return -1
	}
	idx := 0
	for i := 0; i < s.Len(); i++ {
		if !s.qualifies(i) {
			continue
		}
		if viewportWidth >= s.Widths[i] {
			idx = i
		}
	}
	return idx
}

// Resolve returns the template selected for viewportWidth, or "" if the set has no templates.
func (s Set) Resolve(viewportWidth int) string {
	idx := s.Index(viewportWidth)
	if idx < 0 {
		return ""
	}
	return s.Templates[idx]
}

func (s Set) qualifies(i int) bool {
	if s.valid == nil {
		return s.Widths[i] >= 0
	}
	return s.valid[i]
}

// Resolve parses sizes and srcs and selects the template for viewportWidth.
func Resolve(sizes, srcs string, viewportWidth int) string {
	return Parse(sizes, srcs).Resolve(viewportWidth)
}

// leadingInt reads an optionally signed decimal prefix of v after leading whitespace, so
// "768px" yields 768. Values past the int range saturate.
func leadingInt(v string) (int, bool) {
	v = strings.TrimLeft(v, " \t\n\r\f\v")
	end := 0
	if end < len(v) && (v[end] == '+' || v[end] == '-') {
		end++
	}
	digits := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(v[:end], 10, 0)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return int(n), true
}

func split(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Split(v, ",")
}
