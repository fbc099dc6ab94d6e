package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler admits the first keep events out of every window of size events.
// A zero window admits everything.
type sampler struct {
	keep   atomic.Int64
	window atomic.Int64
	seen   atomic.Int64
}

func newSampler(keep, window int) *sampler {
	s := &sampler{}
	s.Set(keep, window)
	return s
}

// Set changes the ratio and restarts the window.
func (s *sampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	if keep > window {
		keep = window
	}
	s.keep.Store(int64(keep))
	s.window.Store(int64(window))
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *sampler) Allow() bool {
	window := s.window.Load()
	if window == 0 {
		return true
	}
	n := (s.seen.Add(1) - 1) % window
	return n < s.keep.Load()
}

// parseRatio accepts "n/d" or "d" (meaning 1/d). Invalid input yields 0, 0.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	d, err := strconv.Atoi(raw)
	if err != nil || d <= 0 {
		return 0, 0
	}
	return 1, d
}
