package vitals

import (
	"math"
	"sort"
	"time"
)

// sigmaFloor replaces a computed standard deviation of zero (constant window)
// so downstream normalization never divides by zero.
const sigmaFloor = 1e-6

// sample is a single timestamped value in a window.
type sample struct {
	timestamp time.Time
	value     float64
}

// window is the bounded ordered sequence of samples for one (subject, vital)
// pair. Samples are kept in non-decreasing timestamp order; inserts evict
// everything older than the window length relative to the newest sample.
// Not safe for concurrent use; the Engine serializes access per subject.
type window struct {
	samples []sample
	length  time.Duration
}

func newWindow(length time.Duration) *window {
	return &window{length: length}
}

// insert appends a sample and evicts entries older than ts - length.
// The caller has already verified ordering; ts must be >= the latest sample's
// timestamp (minus tolerance handled by the Engine).
func (w *window) insert(ts time.Time, value float64) {
	w.samples = append(w.samples, sample{timestamp: ts, value: value})

	cutoff := ts.Add(-w.length)
	// Samples are ordered, so the eviction point is found by binary search
	// rather than a full rescan.
	start := sort.Search(len(w.samples), func(i int) bool {
		return !w.samples[i].timestamp.Before(cutoff)
	})
	if start > 0 {
		w.samples = w.samples[start:]
	}
}

// latest returns the newest sample timestamp, or the zero time if empty.
func (w *window) latest() time.Time {
	if len(w.samples) == 0 {
		return time.Time{}
	}
	return w.samples[len(w.samples)-1].timestamp
}

func (w *window) count() int {
	return len(w.samples)
}

// oldest returns the oldest retained sample timestamp, or the zero time if empty.
func (w *window) oldest() time.Time {
	if len(w.samples) == 0 {
		return time.Time{}
	}
	return w.samples[0].timestamp
}

// stats computes the sample mean and sample standard deviation (Bessel's
// correction) over the current window using Welford's algorithm. A constant
// window yields the sigma floor instead of zero.
func (w *window) stats() (mean, stddev float64) {
	n := len(w.samples)
	if n == 0 {
		return 0, sigmaFloor
	}

	var m, m2 float64
	for i, s := range w.samples {
		delta := s.value - m
		m += delta / float64(i+1)
		m2 += delta * (s.value - m)
	}

	if n < 2 {
		return m, sigmaFloor
	}
	stddev = math.Sqrt(m2 / float64(n-1))
	if stddev < sigmaFloor {
		stddev = sigmaFloor
	}
	return m, stddev
}
