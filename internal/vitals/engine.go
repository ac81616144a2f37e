package vitals

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOutOfOrderReading marks readings older than the window's latest entry.
// Match with errors.Is; the concrete *OutOfOrderError carries the timestamps.
var ErrOutOfOrderReading = errors.New("out-of-order reading")

// OutOfOrderError reports a rejected reading. The reading is dropped from the
// window but the caller may still score against the existing statistics.
type OutOfOrderError struct {
	Subject   string
	Vital     string
	Timestamp time.Time
	Latest    time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order reading for %s/%s: %s precedes window latest %s",
		e.Subject, e.Vital, e.Timestamp.Format(time.RFC3339Nano), e.Latest.Format(time.RFC3339Nano))
}

func (e *OutOfOrderError) Unwrap() error {
	return ErrOutOfOrderReading
}

// Defaults is the clinical-default (mu, sigma) pair used for a vital while its
// window holds fewer than the minimum sample count.
type Defaults struct {
	Mean   float64
	StdDev float64
}

// Config parameterizes the statistics engine. All values come from
// configuration; the engine computes nothing about them itself.
type Config struct {
	// Window is the trailing time span of retained samples.
	Window time.Duration
	// MinSamples is the count below which Defaults are returned.
	MinSamples int
	// Tolerance allows slightly out-of-order inserts. Zero enforces strict
	// per-subject/vital monotonicity.
	Tolerance time.Duration
	// Defaults maps vital name to its clinical-default statistics.
	Defaults map[string]Defaults
}

// Statistics is the derived result of a statistics query. SampleCount always
// reflects the true number of retained samples, so callers can tell a
// clinical-default answer (SampleCount < MinSamples) from a live one.
type Statistics struct {
	Mean        float64
	StdDev      float64
	SampleCount int
}

// Engine owns all per-(subject, vital) windows. Windows are created lazily on
// first reading. Safe for concurrent use; subjects are independently locked so
// readings for different subjects never contend.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	subjects map[string]*subjectWindows
}

// subjectWindows groups one subject's windows under a single lock.
type subjectWindows struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewEngine creates a statistics engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	return &Engine{
		cfg:      cfg,
		subjects: make(map[string]*subjectWindows),
	}
}

// Update inserts a reading into the subject/vital window, evicting entries
// older than the window length relative to the new timestamp. Readings that
// precede the window's latest entry by more than the tolerance are dropped and
// reported as *OutOfOrderError; the window is unchanged.
func (e *Engine) Update(subject, vital string, ts time.Time, value float64) error {
	sw := e.subject(subject)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	w, ok := sw.windows[vital]
	if !ok {
		w = newWindow(e.cfg.Window)
		sw.windows[vital] = w
	}

	if latest := w.latest(); !latest.IsZero() && ts.Before(latest.Add(-e.cfg.Tolerance)) {
		return &OutOfOrderError{Subject: subject, Vital: vital, Timestamp: ts, Latest: latest}
	}

	w.insert(ts, value)
	return nil
}

// Statistics returns the sample mean and standard deviation for the
// subject/vital window. Below MinSamples the configured clinical defaults are
// substituted, with SampleCount still reporting the true count. A vital with
// no samples and no configured default yields a zero mean with the sigma
// floor, which the scorer treats as maximal uncertainty.
func (e *Engine) Statistics(subject, vital string) Statistics {
	e.mu.RLock()
	sw, ok := e.subjects[subject]
	e.mu.RUnlock()

	var count int
	var mean, stddev float64
	if ok {
		sw.mu.Lock()
		if w, exists := sw.windows[vital]; exists {
			count = w.count()
			mean, stddev = w.stats()
		}
		sw.mu.Unlock()
	}

	if count < e.cfg.MinSamples {
		if def, exists := e.cfg.Defaults[vital]; exists {
			return Statistics{Mean: def.Mean, StdDev: def.StdDev, SampleCount: count}
		}
	}
	if count == 0 {
		return Statistics{Mean: 0, StdDev: sigmaFloor, SampleCount: 0}
	}
	return Statistics{Mean: mean, StdDev: stddev, SampleCount: count}
}

// OldestRetained returns the oldest retained sample timestamp for a
// subject/vital window and whether the window holds any samples.
func (e *Engine) OldestRetained(subject, vital string) (time.Time, bool) {
	e.mu.RLock()
	sw, ok := e.subjects[subject]
	e.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	w, exists := sw.windows[vital]
	if !exists || w.count() == 0 {
		return time.Time{}, false
	}
	return w.oldest(), true
}

// subject returns the window group for a subject, creating it on first use.
func (e *Engine) subject(id string) *subjectWindows {
	e.mu.RLock()
	sw, ok := e.subjects[id]
	e.mu.RUnlock()
	if ok {
		return sw
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sw, ok = e.subjects[id]; ok {
		return sw
	}
	sw = &subjectWindows{windows: make(map[string]*window)}
	e.subjects[id] = sw
	return sw
}
