// Package common provides the stage timer used to report per-stage timings.
package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Timer measures a single named stage.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer starts a timer for the given stage.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the stage name.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// Stage is one completed entry of a Timings record.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Timings collects stage durations in the order the stages finished. It is
// safe for concurrent use.
type Timings struct {
	mu     sync.Mutex
	stages []Stage
}

// Track starts a stage and returns the function that ends it.
//
//	defer timings.Track("decode")()
func (t *Timings) Track(name string) func() {
	timer := NewNamedTimer(name)
	return func() { t.Add(name, timer.Stop()) }
}

// Add records a finished stage. Repeated names accumulate.
func (t *Timings) Add(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.stages {
		if t.stages[i].Name == name {
			t.stages[i].Duration += d
			return
		}
	}
	t.stages = append(t.stages, Stage{Name: name, Duration: d})
}

// Stages returns a copy of the recorded stages.
func (t *Timings) Stages() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Stage(nil), t.stages...)
}

// Get returns the duration of a stage and whether it was recorded.
func (t *Timings) Get(name string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.stages {
		if s.Name == name {
			return s.Duration, true
		}
	}
	return 0, false
}

// Total sums all stages.
func (t *Timings) Total() time.Duration {
	var total time.Duration
	for _, s := range t.Stages() {
		total += s.Duration
	}
	return total
}

// Milliseconds returns stage durations keyed by name, in milliseconds.
func (t *Timings) Milliseconds() map[string]float64 {
	stages := t.Stages()
	out := make(map[string]float64, len(stages)+1)
	var total time.Duration
	for _, s := range stages {
		out[s.Name] = float64(s.Duration.Microseconds()) / 1000
		total += s.Duration
	}
	out["total"] = float64(total.Microseconds()) / 1000
	return out
}

// MarshalJSON encodes the timings as a name to milliseconds object.
func (t *Timings) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Milliseconds())
}

func (t *Timings) String() string {
	stages := t.Stages()
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s=%v", s.Name, s.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
