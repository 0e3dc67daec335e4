// Package common provides the timing and numeric helpers shared by the
// estimation stages.
package common

import (
	"log/slog"
	"time"
)

// Lap is the time spent in one named stage.
type Lap struct {
	Stage    string
	Duration time.Duration
}

// Stopwatch splits one run into consecutive stages. Each Lap covers the time
// since the previous Lap, or since the start for the first one.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
	now   func() time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	return newStopwatch(time.Now)
}

func newStopwatch(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{start: t, last: t, now: now}
}

// Lap closes the current stage and returns its duration in nanoseconds.
func (s *Stopwatch) Lap(stage string) int64 {
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.laps = append(s.laps, Lap{Stage: stage, Duration: d})
	return d.Nanoseconds()
}

// Skip restarts the current stage without recording it.
func (s *Stopwatch) Skip() {
	s.last = s.now()
}

// Elapsed returns the time since the start.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

// Laps returns the recorded stages in order.
func (s *Stopwatch) Laps() []Lap {
	return append([]Lap(nil), s.laps...)
}

// LogValue renders the stages as a group of millisecond values.
func (s *Stopwatch) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.laps))
	for _, l := range s.laps {
		attrs = append(attrs, slog.Float64(l.Stage+"_ms", float64(l.Duration.Microseconds())/1000))
	}
	return slog.GroupValue(attrs...)
}
