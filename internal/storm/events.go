// Package storm defines the coastal storm event dataset consumed by the
// NHPP fitting core: event start times and durations in decimal years,
// the observation window, and annual covariate lookups.
package storm

import (
	"fmt"
	"math"
)

// Event is one storm occurrence. Start is in decimal years and Duration
// already includes the enforced minimum inter-event gap, so no new event
// can begin inside [Start, Start+Duration).
type Event struct {
	Start     float64
	Duration  float64
	Covariate float64
}

// Window is the observation window [Start, End] in decimal years.
type Window struct {
	Start float64
	End   float64
}

// Length returns the window length in years.
func (w Window) Length() float64 { return w.End - w.Start }

// Dataset is an immutable, ordered sequence of storm events over an
// observation window.
type Dataset struct {
	Events []Event
	Window Window
}

// N returns the number of events.
func (d *Dataset) N() int { return len(d.Events) }

// DeadTime returns the total duration excluded from the observation
// window by event dead-time intervals, clipped to the window.
func (d *Dataset) DeadTime() float64 {
	total := 0.0
	for _, ev := range d.Events {
		a := math.Max(ev.Start, d.Window.Start)
		b := math.Min(ev.Start+ev.Duration, d.Window.End)
		if b > a {
			total += b - a
		}
	}
	return total
}

// Validate checks the dataset invariants: a non-degenerate window,
// at least one event, strictly increasing start times, non-negative
// durations, and all events inside the window. Coincident start times
// are forbidden; upstream preprocessing is expected to perturb ties.
func (d *Dataset) Validate() error {
	if d.Window.End <= d.Window.Start {
		return fmt.Errorf("window [%g, %g] is empty: %w", d.Window.Start, d.Window.End, ErrMissingData)
	}
	if len(d.Events) == 0 {
		return fmt.Errorf("event dataset is empty: %w", ErrMissingData)
	}
	prev := math.Inf(-1)
	for i, ev := range d.Events {
		if math.IsNaN(ev.Start) || math.IsNaN(ev.Duration) {
			return fmt.Errorf("event %d: NaN start or duration", i)
		}
		if ev.Start <= prev {
			return fmt.Errorf("event %d: start %g not strictly after previous start %g", i, ev.Start, prev)
		}
		if ev.Duration < 0 {
			return fmt.Errorf("event %d: negative duration %g", i, ev.Duration)
		}
		if ev.Start < d.Window.Start || ev.Start > d.Window.End {
			return fmt.Errorf("event %d: start %g outside window [%g, %g]", i, ev.Start, d.Window.Start, d.Window.End)
		}
		prev = ev.Start
	}
	return nil
}
