// Package nhpp fits non-homogeneous Poisson process timing models to
// storm event datasets: point-process log-likelihood evaluation with
// dead-time exclusion, staged numerical optimization, observed-
// information standard errors, and thinning simulation.
package nhpp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/coastalrisk/stormfit/internal/storm"
)

// Intensity is a conditional intensity function lambda(theta, t, tlast),
// where tlast is the start of the most recent event strictly before t
// (-Inf before the first event). It must tolerate arbitrary theta and
// may return NaN or negative values for infeasible parameters.
type Intensity func(theta []float64, t, tlast float64) float64

// Options controls likelihood evaluation.
type Options struct {
	// MinimumRate is the configured intensity floor. Any evaluation of
	// lambda below this floor (or below zero) makes the trial point
	// infeasible.
	MinimumRate float64

	// Penalty is the large finite value returned for infeasible trial
	// points instead of NaN, so derivative-free optimizers can recover.
	// Zero selects the default of 1e10.
	Penalty float64

	// QuadPointsPerYear sets the Gauss-Legendre node density for the
	// intensity integral. Zero selects the default of 64.
	QuadPointsPerYear int
}

const (
	defaultPenalty       = 1e10
	defaultQuadPerYear   = 64
	minQuadPointsSegment = 4
)

// segment is a maximal live interval [a, b) of the observation window:
// no dead time inside it, so the most recent prior event is constant
// across the whole segment.
type segment struct {
	a, b  float64
	tlast float64
}

// Evaluator computes the NHPP negative log-likelihood for one dataset
// and one intensity function. It is stateless after construction and
// safe for concurrent use.
type Evaluator struct {
	lambda Intensity
	data   *storm.Dataset
	segs   []segment
	opts   Options
}

// NewEvaluator validates the dataset, precomputes the live segments of
// the observation window (the complement of the dead-time intervals),
// and returns a reusable evaluator.
func NewEvaluator(lambda Intensity, data *storm.Dataset, opts Options) (*Evaluator, error) {
	if lambda == nil {
		return nil, fmt.Errorf("intensity function not provided")
	}
	if data == nil {
		return nil, fmt.Errorf("event dataset not provided: %w", storm.ErrMissingData)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if opts.Penalty == 0 {
		opts.Penalty = defaultPenalty
	}
	if opts.QuadPointsPerYear == 0 {
		opts.QuadPointsPerYear = defaultQuadPerYear
	}
	return &Evaluator{
		lambda: lambda,
		data:   data,
		segs:   liveSegments(data),
		opts:   opts,
	}, nil
}

// liveSegments decomposes [window.Start, window.End] into the maximal
// intervals outside every dead-time interval [start, start+duration).
// Each segment carries the start time of the last event before it, so
// tlast never has to be re-derived at integration points, including
// across dead-time boundaries.
func liveSegments(d *storm.Dataset) []segment {
	var segs []segment
	cur := d.Window.Start
	tlast := math.Inf(-1)
	for _, ev := range d.Events {
		if cur >= d.Window.End {
			break
		}
		if ev.Start > cur {
			segs = append(segs, segment{a: cur, b: math.Min(ev.Start, d.Window.End), tlast: tlast})
		}
		end := ev.Start + ev.Duration
		if end > cur {
			cur = end
		}
		tlast = ev.Start
	}
	if cur < d.Window.End {
		segs = append(segs, segment{a: cur, b: d.Window.End, tlast: tlast})
	}
	return segs
}

// feasible reports whether one intensity evaluation is usable: finite,
// non-negative and not below the configured floor.
func (e *Evaluator) feasible(lam float64) bool {
	if math.IsNaN(lam) || math.IsInf(lam, 0) {
		return false
	}
	return lam >= 0 && lam >= e.opts.MinimumRate
}

// NegLogLik computes the negative point-process log-likelihood
//
//	-sum_i log lambda(theta, t_i, t_{i-1}) + integral over live time
//
// where the integral runs over the observation window with dead-time
// intervals excluded exactly. Infeasible trial points (any intensity
// evaluation negative, NaN, below the floor, or zero at an event time)
// return the configured large finite penalty rather than NaN, so the
// evaluator is safe to call with arbitrary theta.
func (e *Evaluator) NegLogLik(theta []float64) float64 {
	pointSum := 0.0
	tlast := math.Inf(-1)
	for _, ev := range e.data.Events {
		lam := e.lambda(theta, ev.Start, tlast)
		if !e.feasible(lam) || lam == 0 {
			return e.opts.Penalty
		}
		pointSum += math.Log(lam)
		tlast = ev.Start
	}

	integral := 0.0
	for _, seg := range e.segs {
		infeasible := false
		f := func(s float64) float64 {
			lam := e.lambda(theta, s, seg.tlast)
			if !e.feasible(lam) {
				infeasible = true
				return 0
			}
			return lam
		}
		n := int(math.Ceil((seg.b - seg.a) * float64(e.opts.QuadPointsPerYear)))
		if n < minQuadPointsSegment {
			n = minQuadPointsSegment
		}
		integral += quad.Fixed(f, seg.a, seg.b, n, nil, 0)
		if infeasible {
			return e.opts.Penalty
		}
	}

	nll := integral - pointSum
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return e.opts.Penalty
	}
	return nll
}

// LogLik returns the log-likelihood at theta (the negation of
// NegLogLik; the penalty convention carries over with opposite sign).
func (e *Evaluator) LogLik(theta []float64) float64 {
	return -e.NegLogLik(theta)
}
