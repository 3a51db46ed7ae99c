package nhpp

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/coastalrisk/stormfit/internal/storm"
)

// DurationSampler draws one event duration (including the enforced
// inter-event gap) in years.
type DurationSampler func(rng *rand.Rand) float64

// FixedDuration returns a sampler that always yields d.
func FixedDuration(d float64) DurationSampler {
	return func(*rand.Rand) float64 { return d }
}

// LogNormalDurations returns a sampler drawing log-normal durations with
// the given log-scale parameters. Sampling goes through the quantile
// function so the caller's seeded rng stays the only randomness source.
func LogNormalDurations(mu, sigma float64) DurationSampler {
	dist := distuv.LogNormal{Mu: mu, Sigma: sigma}
	return func(rng *rand.Rand) float64 {
		return dist.Quantile(rng.Float64())
	}
}

// SimOptions controls thinning simulation of a fitted model.
type SimOptions struct {
	Window storm.Window
	Theta  []float64

	// MaxRate is the dominating homogeneous rate for thinning. Zero
	// estimates a bound by scanning the intensity over the window with
	// zero elapsed time since the last event (the cluster term's
	// maximum for decaying templates) and adding 20% headroom.
	MaxRate float64

	// Durations samples per-event dead time. Nil means zero-duration
	// events.
	Durations DurationSampler

	Seed int64
}

// Simulate generates a synthetic event dataset from the intensity via
// Lewis-Shedler thinning: homogeneous candidate arrivals at MaxRate are
// accepted with probability lambda/MaxRate, and accepted events open a
// dead-time interval during which no candidate is considered.
func Simulate(lambda Intensity, opts SimOptions) (*storm.Dataset, error) {
	if opts.Window.End <= opts.Window.Start {
		return nil, fmt.Errorf("empty simulation window [%g, %g]", opts.Window.Start, opts.Window.End)
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	lamMax := opts.MaxRate
	if lamMax <= 0 {
		lamMax = boundIntensity(lambda, opts.Theta, opts.Window)
		if lamMax <= 0 {
			return nil, fmt.Errorf("intensity bound is non-positive over the window")
		}
	}

	var events []storm.Event
	t := opts.Window.Start
	tlast := math.Inf(-1)
	for {
		t += rng.ExpFloat64() / lamMax
		if t >= opts.Window.End {
			break
		}
		lam := lambda(opts.Theta, t, tlast)
		if math.IsNaN(lam) || lam < 0 {
			return nil, fmt.Errorf("intensity undefined at t=%g during simulation", t)
		}
		if lam > lamMax {
			return nil, fmt.Errorf("intensity %g exceeds thinning bound %g at t=%g", lam, lamMax, t)
		}
		if rng.Float64()*lamMax >= lam {
			continue
		}

		dur := 0.0
		if opts.Durations != nil {
			dur = opts.Durations(rng)
			if dur < 0 {
				return nil, fmt.Errorf("duration sampler returned negative duration %g", dur)
			}
		}
		events = append(events, storm.Event{Start: t, Duration: dur})
		tlast = t
		t += dur
	}

	return &storm.Dataset{Events: events, Window: opts.Window}, nil
}

// boundIntensity scans the window for the largest intensity value,
// probing with tlast just behind t so a decaying cluster term is at its
// peak. The scan assumes cluster contributions are non-increasing in
// the time since the last event.
func boundIntensity(lambda Intensity, theta []float64, w storm.Window) float64 {
	const steps = 2048
	h := w.Length() / steps
	maxLam := 0.0
	for i := 0; i <= steps; i++ {
		t := w.Start + float64(i)*h
		lam := lambda(theta, t, t)
		if math.IsNaN(lam) {
			continue
		}
		if lam > maxLam {
			maxLam = lam
		}
	}
	return 1.2 * maxLam
}
