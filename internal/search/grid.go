package search

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/coastalrisk/stormfit/internal/nhpp"
	"github.com/coastalrisk/stormfit/internal/rate"
	"github.com/coastalrisk/stormfit/internal/storm"
)

// Grid lists the sub-model names to combine, one list per component.
type Grid struct {
	Annual   []string
	Seasonal []string
	Cluster  []string
}

// Size returns the number of combinations in the grid.
func (g Grid) Size() int {
	return len(g.Annual) * len(g.Seasonal) * len(g.Cluster)
}

// Combinations enumerates the full Cartesian product in fixed order:
// annual outermost, cluster innermost.
func (g Grid) Combinations() []Combination {
	combos := make([]Combination, 0, g.Size())
	idx := 0
	for _, a := range g.Annual {
		for _, s := range g.Seasonal {
			for _, c := range g.Cluster {
				combos = append(combos, Combination{Index: idx, Annual: a, Seasonal: s, Cluster: c})
				idx++
			}
		}
	}
	return combos
}

// Options controls the model-search loop.
type Options struct {
	Eval nhpp.Options
	Fit  nhpp.FitOptions

	// WarmStart seeds each clustering variant with the fitted
	// annual/seasonal parameters of the non-clustering variant that
	// shares its annual/seasonal prefix, concatenated with the cluster
	// template's default start values. Warm-starting serializes the
	// fits within each prefix chain.
	WarmStart bool

	// Workers bounds the worker pool used when WarmStart is disabled.
	// Zero means runtime.NumCPU().
	Workers int
}

// Run fits every combination of the grid and returns one FitResult per
// combination, ordered by combination index. A single combination's
// failure is recorded on its result and never aborts the loop.
func Run(reg *rate.Registry, data *storm.Dataset, grid Grid, opts Options) ([]FitResult, error) {
	if data == nil {
		return nil, fmt.Errorf("event dataset not provided: %w", storm.ErrMissingData)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if grid.Size() == 0 {
		return nil, fmt.Errorf("empty model grid")
	}

	combos := grid.Combinations()
	results := make([]FitResult, len(combos))

	if opts.WarmStart {
		runWarm(reg, data, grid, opts, results)
	} else {
		runParallel(reg, data, combos, opts, results)
	}
	return results, nil
}

// runWarm walks the grid sequentially within each annual/seasonal
// prefix chain so later cluster variants can reuse the fitted prefix
// parameters of the chain's non-clustering model.
func runWarm(reg *rate.Registry, data *storm.Dataset, grid Grid, opts Options, results []FitResult) {
	idx := 0
	for _, a := range grid.Annual {
		for _, s := range grid.Seasonal {
			var prefix []float64
			for _, c := range grid.Cluster {
				combo := Combination{Index: idx, Annual: a, Seasonal: s, Cluster: c}
				idx++

				var start []float64
				if comp, err := reg.Compose(a, s, c); err == nil && prefix != nil {
					na, ns, _ := comp.Npars()
					if len(prefix) == na+ns {
						start = append(append([]float64(nil), prefix...), comp.Start()[na+ns:]...)
					}
				}

				r := fitOne(reg, data, combo, opts, start)
				results[combo.Index] = r

				// Only a converged non-clustering fit seeds the chain.
				if r.Converged && r.Err == "" {
					if comp, err := reg.Compose(a, s, c); err == nil {
						na, ns, nc := comp.Npars()
						if nc == 0 {
							prefix = append([]float64(nil), r.Theta[:na+ns]...)
						}
					}
				}
			}
		}
	}
}

// runParallel fits all combinations on a worker pool; combinations are
// independent, so the only synchronization is collecting results into
// preassigned slots.
func runParallel(reg *rate.Registry, data *storm.Dataset, combos []Combination, opts Options, results []FitResult) {
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(combos) {
		numWorkers = len(combos)
	}

	jobs := make(chan Combination)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for combo := range jobs {
				results[combo.Index] = fitOne(reg, data, combo, opts, nil)
			}
		}()
	}

	for _, combo := range combos {
		jobs <- combo
	}
	close(jobs)
	wg.Wait()
}

// fitOne builds, fits and summarizes one combination. Every failure
// mode is contained in the returned FitResult.
func fitOne(reg *rate.Registry, data *storm.Dataset, combo Combination, opts Options, start []float64) FitResult {
	res := FitResult{
		Combination: combo,
		ModelID:     combo.Annual + "+" + combo.Seasonal + "+" + combo.Cluster,
	}
	logger := log.WithFields(log.Fields{
		"model": res.ModelID,
		"index": combo.Index,
	})

	comp, err := reg.Compose(combo.Annual, combo.Seasonal, combo.Cluster)
	if err != nil {
		res.Err = err.Error()
		logger.WithError(err).Warn("model composition failed")
		return res
	}
	res.Npar = comp.Npar()

	if start == nil {
		start = comp.Start()
	}
	if err := comp.CheckStart(start); err != nil {
		res.Err = err.Error()
		logger.WithError(err).Warn("start parameters rejected")
		return res
	}

	ev, err := nhpp.NewEvaluator(comp.Eval, data, opts.Eval)
	if err != nil {
		res.Err = err.Error()
		logger.WithError(err).Warn("evaluator construction failed")
		return res
	}

	fitOpts := opts.Fit
	if len(fitOpts.Methods) == 0 || comp.Npar() == 1 {
		fitOpts.Methods = nhpp.DefaultMethods(comp.Npar())
	}
	if fitOpts.Penalty == 0 {
		fitOpts.Penalty = opts.Eval.Penalty
	}

	began := time.Now()
	outcome, err := nhpp.Fit(ev.NegLogLik, start, comp.Scale(), fitOpts)
	if err != nil {
		res.Err = err.Error()
		logger.WithError(err).Warn("fit failed")
		return res
	}

	res.Theta = outcome.Theta
	res.NLL = outcome.NLL
	res.AIC = 2*outcome.NLL + 2*float64(comp.Npar())
	res.Status = outcome.Status
	res.Converged = outcome.Converged

	se := nhpp.StdErrors(ev.NegLogLik, outcome.Theta)
	res.StdErrValid = se.Valid
	res.StdErrs = se.StdErrs
	res.StdErrReason = se.Reason

	theta := outcome.Theta
	res.Rate = func(t, tlast float64) float64 {
		return comp.Eval(theta, t, tlast)
	}

	logger.WithFields(log.Fields{
		"converged": res.Converged,
		"status":    res.Status.String(),
		"nll":       res.NLL,
		"npar":      res.Npar,
		"elapsed":   time.Since(began).Round(time.Millisecond).String(),
	}).Info("model fitted")

	return res
}
