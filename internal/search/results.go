// Package search enumerates the annual x seasonal x cluster model grid,
// fits every combination, and collects per-model results for downstream
// comparison and selection.
package search

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/optimize"
)

// Combination identifies one cell of the model grid.
type Combination struct {
	Index    int
	Annual   string
	Seasonal string
	Cluster  string
}

// FitResult is the immutable outcome of fitting one composite rate
// model. Failed combinations are still recorded, with Err set and
// Converged false, so the grid is always complete.
type FitResult struct {
	Combination

	ModelID string
	Npar    int

	Theta     []float64
	NLL       float64
	AIC       float64
	Status    optimize.Status
	Converged bool
	Err       string

	StdErrs      []float64
	StdErrValid  bool
	StdErrReason string

	// Rate evaluates the fitted intensity lambda(t, tlast), closed over
	// the fitted parameters, so downstream stages can evaluate or
	// simulate the model without re-fitting. Nil when the fit failed.
	Rate func(t, tlast float64) float64
}

// SortByAIC returns a copy of results ordered by ascending AIC, with
// failed fits last.
func SortByAIC(results []FitResult) []FitResult {
	out := append([]FitResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Err == "") != (out[j].Err == "") {
			return out[i].Err == ""
		}
		return out[i].AIC < out[j].AIC
	})
	return out
}

// WriteCSV writes one row per grid combination: model identifier,
// convergence status, objective value, AIC, fitted parameters and
// standard errors (or the invalid-flag reason).
func WriteCSV(path string, results []FitResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"index", "model", "annual", "seasonal", "cluster", "npar",
		"converged", "status", "nll", "aic", "theta", "stderr", "stderr_valid", "error",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		stderr := joinFloats(r.StdErrs)
		if !r.StdErrValid {
			stderr = r.StdErrReason
		}
		record := []string{
			strconv.Itoa(r.Index),
			r.ModelID,
			r.Annual,
			r.Seasonal,
			r.Cluster,
			strconv.Itoa(r.Npar),
			strconv.FormatBool(r.Converged),
			r.Status.String(),
			fmt.Sprintf("%f", r.NLL),
			fmt.Sprintf("%f", r.AIC),
			joinFloats(r.Theta),
			stderr,
			strconv.FormatBool(r.StdErrValid),
			r.Err,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', 8, 64)
	}
	return strings.Join(parts, ";")
}
