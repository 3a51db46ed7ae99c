package nhpp

import (
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Optimizer method names accepted by FitOptions.Methods.
const (
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
)

// FitOptions controls the staged optimization of one model fit.
type FitOptions struct {
	// Methods is the ordered optimizer stage list, e.g.
	// [nelder-mead, nelder-mead, bfgs]. Empty selects DefaultMethods
	// for the parameter count.
	Methods []string

	// Passes repeats the whole stage list this many times, each stage
	// re-initialized from the previous stage's output. Zero means one.
	Passes int

	// MaxIterations and MaxFuncEvals bound each stage. Zero leaves the
	// optimizer's own budget in place.
	MaxIterations int
	MaxFuncEvals  int

	// GradientThreshold is the gradient-based convergence criterion.
	// Zero selects 1e-5.
	GradientThreshold float64

	// EnforceNonNegTheta rejects trial points outside the non-negative
	// orthant with the infeasibility penalty before evaluation.
	EnforceNonNegTheta bool

	// Penalty is the value returned for rejected trial points. Zero
	// selects the evaluator default.
	Penalty float64
}

// DefaultMethods returns the stage list used when none is configured:
// derivative-free simplex passes to escape poor start regions, then a
// gradient-based pass to refine precision and condition the Hessian.
// Single-parameter models go straight to the gradient-based path.
func DefaultMethods(npar int) []string {
	if npar == 1 {
		return []string{MethodBFGS}
	}
	return []string{MethodNelderMead, MethodNelderMead, MethodBFGS}
}

// StageResult records one optimizer stage for diagnostics.
type StageResult struct {
	Method string
	Status optimize.Status
	NLL    float64
	Theta  []float64
}

// FitOutcome is the result of one staged optimization run.
type FitOutcome struct {
	Theta     []float64
	NLL       float64
	Status    optimize.Status
	Converged bool
	Stages    []StageResult
}

// Fit minimizes nll from start, running the configured optimizer stages
// in sequence. The search runs in scaled coordinates z = theta/scale so
// the simplex and line searches take comparable steps in every
// direction; scale entries must be positive (nil means all ones).
//
// Non-convergence of any stage is propagated on the outcome rather than
// silently reported as success: Converged is false and Status holds the
// first failing stage's status. A stage that fails with no usable
// result aborts the fit with ErrNonConvergence.
func Fit(nll func([]float64) float64, start, scale []float64, opts FitOptions) (*FitOutcome, error) {
	npar := len(start)
	if npar == 0 {
		return nil, fmt.Errorf("empty start vector")
	}
	if scale == nil {
		scale = make([]float64, npar)
		for i := range scale {
			scale[i] = 1
		}
	}
	if len(scale) != npar {
		return nil, fmt.Errorf("scale length %d does not match start length %d", len(scale), npar)
	}
	for i, s := range scale {
		if s <= 0 {
			return nil, fmt.Errorf("scale[%d] = %g must be positive", i, s)
		}
	}

	methods := opts.Methods
	if len(methods) == 0 {
		methods = DefaultMethods(npar)
	}
	passes := opts.Passes
	if passes <= 0 {
		passes = 1
	}
	penalty := opts.Penalty
	if penalty == 0 {
		penalty = defaultPenalty
	}
	gradTol := opts.GradientThreshold
	if gradTol == 0 {
		gradTol = 1e-5
	}

	theta := make([]float64, npar)
	unscale := func(z []float64) []float64 {
		floats.MulTo(theta, z, scale)
		return theta
	}

	objective := func(z []float64) float64 {
		th := unscale(z)
		if opts.EnforceNonNegTheta {
			for _, v := range th {
				if v < 0 {
					return penalty
				}
			}
		}
		return nll(th)
	}

	problem := optimize.Problem{
		Func: objective,
		// The likelihood has no analytic gradient; the gradient-based
		// stages use central finite differences in scaled coordinates.
		Grad: func(grad, z []float64) {
			fd.Gradient(grad, objective, z, &fd.Settings{Formula: fd.Central})
		},
	}

	z := make([]float64, npar)
	floats.DivTo(z, start, scale)

	outcome := &FitOutcome{Converged: true}
	var lastF float64

	for pass := 0; pass < passes; pass++ {
		for _, name := range methods {
			method, err := newMethod(name)
			if err != nil {
				return nil, err
			}
			settings := &optimize.Settings{
				MajorIterations:   opts.MaxIterations,
				FuncEvaluations:   opts.MaxFuncEvals,
				GradientThreshold: gradTol,
			}

			result, err := optimize.Minimize(problem, z, settings, method)
			if result == nil {
				return nil, fmt.Errorf("%s stage failed with no result: %v: %w", name, err, ErrNonConvergence)
			}

			copy(z, result.X)
			lastF = result.F

			stage := StageResult{
				Method: name,
				Status: result.Status,
				NLL:    result.F,
				Theta:  append([]float64(nil), unscale(result.X)...),
			}
			outcome.Stages = append(outcome.Stages, stage)

			if err != nil || result.Status.Err() != nil {
				if outcome.Converged {
					outcome.Status = result.Status
				}
				outcome.Converged = false
			}
		}
	}

	outcome.Theta = append([]float64(nil), unscale(z)...)
	outcome.NLL = lastF
	if outcome.Converged {
		outcome.Status = outcome.Stages[len(outcome.Stages)-1].Status
	}
	return outcome, nil
}

func newMethod(name string) (optimize.Method, error) {
	switch name {
	case MethodNelderMead:
		return &optimize.NelderMead{}, nil
	case MethodBFGS:
		return &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer method %q", name)
	}
}
