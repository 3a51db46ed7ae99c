package nhpp

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// StdErrResult holds asymptotic standard errors derived from the
// observed information matrix, or an explicit invalid flag when the
// information matrix is not usable. An invalid result is distinct from
// optimizer non-convergence: the point estimate may still stand even
// when uncertainty quantification fails.
type StdErrResult struct {
	Valid   bool
	Reason  string
	StdErrs []float64
	Cov     *mat.SymDense
}

func invalidStdErr(reason string) StdErrResult {
	return StdErrResult{Valid: false, Reason: reason}
}

// StdErrors computes the observed information as the finite-difference
// Hessian of the negative log-likelihood at theta, inverts it via
// Cholesky factorization, and returns the square roots of the diagonal
// of the inverse. Failures (non-finite Hessian entries, a factorization
// that is not positive definite, inversion failure, or non-positive
// variances) yield a flagged invalid result rather than NaNs.
func StdErrors(nll func([]float64) float64, theta []float64) StdErrResult {
	n := len(theta)
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, nll, theta, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := hess.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalidStdErr("observed information has non-finite entries")
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return invalidStdErr("observed information is not positive definite")
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return invalidStdErr("observed information inversion failed: " + err.Error())
	}

	se := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov.At(i, i)
		if math.IsNaN(v) || v <= 0 {
			return invalidStdErr("inverted information has non-positive variance")
		}
		se[i] = math.Sqrt(v)
	}

	return StdErrResult{Valid: true, StdErrs: se, Cov: &cov}
}
