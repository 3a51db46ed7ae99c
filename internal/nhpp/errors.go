package nhpp

import "errors"

// ErrNonConvergence marks a fit whose final optimizer stage ended
// without meeting its convergence criterion, or a stage that failed
// outright (e.g. singular line searches at every trial point).
var ErrNonConvergence = errors.New("optimizer did not converge")
