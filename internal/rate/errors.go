package rate

import "errors"

// ErrBadStart marks a caller-supplied start vector outside a template's
// domain constraints. Surfaced before any optimizer call so callers can
// resample the start point.
var ErrBadStart = errors.New("bad start parameters")
