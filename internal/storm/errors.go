package storm

import "errors"

// ErrMissingData marks a missing or empty upstream artifact (event
// dataset or covariate table). Fatal: callers must not proceed with
// partial processing.
var ErrMissingData = errors.New("missing prerequisite data")
