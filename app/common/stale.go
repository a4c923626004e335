package common

import "errors"

// ErrStale is returned when a response arrives for a request that has since
// been superseded by a newer one for the same view.
var ErrStale = errors.New("superseded by a newer request")
