package usecase

import "errors"

// Sentinels surfaced through Result.Err. Upstream failures keep
// draw.ErrSourceUnavailable in their chain instead.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("draw not found")
	ErrDependencyUnavailable = errors.New("upstream unavailable")
)
