package internalerr

import "errors"

// Sentinel errors for the fatal run conditions
var (
	ErrMissingInput              = errors.New("missing input")
	ErrSchemaViolation           = errors.New("schema violation")
	ErrClassificationUnavailable = errors.New("language classification unavailable")
	ErrInvalidConfig             = errors.New("invalid configuration")
	ErrConservation              = errors.New("record conservation violated")
)
