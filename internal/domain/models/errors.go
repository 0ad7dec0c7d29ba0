package models

import "errors"

var (
	// ErrDataUnavailable reports an upstream provider failure, a missing credential or an empty result.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientData reports fewer usable rows than the statistical minimum.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSchemaMismatch reports a feature vector whose schema differs from the bound artifact.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNotConfigured        = errors.New("not configured")
)

// IsDegradable reports whether err is a data problem a caller should degrade on instead of aborting.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrInsufficientData)
}
