package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPeriod indicates a month/year pair outside the accepted range.
	ErrInvalidPeriod = errors.New("invalid payroll period")
)
