package shared

import "time"

// ValidatePeriod checks a payroll (month, year) pair.
func ValidatePeriod(month time.Month, year int) error {
	if month < time.January || month > time.December {
		return ErrInvalidPeriod
	}
	if year < 2000 || year > 2200 {
		return ErrInvalidPeriod
	}
	return nil
}
