package leave

import "fmt"

// =============================================================================
// POLICY - Tunable limits for submissions and arbitration
// =============================================================================

// Policy carries the literal limits of the portal. The zero value of any
// field falls back to the package constant.
type Policy struct {
	MaxDaysPerRequest int `yaml:"max_days_per_request"`
	MaxConcurrent     int `yaml:"max_concurrent"`
	AnnualEntitlement int `yaml:"annual_entitlement"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxDaysPerRequest: MaxLeaveDaysPerRequest,
		MaxConcurrent:     MaxConcurrentLeaves,
		AnnualEntitlement: AnnualLeaveEntitlement,
	}
}

func (p Policy) maxDays() int {
	if p.MaxDaysPerRequest <= 0 {
		return MaxLeaveDaysPerRequest
	}
	return p.MaxDaysPerRequest
}

func (p Policy) maxConcurrent() int {
	if p.MaxConcurrent <= 0 {
		return MaxConcurrentLeaves
	}
	return p.MaxConcurrent
}

// Entitlement is the annual allotment given to newly created users.
func (p Policy) Entitlement() int {
	if p.AnnualEntitlement <= 0 {
		return AnnualLeaveEntitlement
	}
	return p.AnnualEntitlement
}

// =============================================================================
// SUBMISSION VALIDATION - Runs before the resolver, writes nothing
// =============================================================================

// ValidateSubmission applies the caller-facing guards in order: missing
// dates, start in the past, end before start, per-request cap, remaining
// balance. The first failure is returned as a *ValidationError.
func (p Policy) ValidateSubmission(start, end, today Date, remaining int) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Code: "missing_dates", Message: "start and end dates are required", Err: ErrMissingDates}
	}
	if start.Before(today) {
		return &ValidationError{
			Code:    "start_in_past",
			Message: fmt.Sprintf("leave cannot start in the past (start %s, today %s)", start, today),
			Err:     ErrStartInPast,
		}
	}
	if end.Before(start) {
		return &ValidationError{
			Code:    "end_before_start",
			Message: fmt.Sprintf("end date %s is before start date %s", end, start),
			Err:     ErrEndBeforeStart,
		}
	}

	total := Days(start, end)
	if total > p.maxDays() {
		return &ValidationError{
			Code:    "exceeds_cap",
			Message: fmt.Sprintf("at most %d days per request, requested %d", p.maxDays(), total),
			Err:     ErrExceedsRequestCap,
		}
	}
	if total > remaining {
		return &ValidationError{
			Code:    "insufficient_balance",
			Message: fmt.Sprintf("requested %d days, remaining balance is %d", total, remaining),
			Err:     ErrInsufficientBalance,
		}
	}
	return nil
}

// ValidateRange is the reduced guard for the direct placement path: the
// range must be present and ordered.
func ValidateRange(start, end Date) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Code: "missing_dates", Message: "start and end dates are required", Err: ErrMissingDates}
	}
	if end.Before(start) {
		return &ValidationError{
			Code:    "end_before_start",
			Message: fmt.Sprintf("end date %s is before start date %s", end, start),
			Err:     ErrEndBeforeStart,
		}
	}
	return nil
}
