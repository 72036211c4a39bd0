package leave

import "github.com/shopspring/decimal"

// =============================================================================
// ENTITLEMENT BOOKKEEPING
// =============================================================================

// Remaining returns TotalLeaveEntitlement - UsedLeaveDays. Only approved
// requests count; pending ones are checked at submission, never reserved.
func Remaining(u User) int {
	return u.TotalLeaveEntitlement - u.UsedLeaveDays
}

// ApplyApproval returns u with the request's day-span added to
// UsedLeaveDays.
//
// NOT IDEMPOTENT: applying it twice for the same request counts the days
// twice. Callers must invoke it at most once per request id, on the
// PENDING -> APPROVED transition (Service.Approve enforces this).
func ApplyApproval(u User, r LeaveRequest) User {
	u.UsedLeaveDays += r.Days()
	return u
}

// BalanceSummary is the employee-facing view of an entitlement.
type BalanceSummary struct {
	UserID    string
	Total     int
	Used      int
	Remaining int
	// UsedRatio is Used/Total rounded to 4 places; zero when Total is zero.
	UsedRatio decimal.Decimal
}

// RemainingPercent is the share of the entitlement still available, 0..100.
func (b BalanceSummary) RemainingPercent() decimal.Decimal {
	if b.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(b.Remaining)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(b.Total))).
		Round(2)
}

func Summarize(u User) BalanceSummary {
	s := BalanceSummary{
		UserID:    u.ID,
		Total:     u.TotalLeaveEntitlement,
		Used:      u.UsedLeaveDays,
		Remaining: Remaining(u),
		UsedRatio: decimal.Zero,
	}
	if s.Total > 0 {
		s.UsedRatio = decimal.NewFromInt(int64(s.Used)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(4)
	}
	return s
}

// =============================================================================
// ADMIN STATISTICS
// =============================================================================

// Stats counts requests by status for the admin dashboard.
type Stats struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
	// ApprovalRate is Approved/(Approved+Rejected), rounded to 4 places.
	ApprovalRate decimal.Decimal
}

func ComputeStats(requests []LeaveRequest) Stats {
	var s Stats
	for _, r := range requests {
		s.Total++
		switch r.Status {
		case StatusPending:
			s.Pending++
		case StatusApproved:
			s.Approved++
		case StatusRejected:
			s.Rejected++
		}
	}
	s.ApprovalRate = decimal.Zero
	if decided := s.Approved + s.Rejected; decided > 0 {
		s.ApprovalRate = decimal.NewFromInt(int64(s.Approved)).
			Div(decimal.NewFromInt(int64(decided))).
			Round(4)
	}
	return s
}
