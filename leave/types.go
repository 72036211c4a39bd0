/*
Package leave implements the leave-request portal: day counting, conflict
resolution between overlapping requests, and entitlement bookkeeping.

PURPOSE:
  Employees submit date-range leave requests against an annual entitlement.
  A single administrator approves or rejects them. When too many staff ask
  for overlapping dates, a seniority tie-break decides who keeps the slot.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: a member of the roster with a seniority score and a balance
  - LeaveRequest: one date-range request with a one-way status machine
  - Status / Role: closed enumerations stored as strings

STATUS MACHINE:
  PENDING -> APPROVED   (admin action, adds the day-span to usedLeaveDays)
  PENDING -> REJECTED   (admin action or automatic eviction)
  APPROVED -> REJECTED  (automatic eviction only, see resolver.go)

SEE ALSO:
  - date.go: Calendar dates and the day-span calculator
  - resolver.go: Overlap detection and seniority arbitration
  - balance.go: Entitlement bookkeeping
  - service.go: Orchestration over a Repository
*/
package leave

import "time"

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MaxLeaveDaysPerRequest caps the span of a single request.
	MaxLeaveDaysPerRequest = 14

	// AnnualLeaveEntitlement is the seeded yearly allotment per user.
	AnnualLeaveEntitlement = 24

	// MaxConcurrentLeaves is how many holders may share overlapping dates
	// before seniority arbitration starts.
	MaxConcurrentLeaves = 2
)

// EvictionReason is stored on a request displaced by a more senior one.
// Existing records depend on the exact bytes.
const EvictionReason = "SİCİLİN YETMEDİ (Daha kıdemli personel başvurusu geldi)"

// ArbitrationMessage is shown to an employee whose submission lost the
// seniority tie-break.
const ArbitrationMessage = "SİCİLİN YETMEDİ (Aynı tarih aralığında daha düşük sicilli personel başvurusu mevcut)."

// =============================================================================
// ROLE & STATUS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleEmployee }

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal reports whether an admin action may no longer change the status.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// Blocks reports whether a request in this status occupies its dates.
func (s Status) Blocks() bool { return s == StatusPending || s == StatusApproved }

// =============================================================================
// ENTITIES
// =============================================================================

// User is a roster member. YearsOfService is a seniority score: higher is
// more senior. Password is the plaintext roster secret and never leaves the
// store layer through the API.
type User struct {
	ID                    string `json:"id"`
	SicilNo               string `json:"sicilNo"`
	Name                  string `json:"name"`
	Password              string `json:"password"`
	YearsOfService        int    `json:"yearsOfService"`
	Role                  Role   `json:"role"`
	TotalLeaveEntitlement int    `json:"totalLeaveEntitlement"`
	UsedLeaveDays         int    `json:"usedLeaveDays"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// LeaveRequest is a single date-range request. UserName and
// SeniorityAtRequest are snapshots taken at submission time.
type LeaveRequest struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	UserName           string    `json:"userName"`
	StartDate          Date      `json:"startDate"`
	EndDate            Date      `json:"endDate"`
	Status             Status    `json:"status"`
	RejectionReason    string    `json:"rejectionReason,omitempty"`
	SeniorityAtRequest int       `json:"seniorityAtRequest"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Range returns the closed date interval the request occupies.
func (r LeaveRequest) Range() DateRange { return DateRange{Start: r.StartDate, End: r.EndDate} }

// Days returns the inclusive day-span of the request.
func (r LeaveRequest) Days() int { return Days(r.StartDate, r.EndDate) }
