/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract. In particular the
  roster secret stored on leave.User never appears in any response type.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Users:     UserDTO, BalanceDTO, MeResponse
  Auth:      LoginRequest, LoginResponse
  Requests:  RequestDTO, SubmitRequest, PlaceRequest, DecisionRequest,
             SubmitResponse
  Admin:     StatsDTO
  Utility:   DaysResponse
  Live:      LiveMessage
  Scenarios: ScenarioDTO, LoadScenarioRequest, ScenarioResultDTO

VALIDATION:
  Validation is done in handlers and the leave package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-portal/leave"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO is a roster member without the secret.
type UserDTO struct {
	ID                    string     `json:"id"`
	SicilNo               string     `json:"sicilNo"`
	Name                  string     `json:"name"`
	YearsOfService        int        `json:"yearsOfService"`
	Role                  leave.Role `json:"role"`
	TotalLeaveEntitlement int        `json:"totalLeaveEntitlement"`
	UsedLeaveDays         int        `json:"usedLeaveDays"`
	RemainingLeaveDays    int        `json:"remainingLeaveDays"`
}

// BalanceDTO is the entitlement summary shown on the dashboard.
type BalanceDTO struct {
	Total            int    `json:"total"`
	Used             int    `json:"used"`
	Remaining        int    `json:"remaining"`
	UsedRatio        string `json:"usedRatio"`
	RemainingPercent string `json:"remainingPercent"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	User    UserDTO    `json:"user"`
	Balance BalanceDTO `json:"balance"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	SicilNo  string `json:"sicilNo"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// RequestDTO is a leave request with its computed day-span.
type RequestDTO struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"userId"`
	UserName           string       `json:"userName"`
	StartDate          string       `json:"startDate"`
	EndDate            string       `json:"endDate"`
	Days               int          `json:"days"`
	Status             leave.Status `json:"status"`
	RejectionReason    string       `json:"rejectionReason,omitempty"`
	SeniorityAtRequest int          `json:"seniorityAtRequest"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// SubmitRequest is the body of POST /api/requests.
type SubmitRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// PlaceRequest is the body of POST /api/admin/requests. Seniority defaults
// to the user's current YearsOfService.
type PlaceRequest struct {
	UserID    string `json:"userId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Seniority *int   `json:"seniority,omitempty"`
}

// SubmitResponse reports what a submission wrote.
type SubmitResponse struct {
	Request   RequestDTO  `json:"request"`
	Outcome   string      `json:"outcome"`
	EvictedID string      `json:"evictedId,omitempty"`
	Overlaps  int         `json:"overlaps"`
	Balance   *BalanceDTO `json:"balance,omitempty"`
}

// DecisionRequest is the optional body of the reject action.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// ADMIN & UTILITY
// =============================================================================

type StatsDTO struct {
	Total        int    `json:"total"`
	Pending      int    `json:"pending"`
	Approved     int    `json:"approved"`
	Rejected     int    `json:"rejected"`
	ApprovalRate string `json:"approvalRate"`
}

type DaysResponse struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      int    `json:"days"`
}

// LiveMessage is one frame on the live websocket: a full replacement of a
// collection.
type LiveMessage struct {
	Collection leave.Collection `json:"collection"`
	Data       any              `json:"data"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioStepDTO is the outcome of one placement in a scenario.
type ScenarioStepDTO struct {
	UserName  string `json:"userName"`
	Seniority int    `json:"seniority"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Outcome   string `json:"outcome"`
	RequestID string `json:"requestId,omitempty"`
	EvictedID string `json:"evictedId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ScenarioResultDTO struct {
	Scenario ScenarioDTO       `json:"scenario"`
	Steps    []ScenarioStepDTO `json:"steps"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u leave.User) UserDTO {
	return UserDTO{
		ID:                    u.ID,
		SicilNo:               u.SicilNo,
		Name:                  u.Name,
		YearsOfService:        u.YearsOfService,
		Role:                  u.Role,
		TotalLeaveEntitlement: u.TotalLeaveEntitlement,
		UsedLeaveDays:         u.UsedLeaveDays,
		RemainingLeaveDays:    leave.Remaining(u),
	}
}

func toUserDTOs(users []leave.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}

func toBalanceDTO(b leave.BalanceSummary) BalanceDTO {
	return BalanceDTO{
		Total:            b.Total,
		Used:             b.Used,
		Remaining:        b.Remaining,
		UsedRatio:        b.UsedRatio.StringFixed(4),
		RemainingPercent: b.RemainingPercent().StringFixed(1),
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:                 r.ID,
		UserID:             r.UserID,
		UserName:           r.UserName,
		StartDate:          r.StartDate.String(),
		EndDate:            r.EndDate.String(),
		Days:               r.Days(),
		Status:             r.Status,
		RejectionReason:    r.RejectionReason,
		SeniorityAtRequest: r.SeniorityAtRequest,
		CreatedAt:          r.CreatedAt,
	}
}

func toRequestDTOs(reqs []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toStatsDTO(s leave.Stats) StatsDTO {
	return StatsDTO{
		Total:        s.Total,
		Pending:      s.Pending,
		Approved:     s.Approved,
		Rejected:     s.Rejected,
		ApprovalRate: s.ApprovalRate.StringFixed(4),
	}
}

func toSubmitResponse(res leave.SubmitResult) SubmitResponse {
	out := SubmitResponse{
		Request:  toRequestDTO(res.Request),
		Outcome:  string(res.Verdict.Outcome),
		Overlaps: len(res.Verdict.Overlaps),
	}
	if res.Verdict.Evicted != nil {
		out.EvictedID = res.Verdict.Evicted.ID
	}
	return out
}
