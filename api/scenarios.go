/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that show the seniority arbitration on a
	running portal. Each scenario creates its own demo staff and places
	requests for them through the direct placement path, reporting the
	verdict of every step.

AVAILABLE SCENARIOS:

	seniority-eviction:  Third, more senior request evicts the weakest holder
	junior-blocked:      Junior request loses against two senior holders
	equal-seniority:     Equal seniority never evicts (incumbent keeps the slot)
	approved-evicted:    An APPROVED holder is evicted; used days stay booked
	disjoint-ranges:     No overlap, everyone admitted
	touching-boundary:   Ranges sharing one end day overlap, one step each

HOW SCENARIOS WORK:
 1. Upsert the scenario's demo staff (ids demo-<scenario>-<n>)
 2. Pick a fresh date window in the future (per process, so runs after a
    restart on a persistent store may meet earlier demo requests)
 3. Place and approve requests in order through leave.Service
 4. Return the outcome of every step

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "seniority-eviction"}

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarioCatalog' with staff and steps
 2. Nothing else: LoadScenario runs every catalog entry the same way

NOTE:

	Scenarios write to the configured datastore. Only enable them
	(enable_scenarios) in development/demo environments.

SEE ALSO:
  - handlers.go: Handler struct
  - leave/service.go: Place and Approve
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/warp/leave-portal/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type demoStaff struct {
	name      string
	seniority int
}

type stepKind int

const (
	stepPlace stepKind = iota
	// stepApprove approves the request placed by the previous step.
	stepApprove
)

type scenarioStep struct {
	kind  stepKind
	staff int // index into scenario.staff
	from  int // day offsets from the window start, inclusive
	to    int
}

type scenario struct {
	dto   ScenarioDTO
	staff []demoStaff
	steps []scenarioStep
}

// windowDays separates consecutive scenario runs in the calendar.
const windowDays = 21

var scenarioCatalog = []scenario{
	{
		dto: ScenarioDTO{
			ID:          "seniority-eviction",
			Name:        "Seniority Eviction",
			Description: "Two holders share dates; a more senior third request evicts the weakest",
		},
		staff: []demoStaff{{"Demo A", 5000}, {"Demo B", 6000}, {"Demo C", 9000}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 4},
			{kind: stepPlace, staff: 1, from: 2, to: 6},
			{kind: stepPlace, staff: 2, from: 3, to: 5},
		},
	},
	{
		dto: ScenarioDTO{
			ID:          "junior-blocked",
			Name:        "Junior Blocked",
			Description: "A junior request loses against two more senior holders",
		},
		staff: []demoStaff{{"Demo A", 5000}, {"Demo B", 6000}, {"Demo J", 4000}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 4},
			{kind: stepPlace, staff: 1, from: 2, to: 6},
			{kind: stepPlace, staff: 2, from: 1, to: 3},
		},
	},
	{
		dto: ScenarioDTO{
			ID:          "equal-seniority",
			Name:        "Equal Seniority",
			Description: "A candidate equal to the weakest holder is rejected",
		},
		staff: []demoStaff{{"Demo A", 5000}, {"Demo B", 5000}, {"Demo C", 5000}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 3},
			{kind: stepPlace, staff: 1, from: 0, to: 3},
			{kind: stepPlace, staff: 2, from: 1, to: 2},
		},
	},
	{
		dto: ScenarioDTO{
			ID:          "approved-evicted",
			Name:        "Approved Holder Evicted",
			Description: "An approved request is still evicted by a more senior one; its days stay booked",
		},
		staff: []demoStaff{{"Demo A", 5000}, {"Demo B", 6000}, {"Demo C", 9000}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 2},
			{kind: stepApprove},
			{kind: stepPlace, staff: 1, from: 0, to: 2},
			{kind: stepPlace, staff: 2, from: 1, to: 1},
		},
	},
	{
		dto: ScenarioDTO{
			ID:          "disjoint-ranges",
			Name:        "Disjoint Ranges",
			Description: "Non-overlapping requests are all admitted regardless of seniority",
		},
		staff: []demoStaff{{"Demo A", 9000}, {"Demo B", 100}, {"Demo C", 50}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 2},
			{kind: stepPlace, staff: 1, from: 3, to: 5},
			{kind: stepPlace, staff: 2, from: 6, to: 8},
		},
	},
	{
		dto: ScenarioDTO{
			ID:          "touching-boundary",
			Name:        "Touching Boundary",
			Description: "Ranges sharing an end day overlap; each candidate sees only its neighbour",
		},
		staff: []demoStaff{{"Demo A", 5000}, {"Demo B", 6000}, {"Demo C", 100}},
		steps: []scenarioStep{
			{kind: stepPlace, staff: 0, from: 0, to: 2},
			{kind: stepPlace, staff: 1, from: 2, to: 4},
			{kind: stepPlace, staff: 2, from: 4, to: 6},
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarioCatalog {
		if s.dto.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// scenarioRuns hands out a fresh calendar window per load.
type scenarioRuns struct {
	mu   sync.Mutex
	next int
}

func (r *scenarioRuns) take() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	r.next++
	return n
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarioCatalog))
	for i, s := range scenarioCatalog {
		out[i] = s.dto
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario runs a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sc, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	result, err := h.RunScenario(r.Context(), sc.dto.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunScenario executes the named scenario against the handler's service.
func (h *Handler) RunScenario(ctx context.Context, id string) (ScenarioResultDTO, error) {
	sc, ok := findScenario(id)
	if !ok {
		return ScenarioResultDTO{}, fmt.Errorf("unknown scenario %q", id)
	}

	svc := h.Service
	staff := make([]leave.User, len(sc.staff))
	for i, s := range sc.staff {
		u := leave.User{
			ID:                    fmt.Sprintf("demo-%s-%d", sc.dto.ID, i+1),
			SicilNo:               fmt.Sprintf("demo-%s-%d", sc.dto.ID, i+1),
			Name:                  s.name,
			YearsOfService:        s.seniority,
			Role:                  leave.RoleEmployee,
			TotalLeaveEntitlement: svc.Policy.Entitlement(),
		}
		// Keep bookkeeping from earlier runs.
		if existing, err := svc.User(ctx, u.ID); err == nil {
			u.UsedLeaveDays = existing.UsedLeaveDays
			u.Password = existing.Password
		}
		if err := svc.Repo.PutUser(ctx, u); err != nil {
			return ScenarioResultDTO{}, fmt.Errorf("create %s: %w", u.ID, err)
		}
		staff[i] = u
	}

	window := svc.Today().AddDays(30 + windowDays*h.runs.take())
	result := ScenarioResultDTO{Scenario: sc.dto, Steps: make([]ScenarioStepDTO, 0, len(sc.steps))}

	var last leave.LeaveRequest
	for _, st := range sc.steps {
		switch st.kind {
		case stepApprove:
			approved, err := svc.Approve(ctx, last.ID)
			step := ScenarioStepDTO{
				UserName:  last.UserName,
				Seniority: last.SeniorityAtRequest,
				StartDate: last.StartDate.String(),
				EndDate:   last.EndDate.String(),
				Outcome:   "approve",
				RequestID: last.ID,
			}
			if err != nil {
				step.Error = err.Error()
			} else {
				last = approved
			}
			result.Steps = append(result.Steps, step)

		case stepPlace:
			u := staff[st.staff]
			req := leave.LeaveRequest{
				UserID:             u.ID,
				UserName:           u.Name,
				StartDate:          window.AddDays(st.from),
				EndDate:            window.AddDays(st.to),
				SeniorityAtRequest: u.YearsOfService,
			}
			step := ScenarioStepDTO{
				UserName:  u.Name,
				Seniority: u.YearsOfService,
				StartDate: req.StartDate.String(),
				EndDate:   req.EndDate.String(),
			}
			res, err := svc.Place(ctx, req)
			step.Outcome = string(res.Verdict.Outcome)
			switch {
			case err == nil:
				step.RequestID = res.Request.ID
				if res.Verdict.Evicted != nil {
					step.EvictedID = res.Verdict.Evicted.ID
				}
				last = res.Request
			case errors.Is(err, leave.ErrSeniorityInsufficient):
				step.Error = err.Error()
			default:
				return result, fmt.Errorf("step %d: %w", len(result.Steps)+1, err)
			}
			result.Steps = append(result.Steps, step)
		}
	}
	return result, nil
}
