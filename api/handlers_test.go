/*
handlers_test.go - HTTP tests for the leave portal API

Tests for:
- Roster login and bearer-token guarding
- Employee submission, validation codes and seniority arbitration (409)
- Admin approve/reject and the usedLeaveDays bookkeeping
- Admin-only routes, the day-span utility and health endpoints

Every test runs the full chi router against an in-memory SQLite store seeded
with the default roster, with the clock pinned to 2024-06-01.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/store/sqlite"
)

// Roster members used below, most senior first.
const (
	sicilAdmin  = leave.AdminSicilNo // user-1
	sicilSenior = "422482"           // user-2
	sicilMiddle = "427658"           // user-3
	sicilJunior = "428167"           // user-4
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testAPI struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	svc     *leave.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := leave.NewService(store, leave.DefaultPolicy(), logger)

	var mu sync.Mutex
	clock := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	_, err = svc.Seed(context.Background(), leave.DefaultRoster(0))
	require.NoError(t, err)

	h := NewHandler(svc, NewTokenManager("test-secret", "", time.Hour), logger)
	router := NewRouter(h, RouterOptions{EnableScenarios: true, EnableMetrics: true})
	return &testAPI{t: t, handler: h, router: router, svc: svc}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(sicil string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/login", "", LoginRequest{SicilNo: sicil, Password: sicil + "+"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoginResponse](a.t, rec).Token
}

func (a *testAPI) submit(token, start, end string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do(http.MethodPost, "/api/requests", token, SubmitRequest{StartDate: start, EndDate: end})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{SicilNo: sicilAdmin, Password: sicilAdmin + "+"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	resp := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, leave.RoleAdmin, resp.User.Role)
	assert.Equal(t, 24, resp.User.RemainingLeaveDays)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestLogin_Failures(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{SicilNo: sicilAdmin, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{SicilNo: sicilAdmin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	api.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestAuthGuard(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", "garbage", nil).Code)

	other := NewTokenManager("another-secret", "", time.Hour)
	forged, _, err := other.GenerateToken(leave.User{ID: "user-1", Role: leave.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", forged, nil).Code)

	ghost, _, err := api.handler.Tokens.GenerateToken(leave.User{ID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", ghost, nil).Code)
}

func TestAdminGuard(t *testing.T) {
	api := newTestAPI(t)
	employee := api.login(sicilJunior)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodPost, "/api/admin/requests"},
		{http.MethodPost, "/api/requests/x/approve"},
		{http.MethodPost, "/api/requests/x/reject"},
		{http.MethodGet, "/api/scenarios"},
	} {
		rec := api.do(tc.method, tc.path, employee, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestMe(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(sicilSenior)

	rec := api.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decode[MeResponse](t, rec)
	assert.Equal(t, sicilSenior, me.User.SicilNo)
	assert.Equal(t, 24, me.Balance.Remaining)
	assert.Equal(t, "0.0000", me.Balance.UsedRatio)
	assert.Equal(t, "100.0", me.Balance.RemainingPercent)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_Created(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(sicilSenior)

	rec := api.submit(token, "2024-07-01", "2024-07-05")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, string(leave.OutcomeAdmit), resp.Outcome)
	assert.Equal(t, leave.StatusPending, resp.Request.Status)
	assert.Equal(t, 5, resp.Request.Days)
	assert.Equal(t, 577518, resp.Request.SeniorityAtRequest)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, 24, resp.Balance.Remaining, "pending requests are not booked")
}

func TestSubmit_ValidationCodes(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(sicilSenior)

	tests := []struct {
		start, end string
		code       string
	}{
		{"", "2024-07-01", "missing_dates"},
		{"2024-05-31", "2024-06-02", "start_in_past"},
		{"2024-07-05", "2024-07-01", "end_before_start"},
		{"2024-07-01", "2024-07-15", "exceeds_cap"},
	}
	for _, tt := range tests {
		rec := api.submit(token, tt.start, tt.end)
		require.Equal(t, http.StatusBadRequest, rec.Code, "%s..%s", tt.start, tt.end)
		assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
	}

	rec := api.submit(token, "01/07/2024", "2024-07-02")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_InsufficientBalance(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(sicilSenior)

	used := 20
	require.NoError(t, api.svc.Repo.PatchUser(context.Background(), "user-2", leave.UserPatch{UsedLeaveDays: &used}))

	rec := api.submit(token, "2024-07-01", "2024-07-05")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "insufficient_balance", decode[ErrorResponse](t, rec).Code)
}

func TestSubmit_LostArbitrationIs409(t *testing.T) {
	// GIVEN: two more senior colleagues hold the dates
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.submit(api.login(sicilSenior), "2024-07-01", "2024-07-05").Code)
	require.Equal(t, http.StatusCreated, api.submit(api.login(sicilMiddle), "2024-07-01", "2024-07-05").Code)

	// WHEN: a junior asks for an overlapping day
	junior := api.login(sicilJunior)
	rec := api.submit(junior, "2024-07-05", "2024-07-08")

	// THEN: 409 with the fixed message, and nothing is created
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, leave.ArbitrationMessage, resp.Error)
	assert.Equal(t, "seniority_insufficient", resp.Code)

	list := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests", junior, nil))
	assert.Empty(t, list)
}

func TestSubmit_SeniorEvictsWeakest(t *testing.T) {
	// GIVEN: the middle and the junior colleague hold the dates
	api := newTestAPI(t)
	middle := decode[SubmitResponse](t, api.submit(api.login(sicilMiddle), "2024-07-01", "2024-07-05"))
	junior := api.login(sicilJunior)
	weak := decode[SubmitResponse](t, api.submit(junior, "2024-07-01", "2024-07-05"))

	// WHEN: the senior colleague submits inside the range
	rec := api.submit(api.login(sicilSenior), "2024-07-03", "2024-07-04")

	// THEN: the junior request is evicted with the fixed reason
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, string(leave.OutcomeEvict), resp.Outcome)
	assert.Equal(t, weak.Request.ID, resp.EvictedID)
	assert.Equal(t, 2, resp.Overlaps)

	mine := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests", junior, nil))
	require.Len(t, mine, 1)
	assert.Equal(t, leave.StatusRejected, mine[0].Status)
	assert.Equal(t, leave.EvictionReason, mine[0].RejectionReason)

	all := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests?status=PENDING", api.login(sicilAdmin), nil))
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.ElementsMatch(t, []string{middle.Request.ID, resp.Request.ID}, ids)
}

// =============================================================================
// ADMIN DECISIONS
// =============================================================================

func TestApprove_BooksDaysOnce(t *testing.T) {
	api := newTestAPI(t)
	employee := api.login(sicilSenior)
	admin := api.login(sicilAdmin)
	created := decode[SubmitResponse](t, api.submit(employee, "2024-07-01", "2024-07-05"))

	rec := api.do(http.MethodPost, "/api/requests/"+created.Request.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leave.StatusApproved, decode[RequestDTO](t, rec).Status)

	me := decode[MeResponse](t, api.do(http.MethodGet, "/api/me", employee, nil))
	assert.Equal(t, 5, me.User.UsedLeaveDays)
	assert.Equal(t, 19, me.User.RemainingLeaveDays)

	rec = api.do(http.MethodPost, "/api/requests/"+created.Request.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_finalized", decode[ErrorResponse](t, rec).Code)

	me = decode[MeResponse](t, api.do(http.MethodGet, "/api/me", employee, nil))
	assert.Equal(t, 5, me.User.UsedLeaveDays)

	rec = api.do(http.MethodPost, "/api/requests/missing/approve", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReject(t *testing.T) {
	api := newTestAPI(t)
	employee := api.login(sicilSenior)
	admin := api.login(sicilAdmin)
	first := decode[SubmitResponse](t, api.submit(employee, "2024-07-01", "2024-07-02"))
	second := decode[SubmitResponse](t, api.submit(employee, "2024-08-01", "2024-08-02"))

	rec := api.do(http.MethodPost, "/api/requests/"+first.Request.ID+"/reject", admin, DecisionRequest{Reason: "audit week"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[RequestDTO](t, rec)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "audit week", got.RejectionReason)

	// No body at all.
	rec = api.do(http.MethodPost, "/api/requests/"+second.Request.ID+"/reject", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[RequestDTO](t, rec).RejectionReason)

	me := decode[MeResponse](t, api.do(http.MethodGet, "/api/me", employee, nil))
	assert.Zero(t, me.User.UsedLeaveDays)
}

func TestListRequests_Visibility(t *testing.T) {
	api := newTestAPI(t)
	senior := api.login(sicilSenior)
	junior := api.login(sicilJunior)
	admin := api.login(sicilAdmin)

	api.submit(senior, "2024-07-01", "2024-07-01")
	api.submit(junior, "2024-08-01", "2024-08-01")
	api.submit(senior, "2024-09-01", "2024-09-01")

	own := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests", senior, nil))
	require.Len(t, own, 2)
	assert.Equal(t, "2024-09-01", own[0].StartDate, "newest first")

	// Employees cannot widen the filter.
	own = decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests?user_id=user-4", senior, nil))
	assert.Len(t, own, 2)

	all := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests", admin, nil))
	assert.Len(t, all, 3)

	theirs := decode[[]RequestDTO](t, api.do(http.MethodGet, "/api/requests?user_id=user-4", admin, nil))
	require.Len(t, theirs, 1)
	assert.Equal(t, "user-4", theirs[0].UserID)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/requests?status=MAYBE", admin, nil).Code)
}

// =============================================================================
// ADMIN ROUTES
// =============================================================================

func TestAdminUsers_HidesSecrets(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/admin/users", api.login(sicilAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), sicilAdmin+"+")
	assert.Len(t, decode[[]UserDTO](t, rec), 24)
}

func TestAdminStats(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(sicilAdmin)
	employee := api.login(sicilSenior)

	a := decode[SubmitResponse](t, api.submit(employee, "2024-07-01", "2024-07-01"))
	b := decode[SubmitResponse](t, api.submit(employee, "2024-08-01", "2024-08-01"))
	api.submit(employee, "2024-09-01", "2024-09-01")
	api.do(http.MethodPost, "/api/requests/"+a.Request.ID+"/approve", admin, nil)
	api.do(http.MethodPost, "/api/requests/"+b.Request.ID+"/reject", admin, nil)

	stats := decode[StatsDTO](t, api.do(http.MethodGet, "/api/admin/stats", admin, nil))
	assert.Equal(t, StatsDTO{Total: 3, Pending: 1, Approved: 1, Rejected: 1, ApprovalRate: "0.5000"}, stats)
}

func TestPlaceRequest(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(sicilAdmin)

	// Past dates are fine on the direct path.
	rec := api.do(http.MethodPost, "/api/admin/requests", admin, PlaceRequest{UserID: "user-3", StartDate: "2024-01-01", EndDate: "2024-01-03"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, 572342, resp.Request.SeniorityAtRequest)

	low := 1
	rec = api.do(http.MethodPost, "/api/admin/requests", admin, PlaceRequest{UserID: "user-4", StartDate: "2024-01-02", EndDate: "2024-01-02", Seniority: &low})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[SubmitResponse](t, rec).Request.SeniorityAtRequest)

	// Equal to the weakest holder: rejected.
	rec = api.do(http.MethodPost, "/api/admin/requests", admin, PlaceRequest{UserID: "user-2", StartDate: "2024-01-02", EndDate: "2024-01-02", Seniority: &low})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/requests", admin, PlaceRequest{UserID: "ghost", StartDate: "2024-01-02", EndDate: "2024-01-02"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/requests", admin, PlaceRequest{StartDate: "2024-01-02", EndDate: "2024-01-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// UTILITY
// =============================================================================

func TestGetDays(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(sicilJunior)

	rec := api.do(http.MethodGet, "/api/days?start=2024-01-01&end=2024-01-14", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, decode[DaysResponse](t, rec).Days)

	rec = api.do(http.MethodGet, "/api/days?start=2024-01-14&end=2024-01-01", token, nil)
	assert.Equal(t, 14, decode[DaysResponse](t, rec).Days, "order does not matter")

	rec = api.do(http.MethodGet, "/api/days?start=2024-01-14&end=2024-01-14", token, nil)
	assert.Equal(t, 1, decode[DaysResponse](t, rec).Days)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/days?start=2024-01-14", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/days?start=2024-01-01&end=2024-01-02", "", nil).Code)
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/readyz", "", nil).Code)

	rec := api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leave_http_requests_total")
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t)

	st := decode[ConnectivityStatus](t, api.do(http.MethodGet, "/api/status", "", nil))
	assert.True(t, st.Online, "no monitor reports online")

	api.handler.Monitor = NewConnectivityMonitor(api.svc.Repo, api.handler.Logger)
	st = decode[ConnectivityStatus](t, api.do(http.MethodGet, "/api/status", "", nil))
	assert.False(t, st.Online, "offline until the first check")

	api.handler.Monitor.Check()
	st = decode[ConnectivityStatus](t, api.do(http.MethodGet, "/api/status", "", nil))
	assert.True(t, st.Online)
	assert.False(t, st.LastChecked.IsZero())
}

func TestWriteServiceError_Unavailable(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.handler.writeServiceError(rec, fmt.Errorf("load snapshot: %w", leave.ErrStoreUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	api.handler.writeServiceError(rec, fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
