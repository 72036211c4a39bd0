package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/leave"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder(t *testing.T) {
	var r leave.Recorder = Recorder{}
	r.ObserveVerdict(leave.PathEmployee, leave.OutcomeEvict)
	r.ObserveDecision(leave.StatusApproved)
	r.ObserveValidationFailure("exceeds_cap")
	SetStoreUp(true)

	body := scrape(t)
	assert.Contains(t, body, `leave_resolver_verdicts_total{outcome="admit_evict",path="employee"}`)
	assert.Contains(t, body, `leave_admin_decisions_total{status="APPROVED"}`)
	assert.Contains(t, body, `leave_validation_failures_total{code="exceeds_cap"}`)
	assert.Contains(t, body, "leave_store_up 1")
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/abc-123", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t)
	assert.Contains(t, body, `leave_http_requests_total{method="GET",route="/api/requests/{id}",status="418"}`)
	assert.NotContains(t, body, "abc-123")
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	w := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := w.Hijack()
	assert.Error(t, err)
}
