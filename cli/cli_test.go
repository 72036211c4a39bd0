package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/store/memory"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

type cliHarness struct {
	app *App
	out *bytes.Buffer
	err *bytes.Buffer
	svc *leave.Service
}

// newHarness returns an App wired to a seeded in-memory service.
func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	repo := memory.New()
	t.Cleanup(func() { repo.Close() })

	svc := leave.NewService(repo, leave.DefaultPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.Now = func() time.Time { return fixedNow }
	seq := 0
	svc.NewID = func() string {
		seq++
		return fmt.Sprintf("req-%d", seq)
	}
	_, err := svc.Seed(context.Background(), leave.DefaultRoster(0))
	require.NoError(t, err)

	h := &cliHarness{out: &bytes.Buffer{}, err: &bytes.Buffer{}, svc: svc}
	h.app = &App{Stdout: h.out, Stderr: h.err, Stdin: strings.NewReader("")}
	h.app.UseService(svc)
	return h
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.out.Reset()
	h.app.JSONOutput = false
	cmd := newRootCmd(h.app)
	cmd.SetArgs(args)
	cmd.SetOut(h.out)
	cmd.SetErr(h.err)
	err := cmd.Execute()
	return h.out.String(), err
}

func (h *cliHarness) runJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := h.run(append(args, "--json")...)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload), out)
	return payload
}

// =============================================================================
// QUERY COMMANDS
// =============================================================================

func TestDaysCmd(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("days", "2024-01-01", "2024-01-14")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)

	out, err = h.run("days", "2024-01-14", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)

	payload := h.runJSON(t, "days", "2024-03-01", "2024-03-01")
	assert.Equal(t, float64(1), payload["days"])

	_, err = h.run("days", "2024-01-01", "")
	assert.ErrorIs(t, err, leave.ErrMissingDates)

	_, err = h.run("days", "2024-01-01")
	assert.Error(t, err)
}

func TestUsersCmd(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("users")
	require.NoError(t, err)
	assert.Contains(t, out, "Murat TOPCU")
	assert.Equal(t, 24, strings.Count(out, "\n"))

	payload := h.runJSON(t, "users")
	users := payload["users"].([]any)
	require.Len(t, users, 24)
	assert.NotContains(t, users[0], "password")
}

// =============================================================================
// REQUEST COMMANDS
// =============================================================================

func TestSubmitCmd_EvictionFlow(t *testing.T) {
	h := newHarness(t)

	payload := h.runJSON(t, "submit", "--sicil", "427658", "--password", "427658+", "--start", "2024-07-01", "--end", "2024-07-05")
	assert.Equal(t, "admit", payload["outcome"])
	payload = h.runJSON(t, "submit", "--sicil", "428167", "--password", "428167+", "--start", "2024-07-01", "--end", "2024-07-05")
	weakID := payload["request"].(map[string]any)["id"]

	out, err := h.run("submit", "--sicil", "422482", "--password", "422482+", "--start", "2024-07-03", "--end", "2024-07-04")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Evicted %s", weakID))

	out, err = h.run("requests", "--status", "rejected")
	require.NoError(t, err)
	assert.Contains(t, out, leave.EvictionReason)
}

func TestSubmitCmd_LostArbitration(t *testing.T) {
	h := newHarness(t)
	h.runJSON(t, "submit", "--sicil", "422482", "--password", "422482+", "--start", "2024-07-01", "--end", "2024-07-05")
	h.runJSON(t, "submit", "--sicil", "427658", "--password", "427658+", "--start", "2024-07-01", "--end", "2024-07-05")

	_, err := h.run("submit", "--sicil", "428167", "--password", "428167+", "--start", "2024-07-02", "--end", "2024-07-02")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrSeniorityInsufficient)
	assert.Contains(t, err.Error(), leave.ArbitrationMessage)
}

func TestSubmitCmd_Passwords(t *testing.T) {
	h := newHarness(t)

	h.app.Stdin = strings.NewReader("422482+\n")
	_, err := h.run("submit", "--sicil", "422482", "--password-stdin", "--start", "2024-07-01", "--end", "2024-07-01")
	require.NoError(t, err)

	_, err = h.run("submit", "--sicil", "422482", "--password", "wrong", "--start", "2024-08-01", "--end", "2024-08-01")
	assert.ErrorIs(t, err, leave.ErrInvalidCredentials)

	_, err = h.run("submit", "--sicil", "422482", "--password", "x", "--password-stdin", "--start", "2024-08-01", "--end", "2024-08-01")
	assert.ErrorContains(t, err, "only one of")

	// Non-interactive stdin without a flag.
	_, err = h.run("submit", "--sicil", "422482", "--start", "2024-08-01", "--end", "2024-08-01")
	assert.ErrorContains(t, err, "password is required")
}

func TestPlaceApproveRejectStats(t *testing.T) {
	h := newHarness(t)

	payload := h.runJSON(t, "place", "--user", "user-3", "--start", "2024-01-01", "--end", "2024-01-03")
	placed := payload["request"].(map[string]any)
	assert.Equal(t, float64(572342), placed["seniorityAtRequest"])

	payload = h.runJSON(t, "place", "--user", "user-4", "--start", "2024-02-01", "--end", "2024-02-01", "--seniority", "7")
	second := payload["request"].(map[string]any)
	assert.Equal(t, float64(7), second["seniorityAtRequest"])

	out, err := h.run("approve", placed["id"].(string))
	require.NoError(t, err)
	assert.Contains(t, out, "(3 days)")

	_, err = h.run("approve", placed["id"].(string))
	assert.ErrorIs(t, err, leave.ErrAlreadyFinalized)

	out, err = h.run("reject", second["id"].(string), "--reason", "coverage")
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected")

	u, err := h.svc.User(context.Background(), "user-3")
	require.NoError(t, err)
	assert.Equal(t, 3, u.UsedLeaveDays)

	stats := h.runJSON(t, "stats")
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, "0.5000", stats["approvalRate"])
}

func TestRequestsCmd_UnknownStatus(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("requests", "--status", "maybe")
	assert.ErrorContains(t, err, "unknown status")
}

func TestSeedCmd_Idempotent(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already present")
}

// =============================================================================
// CONFIG-DRIVEN RUNS
// =============================================================================

func TestConfigInit_ThenSQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "leave.yaml")
	out := &bytes.Buffer{}
	newApp := func() *App {
		return &App{Stdout: out, Stderr: io.Discard, Stdin: strings.NewReader(""), Now: func() time.Time { return fixedNow }}
	}
	run := func(args ...string) error {
		out.Reset()
		cmd := newRootCmd(newApp())
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	// GIVEN: a config file pointing at a temp database
	require.NoError(t, run("config", "init", cfgPath))
	require.Error(t, run("config", "init", cfgPath), "refuses to overwrite")
	require.NoError(t, run("config", "init", cfgPath, "--force"))

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	dbPath := filepath.Join(dir, "leave.db")
	data = bytes.Replace(data, []byte("./leave.db"), []byte(dbPath), 1)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o600))

	// WHEN: separate invocations seed, submit and list
	require.NoError(t, run("--config", cfgPath, "seed"))
	assert.Contains(t, out.String(), "Seeded 24 users")

	require.NoError(t, run("--config", cfgPath, "submit", "--sicil", "422482", "--password", "422482+", "--start", "2024-07-01", "--end", "2024-07-02"))

	// THEN: state persists across processes
	require.NoError(t, run("--config", cfgPath, "requests"))
	assert.Contains(t, out.String(), "Yılmaz Salih ONAN")
	assert.Contains(t, out.String(), "PENDING")

	require.NoError(t, run("--config", cfgPath, "config", "show"))
	assert.Contains(t, out.String(), "********")
	assert.NotContains(t, out.String(), "dev-secret-change-me")
}

func TestInvalidConfigFails(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store: etcd\n"), 0o600))

	cmd := newRootCmd(&App{Stdout: io.Discard, Stderr: io.Discard})
	cmd.SetArgs([]string{"--config", cfgPath, "users"})
	assert.ErrorContains(t, cmd.Execute(), "invalid configuration")
}
