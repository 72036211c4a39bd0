/*
connectivity.go - Datastore connectivity monitor

PURPOSE:
  Periodically pings the datastore and keeps the latest result, so the
  client can show an offline banner without each page load probing the
  store itself.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Logs only transitions (online -> offline and back)
  - Status is served at GET /api/status without authentication

USAGE:
  monitor := NewConnectivityMonitor(repo, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: Readyz (on-demand ping for orchestrators)
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/metrics"
)

// ConnectivityStatus is the last known datastore state.
type ConnectivityStatus struct {
	Online      bool      `json:"online"`
	LastChecked time.Time `json:"lastChecked"`
	Error       string    `json:"error,omitempty"`
}

// ConnectivityMonitor tracks whether the datastore answers pings.
type ConnectivityMonitor struct {
	Repo          leave.Repository
	Logger        *slog.Logger
	CheckInterval time.Duration
	PingTimeout   time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	stateMu sync.RWMutex
	status  ConnectivityStatus
	checked bool
}

// NewConnectivityMonitor creates a monitor with a 10s interval.
func NewConnectivityMonitor(repo leave.Repository, logger *slog.Logger) *ConnectivityMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectivityMonitor{
		Repo:          repo,
		Logger:        logger,
		CheckInterval: 10 * time.Second,
		PingTimeout:   3 * time.Second,
	}
}

// Start begins the periodic checks.
func (m *ConnectivityMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.Logger.Info("connectivity monitor started", slog.Duration("interval", m.CheckInterval))
}

// Stop stops the monitor and waits for the running check.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
	}
}

func (m *ConnectivityMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.Check()

	for {
		select {
		case <-m.ticker.C:
			m.Check()
		case <-m.stop:
			return
		}
	}
}

// Check pings the datastore once and records the result.
func (m *ConnectivityMonitor) Check() ConnectivityStatus {
	ctx, cancel := context.WithTimeout(context.Background(), m.PingTimeout)
	defer cancel()

	err := m.Repo.Ping(ctx)
	next := ConnectivityStatus{Online: err == nil, LastChecked: time.Now().UTC()}
	if err != nil {
		next.Error = err.Error()
	}

	m.stateMu.Lock()
	prev, seen := m.status, m.checked
	m.status, m.checked = next, true
	m.stateMu.Unlock()

	metrics.SetStoreUp(next.Online)
	if !seen || prev.Online != next.Online {
		if next.Online {
			m.Logger.Info("datastore online")
		} else {
			m.Logger.Warn("datastore offline", slog.String("error", next.Error))
		}
	}
	return next
}

// Status returns the last recorded state; before the first check it
// reports offline.
func (m *ConnectivityMonitor) Status() ConnectivityStatus {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.status
}

// GetStatus serves the last known datastore state.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.Monitor == nil {
		writeJSON(w, http.StatusOK, ConnectivityStatus{Online: true, LastChecked: time.Now().UTC()})
		return
	}
	writeJSON(w, http.StatusOK, h.Monitor.Status())
}
