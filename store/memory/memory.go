// Package memory provides an in-memory leave.Repository.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/leave-portal/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	users    map[string]leave.User
	requests map[string]leave.LeaveRequest
	feed     *leave.Feed
}

func New() *Memory {
	return &Memory{
		users:    make(map[string]leave.User),
		requests: make(map[string]leave.LeaveRequest),
		feed:     leave.NewFeed(),
	}
}

// PutUser creates or replaces a user.
func (m *Memory) PutUser(_ context.Context, u leave.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.feed.Publish(leave.Update{Collection: leave.CollectionUsers, Users: m.usersLocked()})
	return nil
}

// PutRequest creates or replaces a request.
func (m *Memory) PutRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	m.feed.Publish(leave.Update{Collection: leave.CollectionRequests, Requests: m.requestsLocked()})
	return nil
}

func (m *Memory) PatchUser(_ context.Context, id string, p leave.UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return leave.ErrUserNotFound
	}
	m.users[id] = p.Apply(u)
	m.feed.Publish(leave.Update{Collection: leave.CollectionUsers, Users: m.usersLocked()})
	return nil
}

func (m *Memory) PatchRequest(_ context.Context, id string, p leave.RequestPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return leave.ErrRequestNotFound
	}
	m.requests[id] = p.Apply(r)
	m.feed.Publish(leave.Update{Collection: leave.CollectionRequests, Requests: m.requestsLocked()})
	return nil
}

// Load returns copies; callers may modify them freely.
func (m *Memory) Load(_ context.Context) (leave.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return leave.Snapshot{Users: m.usersLocked(), Requests: m.requestsLocked()}, nil
}

func (m *Memory) Subscribe(ctx context.Context, c leave.Collection) (<-chan leave.Update, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	initial := leave.Update{Collection: c}
	switch c {
	case leave.CollectionUsers:
		initial.Users = m.usersLocked()
	case leave.CollectionRequests:
		initial.Requests = m.requestsLocked()
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return m.feed.Subscribe(ctx, c, initial), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close ends all subscriptions.
func (m *Memory) Close() error {
	m.feed.Close()
	return nil
}

func (m *Memory) usersLocked() []leave.User {
	out := make([]leave.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	leave.SortUsers(out)
	return out
}

func (m *Memory) requestsLocked() []leave.LeaveRequest {
	out := make([]leave.LeaveRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	leave.SortRequests(out)
	return out
}

var _ leave.Repository = (*Memory)(nil)
