/*
repository.go - Persistence interface between the service and a datastore

PURPOSE:
  Replaces a process-wide handle to the realtime connection with an
  explicitly passed object. The service never reaches for a global store.

CAPABILITIES:
  PutUser / PutRequest:     Create or replace a whole entity
  PatchUser / PatchRequest: Partial field update
  Load:                     One immutable snapshot of both collections
  Subscribe:                Stream of whole-collection replacement events

CONSISTENCY:
  Last write wins. There is no optimistic locking or versioning, so two
  callers resolving overlapping submissions at the same time may read the
  same overlap set and both evict the same incumbent.

  Approve writes two entities. The balance goes first and is restored if
  the status write fails; if that restore also fails the balance is left
  over-booked and the error is logged.

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and development
  - store/sqlite: Embedded SQL database
  - store/redis:  Hosted datastore with pub/sub change notifications

SEE ALSO:
  - feed.go: Fan-out helper used by the in-process implementations
*/
package leave

import (
	"context"
	"sort"
)

// Collection names an entity collection in the datastore.
type Collection string

const (
	CollectionUsers    Collection = "users"
	CollectionRequests Collection = "requests"
)

// Snapshot is a point-in-time copy of both collections. Callers own the
// slices and may not assume other readers see their modifications.
type Snapshot struct {
	Users    []User
	Requests []LeaveRequest
}

// User returns the user with the given id.
func (s Snapshot) User(id string) (User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// Request returns the request with the given id.
func (s Snapshot) Request(id string) (LeaveRequest, bool) {
	for _, r := range s.Requests {
		if r.ID == id {
			return r, true
		}
	}
	return LeaveRequest{}, false
}

// Update is one whole-collection replacement event. Exactly one of Users
// or Requests is meaningful, selected by Collection.
type Update struct {
	Collection Collection
	Users      []User
	Requests   []LeaveRequest
}

// UserPatch updates selected user fields; nil pointers are left untouched.
type UserPatch struct {
	UsedLeaveDays *int `json:"usedLeaveDays,omitempty"`
}

// RequestPatch updates selected request fields; nil pointers are left
// untouched.
type RequestPatch struct {
	Status          *Status `json:"status,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

// Apply returns u with the patch applied.
func (p UserPatch) Apply(u User) User {
	if p.UsedLeaveDays != nil {
		u.UsedLeaveDays = *p.UsedLeaveDays
	}
	return u
}

// Apply returns r with the patch applied.
func (p RequestPatch) Apply(r LeaveRequest) LeaveRequest {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.RejectionReason != nil {
		r.RejectionReason = *p.RejectionReason
	}
	return r
}

// Repository is the datastore capability set the service depends on.
type Repository interface {
	PutUser(ctx context.Context, u User) error
	PutRequest(ctx context.Context, r LeaveRequest) error

	// PatchUser and PatchRequest return ErrUserNotFound / ErrRequestNotFound
	// when the id is unknown.
	PatchUser(ctx context.Context, id string, p UserPatch) error
	PatchRequest(ctx context.Context, id string, p RequestPatch) error

	Load(ctx context.Context) (Snapshot, error)

	// Subscribe delivers the current collection first, then a new full copy
	// after every change. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, c Collection) (<-chan Update, error)

	Ping(ctx context.Context) error
}

// SortUsers orders users by id, the key order of the datastore.
func SortUsers(users []User) {
	sort.SliceStable(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}

// SortRequests orders requests by creation time, then id. Resolver ties are
// broken in this order.
func SortRequests(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// NewestFirst orders requests for display: most recent CreatedAt first.
func NewestFirst(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}
