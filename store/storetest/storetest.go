// Package storetest holds the behaviour every leave.Repository backend must
// share. Backend packages run it from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/leave"
)

// Factory returns an empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) leave.Repository

var created = time.Date(2024, time.June, 1, 9, 0, 0, 123456789, time.UTC)

func sampleUser(id string) leave.User {
	return leave.User{
		ID:                    id,
		SicilNo:               "sicil-" + id,
		Name:                  "Çalışan " + id,
		Password:              "sicil-" + id + "+",
		YearsOfService:        598983,
		Role:                  leave.RoleEmployee,
		TotalLeaveEntitlement: 24,
		UsedLeaveDays:         2,
	}
}

func sampleRequest(id string, offset time.Duration) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:                 id,
		UserID:             "u1",
		UserName:           "Çalışan u1",
		StartDate:          leave.MustParseDate("2024-07-01"),
		EndDate:            leave.MustParseDate("2024-07-05"),
		Status:             leave.StatusPending,
		SeniorityAtRequest: 10,
		CreatedAt:          created.Add(offset),
	}
}

// Run exercises newRepo against the shared contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("PutAndLoad", func(t *testing.T) { testPutAndLoad(t, newRepo(t)) })
	t.Run("PutReplaces", func(t *testing.T) { testPutReplaces(t, newRepo(t)) })
	t.Run("Patch", func(t *testing.T) { testPatch(t, newRepo(t)) })
	t.Run("PatchUnknown", func(t *testing.T) { testPatchUnknown(t, newRepo(t)) })
	t.Run("SnapshotOrder", func(t *testing.T) { testSnapshotOrder(t, newRepo(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newRepo(t)) })
	t.Run("SubscribeUnknown", func(t *testing.T) { testSubscribeUnknown(t, newRepo(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newRepo(t).Ping(context.Background())) })
}

func testPutAndLoad(t *testing.T, repo leave.Repository) {
	ctx := context.Background()
	u := sampleUser("u1")
	r := sampleRequest("r1", 0)
	r.RejectionReason = leave.EvictionReason
	r.Status = leave.StatusRejected

	require.NoError(t, repo.PutUser(ctx, u))
	require.NoError(t, repo.PutRequest(ctx, r))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	require.Len(t, snap.Requests, 1)

	assert.Equal(t, u, snap.Users[0])
	got := snap.Requests[0]
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt), "createdAt %s != %s", got.CreatedAt, r.CreatedAt)
	got.CreatedAt = r.CreatedAt
	assert.Equal(t, r, got)
}

func testPutReplaces(t *testing.T, repo leave.Repository) {
	ctx := context.Background()
	u := sampleUser("u1")
	require.NoError(t, repo.PutUser(ctx, u))
	u.UsedLeaveDays = 9
	require.NoError(t, repo.PutUser(ctx, u))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, 9, snap.Users[0].UsedLeaveDays)
}

func testPatch(t *testing.T, repo leave.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.PutUser(ctx, sampleUser("u1")))
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("r1", 0)))

	used := 7
	require.NoError(t, repo.PatchUser(ctx, "u1", leave.UserPatch{UsedLeaveDays: &used}))

	status := leave.StatusRejected
	reason := "busy week"
	require.NoError(t, repo.PatchRequest(ctx, "r1", leave.RequestPatch{Status: &status, RejectionReason: &reason}))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	u, ok := snap.User("u1")
	require.True(t, ok)
	assert.Equal(t, 7, u.UsedLeaveDays)
	assert.Equal(t, "Çalışan u1", u.Name, "untouched fields survive")

	r, ok := snap.Request("r1")
	require.True(t, ok)
	assert.Equal(t, leave.StatusRejected, r.Status)
	assert.Equal(t, "busy week", r.RejectionReason)
	assert.Equal(t, 10, r.SeniorityAtRequest)

	// An empty patch leaves the request as it is.
	require.NoError(t, repo.PatchRequest(ctx, "r1", leave.RequestPatch{}))
}

func testPatchUnknown(t *testing.T, repo leave.Repository) {
	ctx := context.Background()
	used := 1
	assert.ErrorIs(t, repo.PatchUser(ctx, "nobody", leave.UserPatch{UsedLeaveDays: &used}), leave.ErrUserNotFound)
	assert.ErrorIs(t, repo.PatchUser(ctx, "nobody", leave.UserPatch{}), leave.ErrUserNotFound)

	status := leave.StatusApproved
	assert.ErrorIs(t, repo.PatchRequest(ctx, "nothing", leave.RequestPatch{Status: &status}), leave.ErrRequestNotFound)
	assert.ErrorIs(t, repo.PatchRequest(ctx, "nothing", leave.RequestPatch{}), leave.ErrRequestNotFound)
}

func testSnapshotOrder(t *testing.T, repo leave.Repository) {
	ctx := context.Background()
	// Inserted out of order; same createdAt for b and c.
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("c", time.Minute)))
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("a", 2*time.Minute)))
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("b", time.Minute)))
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("z", 0)))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	ids := make([]string, len(snap.Requests))
	for i, r := range snap.Requests {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"z", "b", "c", "a"}, ids)
}

func testSubscribe(t *testing.T, repo leave.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, repo.PutRequest(ctx, sampleRequest("r1", 0)))

	ch, err := repo.Subscribe(ctx, leave.CollectionRequests)
	require.NoError(t, err)

	first := next(t, ch)
	assert.Equal(t, leave.CollectionRequests, first.Collection)
	require.Len(t, first.Requests, 1)

	// A users change is not delivered to a requests subscriber; the next
	// requests change is.
	require.NoError(t, repo.PutUser(ctx, sampleUser("u1")))
	require.NoError(t, repo.PutRequest(ctx, sampleRequest("r2", time.Second)))

	require.Eventually(t, func() bool {
		select {
		case u, ok := <-ch:
			return ok && u.Collection == leave.CollectionRequests && len(u.Requests) == 2
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func testSubscribeUnknown(t *testing.T, repo leave.Repository) {
	ch, err := repo.Subscribe(context.Background(), leave.Collection("holidays"))
	assert.ErrorContains(t, err, `unknown collection "holidays"`)
	assert.Nil(t, ch)
}

func next(t *testing.T, ch <-chan leave.Update) leave.Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(3 * time.Second):
		t.Fatal("no update within 3s")
		return leave.Update{}
	}
}
