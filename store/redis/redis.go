/*
Package redis provides a Redis-backed implementation of leave.Repository.

PURPOSE:
  A hosted datastore shared by several server processes. Every write is
  announced on a pub/sub channel, so every process's subscribers see every
  change, not just the ones made locally.

LAYOUT:
  <prefix>:users     HASH  id -> JSON(leave.User)
  <prefix>:requests  HASH  id -> JSON(leave.LeaveRequest)
  <prefix>:changes:<collection>  pub/sub channel, payload is the changed id

PATCHES:
  HGET, apply, HSET. Two concurrent patches of the same entity race and
  the last write wins, matching the other stores.

SEE ALSO:
  - leave/repository.go: Interface definition
*/
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/leave-portal/leave"
)

const DefaultPrefix = "leave"

// Store wraps the Redis client with the leave collections.
type Store struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// New connects to url (redis://...) and checks connectivity.
func New(url, prefix string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w: %v", leave.ErrStoreUnavailable, err)
	}

	return &Store{rdb: rdb, prefix: prefix, logger: logger}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) key(c leave.Collection) string     { return s.prefix + ":" + string(c) }
func (s *Store) channel(c leave.Collection) string { return s.prefix + ":changes:" + string(c) }

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) PutUser(ctx context.Context, u leave.User) error {
	return s.put(ctx, leave.CollectionUsers, u.ID, u)
}

func (s *Store) PutRequest(ctx context.Context, r leave.LeaveRequest) error {
	return s.put(ctx, leave.CollectionRequests, r.ID, r)
}

func (s *Store) PatchUser(ctx context.Context, id string, p leave.UserPatch) error {
	var u leave.User
	if err := s.get(ctx, leave.CollectionUsers, id, &u, leave.ErrUserNotFound); err != nil {
		return err
	}
	return s.put(ctx, leave.CollectionUsers, id, p.Apply(u))
}

func (s *Store) PatchRequest(ctx context.Context, id string, p leave.RequestPatch) error {
	var r leave.LeaveRequest
	if err := s.get(ctx, leave.CollectionRequests, id, &r, leave.ErrRequestNotFound); err != nil {
		return err
	}
	return s.put(ctx, leave.CollectionRequests, id, p.Apply(r))
}

func (s *Store) put(ctx context.Context, c leave.Collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c, id, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(c), id, data)
		pipe.Publish(ctx, s.channel(c), id)
		return nil
	})
	if err != nil {
		return s.unavailable(fmt.Sprintf("write %s %s", c, id), err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, c leave.Collection, id string, v any, notFound error) error {
	data, err := s.rdb.HGet(ctx, s.key(c), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound
	}
	if err != nil {
		return s.unavailable(fmt.Sprintf("read %s %s", c, id), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", c, id, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Load(ctx context.Context) (leave.Snapshot, error) {
	users, err := s.users(ctx)
	if err != nil {
		return leave.Snapshot{}, err
	}
	requests, err := s.requests(ctx)
	if err != nil {
		return leave.Snapshot{}, err
	}
	return leave.Snapshot{Users: users, Requests: requests}, nil
}

func (s *Store) users(ctx context.Context) ([]leave.User, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key(leave.CollectionUsers)).Result()
	if err != nil {
		return nil, s.unavailable("list users", err)
	}
	users := make([]leave.User, 0, len(raw))
	for id, data := range raw {
		var u leave.User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			s.logger.Warn("skipping undecodable user", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		users = append(users, u)
	}
	leave.SortUsers(users)
	return users, nil
}

func (s *Store) requests(ctx context.Context) ([]leave.LeaveRequest, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key(leave.CollectionRequests)).Result()
	if err != nil {
		return nil, s.unavailable("list requests", err)
	}
	requests := make([]leave.LeaveRequest, 0, len(raw))
	for id, data := range raw {
		var r leave.LeaveRequest
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			s.logger.Warn("skipping undecodable request", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		requests = append(requests, r)
	}
	leave.SortRequests(requests)
	return requests, nil
}

func (s *Store) collection(ctx context.Context, c leave.Collection) (leave.Update, error) {
	u := leave.Update{Collection: c}
	var err error
	switch c {
	case leave.CollectionUsers:
		u.Users, err = s.users(ctx)
	case leave.CollectionRequests:
		u.Requests, err = s.requests(ctx)
	default:
		err = fmt.Errorf("unknown collection %q", c)
	}
	return u, err
}

// Subscribe listens on the collection's change channel and reloads the
// whole collection on every message. The subscription is registered before
// the initial read, so no change between the two is lost.
func (s *Store) Subscribe(ctx context.Context, c leave.Collection) (<-chan leave.Update, error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel(c))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, s.unavailable("subscribe "+string(c), err)
	}

	initial, err := s.collection(ctx, c)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan leave.Update, 1)
	out <- initial

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				u, err := s.collection(ctx, c)
				if err != nil {
					s.logger.Warn("reload after change failed",
						slog.String("collection", string(c)), slog.String("error", err.Error()))
					continue
				}
				// Keep only the newest snapshot for a slow reader.
				select {
				case <-out:
				default:
				}
				out <- u
			}
		}
	}()
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return s.unavailable("ping", err)
	}
	return nil
}

func (s *Store) unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, leave.ErrStoreUnavailable, err)
}

var _ leave.Repository = (*Store)(nil)
