/*
Package sqlite provides a SQLite-backed implementation of leave.Repository.

PURPOSE:
  Persists the roster and leave requests in an embedded database and
  publishes a whole-collection snapshot to subscribers after every write.

KEY TABLES:
  users:    Roster with seniority and entitlement counters
  requests: Leave requests with status and rejection reason

WRITES:
  Put*   - INSERT ... ON CONFLICT(id) DO UPDATE (create or replace)
  Patch* - UPDATE of the patched columns only (last write wins)

CHANGE FEED:
  SQLite has no change notifications, so the store publishes through an
  in-process leave.Feed. Subscribers in other processes sharing the same
  file do not see each other's writes; use the redis store for that.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/repository.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-portal/leave"
)

// Store implements leave.Repository using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	feed *leave.Feed
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, feed: leave.NewFeed()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close ends subscriptions and closes the database connection.
func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		sicil_no TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password TEXT NOT NULL,
		years_of_service INTEGER NOT NULL,
		role TEXT NOT NULL,
		total_leave_entitlement INTEGER NOT NULL,
		used_leave_days INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		rejection_reason TEXT,
		seniority_at_request INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status_dates
		ON requests(status, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_created_at
		ON requests(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) PutUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users
		(id, sicil_no, name, password, years_of_service, role, total_leave_entitlement, used_leave_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sicil_no = excluded.sicil_no,
			name = excluded.name,
			password = excluded.password,
			years_of_service = excluded.years_of_service,
			role = excluded.role,
			total_leave_entitlement = excluded.total_leave_entitlement,
			used_leave_days = excluded.used_leave_days
	`, u.ID, u.SicilNo, u.Name, u.Password, u.YearsOfService, string(u.Role), u.TotalLeaveEntitlement, u.UsedLeaveDays)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return s.publishLocked(ctx, leave.CollectionUsers)
}

func (s *Store) PutRequest(ctx context.Context, r leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, user_id, user_name, start_date, end_date, status, rejection_reason, seniority_at_request, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			rejection_reason = excluded.rejection_reason,
			seniority_at_request = excluded.seniority_at_request,
			created_at = excluded.created_at
	`, r.ID, r.UserID, r.UserName, r.StartDate.String(), r.EndDate.String(), string(r.Status),
		nullString(r.RejectionReason), r.SeniorityAtRequest, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return s.publishLocked(ctx, leave.CollectionRequests)
}

func (s *Store) PatchUser(ctx context.Context, id string, p leave.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UsedLeaveDays == nil {
		return s.ensureExists(ctx, "users", id, leave.ErrUserNotFound)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET used_leave_days = ? WHERE id = ?`, *p.UsedLeaveDays, id)
	if err != nil {
		return fmt.Errorf("failed to patch user: %w", err)
	}
	if err := rowsAffected(res, leave.ErrUserNotFound); err != nil {
		return err
	}
	return s.publishLocked(ctx, leave.CollectionUsers)
}

func (s *Store) PatchRequest(ctx context.Context, id string, p leave.RequestPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.RejectionReason != nil {
		sets = append(sets, "rejection_reason = ?")
		args = append(args, nullString(*p.RejectionReason))
	}
	if len(sets) == 0 {
		return s.ensureExists(ctx, "requests", id, leave.ErrRequestNotFound)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE requests SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to patch request: %w", err)
	}
	if err := rowsAffected(res, leave.ErrRequestNotFound); err != nil {
		return err
	}
	return s.publishLocked(ctx, leave.CollectionRequests)
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Load(ctx context.Context) (leave.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.listUsers(ctx)
	if err != nil {
		return leave.Snapshot{}, err
	}
	requests, err := s.listRequests(ctx)
	if err != nil {
		return leave.Snapshot{}, err
	}
	return leave.Snapshot{Users: users, Requests: requests}, nil
}

func (s *Store) Subscribe(ctx context.Context, c leave.Collection) (<-chan leave.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	initial, err := s.collection(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, c, initial), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", leave.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) listUsers(ctx context.Context) ([]leave.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sicil_no, name, password, years_of_service, role, total_leave_entitlement, used_leave_days
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []leave.User{}
	for rows.Next() {
		var u leave.User
		var role string
		if err := rows.Scan(&u.ID, &u.SicilNo, &u.Name, &u.Password, &u.YearsOfService, &role,
			&u.TotalLeaveEntitlement, &u.UsedLeaveDays); err != nil {
			return nil, err
		}
		u.Role = leave.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) listRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_name, start_date, end_date, status, rejection_reason, seniority_at_request, created_at
		FROM requests
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []leave.LeaveRequest{}
	for rows.Next() {
		var r leave.LeaveRequest
		var start, end, status, createdAt string
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserName, &start, &end, &status, &reason,
			&r.SeniorityAtRequest, &createdAt); err != nil {
			return nil, err
		}
		if r.StartDate, err = leave.ParseDate(start); err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		if r.EndDate, err = leave.ParseDate(end); err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("request %s: created_at: %w", r.ID, err)
		}
		r.Status = leave.Status(status)
		r.RejectionReason = reason.String
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	leave.SortRequests(requests)
	return requests, nil
}

func (s *Store) collection(ctx context.Context, c leave.Collection) (leave.Update, error) {
	u := leave.Update{Collection: c}
	var err error
	switch c {
	case leave.CollectionUsers:
		u.Users, err = s.listUsers(ctx)
	case leave.CollectionRequests:
		u.Requests, err = s.listRequests(ctx)
	default:
		err = fmt.Errorf("unknown collection %q", c)
	}
	return u, err
}

// publishLocked sends the new collection to subscribers. Called with s.mu
// held so subscribers observe writes in order.
func (s *Store) publishLocked(ctx context.Context, c leave.Collection) error {
	u, err := s.collection(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to read %s after write: %w", c, err)
	}
	s.feed.Publish(u)
	return nil
}

func (s *Store) ensureExists(ctx context.Context, table, id string, notFound error) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func rowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ leave.Repository = (*Store)(nil)
