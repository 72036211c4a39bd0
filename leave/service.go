package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// REQUEST SERVICE - Runs submissions and admin actions against a Repository
// =============================================================================

// Recorder receives counters for verdicts and admin decisions. The metrics
// package provides the Prometheus implementation.
type Recorder interface {
	ObserveVerdict(path string, outcome Outcome)
	ObserveDecision(status Status)
	ObserveValidationFailure(code string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerdict(string, Outcome)   {}
func (nopRecorder) ObserveDecision(Status)           {}
func (nopRecorder) ObserveValidationFailure(string) {}

// Submission paths, used as a label on verdict metrics and logs.
const (
	PathEmployee = "employee"
	PathDirect   = "direct"
)

// Service is the single caller of the resolver and the bookkeeping. Every
// operation loads one fresh Snapshot, decides on it, then writes.
type Service struct {
	Repo     Repository
	Policy   Policy
	Logger   *slog.Logger
	Recorder Recorder

	// Location decides what "today" means for the start-in-the-past guard.
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
}

// NewService returns a Service with UTC dates, the wall clock and UUID ids.
func NewService(repo Repository, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Repo:     repo,
		Policy:   policy,
		Logger:   logger,
		Recorder: nopRecorder{},
		Location: time.UTC,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

func (s *Service) recorder() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}

// Today returns the current calendar day in the service's location.
func (s *Service) Today() Date {
	return DateOf(s.now(), s.Location)
}

func (s *Service) load(ctx context.Context) (Snapshot, error) {
	snap, err := s.Repo.Load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// SubmitResult describes what a submission wrote.
type SubmitResult struct {
	Request LeaveRequest
	Verdict Verdict
}

// =============================================================================
// SUBMIT - Employee path
// =============================================================================

// Submit validates and resolves a request by actorID for [start, end].
// A lost arbitration returns an *ArbitrationError and writes nothing.
// Otherwise the displaced request (if any) is rejected first, then the new
// request is created as PENDING.
func (s *Service) Submit(ctx context.Context, actorID string, start, end Date) (SubmitResult, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	actor, ok := snap.User(actorID)
	if !ok {
		return SubmitResult{}, fmt.Errorf("submit by %s: %w", actorID, ErrUserNotFound)
	}

	if err := s.Policy.ValidateSubmission(start, end, s.Today(), Remaining(actor)); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			s.recorder().ObserveValidationFailure(ve.Code)
		}
		return SubmitResult{}, err
	}

	req := LeaveRequest{
		ID:                 s.newID(),
		UserID:             actor.ID,
		UserName:           actor.Name,
		StartDate:          start,
		EndDate:            end,
		Status:             StatusPending,
		SeniorityAtRequest: actor.YearsOfService,
		CreatedAt:          s.now().UTC(),
	}
	return s.admit(ctx, PathEmployee, req, snap.Requests)
}

// =============================================================================
// PLACE - Direct path (admin on behalf of a user, scenarios, imports)
// =============================================================================

// Place resolves and writes req as given, using req.SeniorityAtRequest.
// Only the date range is validated. Unlike the browser original, a lost
// arbitration is reported as an *ArbitrationError instead of being dropped.
func (s *Service) Place(ctx context.Context, req LeaveRequest) (SubmitResult, error) {
	if err := ValidateRange(req.StartDate, req.EndDate); err != nil {
		return SubmitResult{}, err
	}
	if req.ID == "" {
		req.ID = s.newID()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now().UTC()
	}

	snap, err := s.load(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	if req.UserName == "" {
		if u, ok := snap.User(req.UserID); ok {
			req.UserName = u.Name
		}
	}
	return s.admit(ctx, PathDirect, req, snap.Requests)
}

func (s *Service) admit(ctx context.Context, path string, req LeaveRequest, existing []LeaveRequest) (SubmitResult, error) {
	c := Candidate{Start: req.StartDate, End: req.EndDate, Seniority: req.SeniorityAtRequest}
	v := s.Policy.Resolve(c, existing)
	s.recorder().ObserveVerdict(path, v.Outcome)

	if !v.Admitted() {
		s.Logger.Info("leave request lost arbitration",
			slog.String("path", path),
			slog.String("user_id", req.UserID),
			slog.String("range", req.Range().String()),
			slog.Int("seniority", c.Seniority),
			slog.Int("weakest", v.Weakest.SeniorityAtRequest),
		)
		return SubmitResult{Verdict: v}, v.Err(c)
	}

	if v.Evicted != nil {
		status := StatusRejected
		reason := EvictionReason
		if err := s.Repo.PatchRequest(ctx, v.Evicted.ID, RequestPatch{Status: &status, RejectionReason: &reason}); err != nil {
			return SubmitResult{Verdict: v}, fmt.Errorf("evict request %s: %w", v.Evicted.ID, err)
		}
		s.Logger.Info("leave request evicted",
			slog.String("request_id", v.Evicted.ID),
			slog.String("user_id", v.Evicted.UserID),
			slog.Int("seniority", v.Evicted.SeniorityAtRequest),
			slog.String("by_user_id", req.UserID),
		)
	}

	if err := s.Repo.PutRequest(ctx, req); err != nil {
		return SubmitResult{Verdict: v}, fmt.Errorf("create request %s: %w", req.ID, err)
	}
	s.Logger.Info("leave request created",
		slog.String("path", path),
		slog.String("request_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.String("range", req.Range().String()),
		slog.String("outcome", string(v.Outcome)),
	)
	return SubmitResult{Request: req, Verdict: v}, nil
}

// =============================================================================
// ADMIN DECISIONS
// =============================================================================

// Approve moves a PENDING request to APPROVED and adds its day-span to the
// owner's UsedLeaveDays. Any other current status fails with a
// *FinalizedError, so the bookkeeping runs at most once per request.
func (s *Service) Approve(ctx context.Context, requestID string) (LeaveRequest, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return LeaveRequest{}, err
	}
	req, ok := snap.Request(requestID)
	if !ok {
		return LeaveRequest{}, fmt.Errorf("approve %s: %w", requestID, ErrRequestNotFound)
	}
	if req.Status != StatusPending {
		return req, &FinalizedError{RequestID: req.ID, Status: req.Status}
	}

	// Book the days before the status flips. A failed status write then
	// leaves the request PENDING, and the booking is rolled back so a retry
	// starts clean.
	owner, hasOwner := snap.User(req.UserID)
	var updated User
	if hasOwner {
		updated = ApplyApproval(owner, req)
		if err := s.Repo.PatchUser(ctx, owner.ID, UserPatch{UsedLeaveDays: &updated.UsedLeaveDays}); err != nil {
			return req, fmt.Errorf("update balance of %s: %w", owner.ID, err)
		}
	}

	status := StatusApproved
	if err := s.Repo.PatchRequest(ctx, req.ID, RequestPatch{Status: &status}); err != nil {
		if hasOwner {
			if rbErr := s.Repo.PatchUser(ctx, owner.ID, UserPatch{UsedLeaveDays: &owner.UsedLeaveDays}); rbErr != nil {
				s.Logger.Error("failed to roll back leave booking",
					slog.String("request_id", req.ID),
					slog.String("user_id", owner.ID),
					slog.Int("used_leave_days", updated.UsedLeaveDays),
					slog.Any("error", rbErr),
				)
			}
		}
		return req, fmt.Errorf("approve %s: %w", req.ID, err)
	}
	req.Status = status
	s.recorder().ObserveDecision(status)

	if !hasOwner {
		s.Logger.Warn("approved request has no owner on the roster",
			slog.String("request_id", req.ID), slog.String("user_id", req.UserID))
		return req, nil
	}
	s.Logger.Info("leave request approved",
		slog.String("request_id", req.ID),
		slog.String("user_id", owner.ID),
		slog.Int("days", req.Days()),
		slog.Int("used_leave_days", updated.UsedLeaveDays),
	)
	return req, nil
}

// Reject moves a PENDING request to REJECTED. reason may be empty.
func (s *Service) Reject(ctx context.Context, requestID, reason string) (LeaveRequest, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return LeaveRequest{}, err
	}
	req, ok := snap.Request(requestID)
	if !ok {
		return LeaveRequest{}, fmt.Errorf("reject %s: %w", requestID, ErrRequestNotFound)
	}
	if req.Status != StatusPending {
		return req, &FinalizedError{RequestID: req.ID, Status: req.Status}
	}

	status := StatusRejected
	patch := RequestPatch{Status: &status}
	if reason != "" {
		patch.RejectionReason = &reason
	}
	if err := s.Repo.PatchRequest(ctx, req.ID, patch); err != nil {
		return req, fmt.Errorf("reject %s: %w", req.ID, err)
	}
	s.recorder().ObserveDecision(status)
	s.Logger.Info("leave request rejected", slog.String("request_id", req.ID), slog.String("reason", reason))
	return patch.Apply(req), nil
}

// Decide dispatches an admin action by target status.
func (s *Service) Decide(ctx context.Context, requestID string, status Status, reason string) (LeaveRequest, error) {
	switch status {
	case StatusApproved:
		return s.Approve(ctx, requestID)
	case StatusRejected:
		return s.Reject(ctx, requestID, reason)
	default:
		return LeaveRequest{}, fmt.Errorf("decide %s as %q: %w", requestID, status, ErrInvalidTransition)
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	UserID string
	Status Status
}

func (f RequestFilter) match(r LeaveRequest) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// ListRequests returns matching requests, newest first.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LeaveRequest, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		if f.match(r) {
			out = append(out, r)
		}
	}
	NewestFirst(out)
	return out, nil
}

func (s *Service) Users(ctx context.Context) ([]User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Users, nil
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	u, ok := snap.User(id)
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return u, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (BalanceSummary, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return BalanceSummary{}, err
	}
	return Summarize(u), nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(snap.Requests), nil
}

// Login matches a registry number and secret against the current roster.
func (s *Service) Login(ctx context.Context, sicil, secret string) (User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	u, err := Authenticate(snap.Users, sicil, secret)
	if err != nil {
		s.Logger.Info("login failed", slog.String("sicil_no", sicil))
		return User{}, err
	}
	return u, nil
}

// Seed writes users when the users collection is empty and returns how many
// were written.
func (s *Service) Seed(ctx context.Context, users []User) (int, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(snap.Users) > 0 {
		return 0, nil
	}
	for i, u := range users {
		if err := s.Repo.PutUser(ctx, u); err != nil {
			return i, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	s.Logger.Info("roster seeded", slog.Int("users", len(users)))
	return len(users), nil
}
