package leave

// =============================================================================
// CONFLICT RESOLVER - Seniority arbitration for overlapping requests
// =============================================================================
//
// Up to MaxConcurrent holders may share any date range without arbitration.
// From there on a new candidate must be strictly more senior than the weakest
// incumbent (lowest SeniorityAtRequest in the overlap set) to take its place.
// Ties favor the incumbent so equal-seniority staff cannot evict each other
// back and forth.
//
// The resolver is pure: it reads an immutable snapshot and returns a Verdict.
// Callers perform the writes (evict first, then create).

// Outcome is the admission decision for a candidate.
type Outcome string

const (
	OutcomeAdmit  Outcome = "admit"
	OutcomeEvict  Outcome = "admit_evict"
	OutcomeReject Outcome = "reject"
)

// Candidate is the part of a new request the resolver looks at.
type Candidate struct {
	Start     Date
	End       Date
	Seniority int
}

// Verdict is the result of Resolve.
type Verdict struct {
	Outcome  Outcome
	Overlaps []LeaveRequest // non-rejected requests intersecting the candidate
	Evicted  *LeaveRequest  // set only when Outcome == OutcomeEvict
	Weakest  *LeaveRequest  // lowest-seniority member of Overlaps, if arbitration ran
}

// Admitted reports whether the candidate should be created.
func (v Verdict) Admitted() bool { return v.Outcome != OutcomeReject }

// Overlapping returns the requests in existing that are PENDING or APPROVED
// and whose closed interval intersects [start, end].
func Overlapping(start, end Date, existing []LeaveRequest) []LeaveRequest {
	want := DateRange{Start: start, End: end}
	var out []LeaveRequest
	for _, r := range existing {
		if !r.Status.Blocks() {
			continue
		}
		if want.Overlaps(r.Range()) {
			out = append(out, r)
		}
	}
	return out
}

// weakest returns the first request with the lowest SeniorityAtRequest.
// Snapshot order breaks ties.
func weakest(overlaps []LeaveRequest) LeaveRequest {
	w := overlaps[0]
	for _, r := range overlaps[1:] {
		if r.SeniorityAtRequest < w.SeniorityAtRequest {
			w = r
		}
	}
	return w
}

// Resolve decides whether c is admitted, admitted by evicting the weakest
// incumbent, or rejected, using the default MaxConcurrentLeaves threshold.
func Resolve(c Candidate, existing []LeaveRequest) Verdict {
	return DefaultPolicy().Resolve(c, existing)
}

// Resolve is the policy-aware form of the package-level Resolve.
func (p Policy) Resolve(c Candidate, existing []LeaveRequest) Verdict {
	overlaps := Overlapping(c.Start, c.End, existing)
	v := Verdict{Outcome: OutcomeAdmit, Overlaps: overlaps}

	if len(overlaps) < p.maxConcurrent() {
		return v
	}

	w := weakest(overlaps)
	v.Weakest = &w
	if c.Seniority > w.SeniorityAtRequest {
		v.Outcome = OutcomeEvict
		v.Evicted = &w
		return v
	}
	v.Outcome = OutcomeReject
	return v
}

// Err converts a rejecting verdict into an *ArbitrationError.
func (v Verdict) Err(c Candidate) error {
	if v.Outcome != OutcomeReject || v.Weakest == nil {
		return nil
	}
	return &ArbitrationError{
		Candidate: c.Seniority,
		Weakest:   v.Weakest.SeniorityAtRequest,
		Overlaps:  len(v.Overlaps),
	}
}
