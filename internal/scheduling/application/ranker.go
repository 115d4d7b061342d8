package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// RankerConfig configures slot generation.
type RankerConfig struct {
	// Granularity anchors slot starts (e.g. 15-minute boundaries) to keep
	// result sets enumerable.
	Granularity time.Duration

	// MaxCandidates caps the returned list.
	MaxCandidates int
}

// DefaultRankerConfig returns the production defaults.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		Granularity:   15 * time.Minute,
		MaxCandidates: 50,
	}
}

// ProposalResult is the outcome of one ranking call.
type ProposalResult struct {
	Candidates []domain.SlotCandidate

	// Degraded is set when at least one involved provider's circuit is
	// open; callers may fall back to manual scheduling.
	Degraded bool
}

// memberAvailability is one panel member's feasible free time for a request.
type memberAvailability struct {
	id      uuid.UUID
	free    []domain.TimeRange
	stale   bool
	hasData bool
}

// SlotRanker generates and ranks feasible slot candidates for a scheduling
// request.
type SlotRanker struct {
	availability *AvailabilityAggregator
	directory    domain.InterviewerDirectory
	load         *LoadBalancer
	cfg          RankerConfig
	logger       *slog.Logger
}

// NewSlotRanker creates a slot ranker.
func NewSlotRanker(availability *AvailabilityAggregator, directory domain.InterviewerDirectory, load *LoadBalancer, cfg RankerConfig, logger *slog.Logger) *SlotRanker {
	if cfg.Granularity <= 0 {
		cfg.Granularity = 15 * time.Minute
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotRanker{
		availability: availability,
		directory:    directory,
		load:         load,
		cfg:          cfg,
		logger:       logger,
	}
}

// ProposeSlots returns ranked feasible slots, most preferred first. An empty
// list is a valid answer; the caller widens the window or degrades to manual
// scheduling. The call fails with ErrInsufficientAvailabilityData only when
// no required interviewer has usable availability data.
func (r *SlotRanker) ProposeSlots(ctx context.Context, req *domain.SchedulingRequest) (*ProposalResult, error) {
	windows := req.CandidateWindows()
	envelope := domain.TimeRange{Start: windows[0].Start, End: windows[len(windows)-1].End}

	allIDs := req.AllInterviewerIDs()
	avail, err := r.availability.GetAvailability(ctx, allIDs, envelope)
	if err != nil {
		return nil, err
	}

	interviewers, err := r.directory.GetInterviewers(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	result := &ProposalResult{}
	members := make(map[uuid.UUID]memberAvailability, len(allIDs))
	for _, id := range allIDs {
		a := avail[id]
		if a.Degraded {
			result.Degraded = true
		}
		iv, known := interviewers[id]
		if !known || a.Unavailable {
			members[id] = memberAvailability{id: id}
			continue
		}
		working := iv.WorkingRanges(envelope)
		feasible := domain.SubtractRanges(domain.IntersectSets(working, windows), a.Busy)
		members[id] = memberAvailability{
			id:      id,
			free:    feasible,
			stale:   a.Stale,
			hasData: true,
		}
	}

	// All required interviewers without data is fatal; a subset is handled
	// through substitution below.
	dataFound := false
	for _, id := range req.Required() {
		if members[id].hasData {
			dataFound = true
			break
		}
		for _, alt := range req.AlternatesFor(id) {
			if members[alt].hasData {
				dataFound = true
				break
			}
		}
		if dataFound {
			break
		}
	}
	if !dataFound {
		return nil, ErrInsufficientAvailabilityData
	}

	result.Candidates = r.enumerate(req, members, envelope)
	r.rank(result.Candidates)
	if len(result.Candidates) > r.cfg.MaxCandidates {
		result.Candidates = result.Candidates[:r.cfg.MaxCandidates]
	}
	return result, nil
}

// enumerate walks granularity-anchored start times and resolves a panel for
// each feasible slot. Panel resolution is per slot: the required interviewer
// when free, otherwise the first free alternate, recorded as a substitution.
func (r *SlotRanker) enumerate(req *domain.SchedulingRequest, members map[uuid.UUID]memberAvailability, envelope domain.TimeRange) []domain.SlotCandidate {
	slotLen := req.SlotLength()
	var candidates []domain.SlotCandidate

	for t := envelope.Start.Truncate(r.cfg.Granularity); ; t = t.Add(r.cfg.Granularity) {
		if t.Before(envelope.Start) {
			continue
		}
		slot := domain.TimeRange{Start: t, End: t.Add(slotLen)}
		if slot.End.After(envelope.End) {
			break
		}
		if !coveredByAny(req.CandidateWindows(), slot) {
			continue
		}

		panel, stale, ok := r.resolvePanel(req, members, slot)
		if !ok {
			continue
		}

		key := domain.NewSlotKey(panel.InterviewerIDs, slot)
		candidates = append(candidates, domain.SlotCandidate{
			RequestID:         req.ID(),
			Range:             slot,
			Panel:             panel,
			Stale:             stale,
			Key:               key,
			LoadPenalty:       r.load.Penalty(panel.InterviewerIDs),
			SubstitutionCount: len(panel.Substitutions),
		})
	}

	return candidates
}

// resolvePanel picks a concrete member per required seat for the slot.
func (r *SlotRanker) resolvePanel(req *domain.SchedulingRequest, members map[uuid.UUID]memberAvailability, slot domain.TimeRange) (domain.PanelResolution, bool, bool) {
	var panel domain.PanelResolution
	stale := false

	for _, requiredID := range req.Required() {
		m := members[requiredID]
		if m.hasData && coveredByAny(m.free, slot) {
			panel.InterviewerIDs = append(panel.InterviewerIDs, requiredID)
			stale = stale || m.stale
			continue
		}

		reason := "busy"
		if !m.hasData {
			reason = "availability unavailable"
		}

		substituted := false
		for _, altID := range req.AlternatesFor(requiredID) {
			alt := members[altID]
			if alt.hasData && coveredByAny(alt.free, slot) {
				panel.InterviewerIDs = append(panel.InterviewerIDs, altID)
				panel.Substitutions = append(panel.Substitutions, domain.Substitution{
					RequiredID:  requiredID,
					AlternateID: altID,
					Reason:      reason,
				})
				stale = stale || alt.stale
				substituted = true
				break
			}
		}
		if !substituted {
			return domain.PanelResolution{}, false, false
		}
	}

	return panel, stale, true
}

// rank orders candidates most preferred first: fresh data, lower load
// penalty, earlier start, fewer substitutions, then lexical key for
// deterministic ties.
func (r *SlotRanker) rank(candidates []domain.SlotCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Stale != b.Stale {
			return !a.Stale
		}
		if a.LoadPenalty != b.LoadPenalty {
			return a.LoadPenalty < b.LoadPenalty
		}
		if !a.Range.Start.Equal(b.Range.Start) {
			return a.Range.Start.Before(b.Range.Start)
		}
		if a.SubstitutionCount != b.SubstitutionCount {
			return a.SubstitutionCount < b.SubstitutionCount
		}
		return a.Key < b.Key
	})

	// Score is descending preference for observability; rank order is
	// authoritative.
	for i := range candidates {
		candidates[i].Score = float64(len(candidates) - i)
	}
}

func coveredByAny(ranges []domain.TimeRange, slot domain.TimeRange) bool {
	for _, r := range ranges {
		if r.Covers(slot) {
			return true
		}
	}
	return false
}
