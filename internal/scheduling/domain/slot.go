package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotKey canonically identifies a slot: the sorted interviewer id set plus
// the UTC time range. Logically identical slots produced through different
// alternate-substitution paths map to the same key.
type SlotKey string

// NewSlotKey builds the canonical key for an interviewer set and range.
func NewSlotKey(interviewerIDs []uuid.UUID, r TimeRange) SlotKey {
	ids := make([]string, 0, len(interviewerIDs))
	for _, id := range interviewerIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte(',')
	}
	b.WriteString(r.Start.UTC().Format(time.RFC3339))
	b.WriteByte('/')
	b.WriteString(r.End.UTC().Format(time.RFC3339))
	return SlotKey(b.String())
}

func (k SlotKey) String() string { return string(k) }

// ParseSlotKey decodes a canonical slot key back into its interviewer set
// and UTC range. Callers hand keys back when taking a hold, so the key must
// round-trip.
func ParseSlotKey(key SlotKey) ([]uuid.UUID, TimeRange, error) {
	parts := strings.Split(string(key), ",")
	if len(parts) < 2 {
		return nil, TimeRange{}, errors.New("malformed slot key")
	}

	ids := make([]uuid.UUID, 0, len(parts)-1)
	for _, raw := range parts[:len(parts)-1] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, TimeRange{}, fmt.Errorf("malformed slot key: %w", err)
		}
		ids = append(ids, id)
	}

	startEnd := strings.SplitN(parts[len(parts)-1], "/", 2)
	if len(startEnd) != 2 {
		return nil, TimeRange{}, errors.New("malformed slot key range")
	}
	start, err := time.Parse(time.RFC3339, startEnd[0])
	if err != nil {
		return nil, TimeRange{}, fmt.Errorf("malformed slot key range: %w", err)
	}
	end, err := time.Parse(time.RFC3339, startEnd[1])
	if err != nil {
		return nil, TimeRange{}, fmt.Errorf("malformed slot key range: %w", err)
	}
	r, err := NewTimeRange(start, end)
	if err != nil {
		return nil, TimeRange{}, err
	}
	return ids, r, nil
}

// Substitution records one alternate standing in for a required interviewer.
type Substitution struct {
	RequiredID  uuid.UUID
	AlternateID uuid.UUID
	Reason      string
}

// PanelResolution is the resolved interviewer set for a slot, with
// provenance for any substitutions that were made.
type PanelResolution struct {
	InterviewerIDs []uuid.UUID
	Substitutions  []Substitution
}

// SlotCandidate is a feasible, ranked proposal for a scheduling request.
// Candidates are transient: produced fresh on every ranking call.
type SlotCandidate struct {
	RequestID uuid.UUID
	Range     TimeRange
	Panel     PanelResolution
	Score     float64
	Stale     bool
	Key       SlotKey

	// LoadPenalty and SubstitutionCount feed the ranking; kept on the
	// candidate so callers can explain the ordering.
	LoadPenalty       float64
	SubstitutionCount int
}
