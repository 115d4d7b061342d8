// Package persistence implements the scheduling repositories for PostgreSQL
// and SQLite, plus the Redis-backed hold store.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// Panel members, substitutions and event refs are stored as JSON documents;
// they are always read and written as a unit with the booking row.

type substitutionDoc struct {
	RequiredID  string `json:"required_id"`
	AlternateID string `json:"alternate_id"`
	Reason      string `json:"reason"`
}

type eventRefDoc struct {
	InterviewerID string `json:"interviewer_id"`
	ProviderID    string `json:"provider_id"`
	EventID       string `json:"event_id"`
}

func marshalPanelIDs(ids []uuid.UUID) (string, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	raw, err := json.Marshal(strs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalPanelIDs(raw string) ([]uuid.UUID, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, fmt.Errorf("panel ids: %w", err)
	}
	ids := make([]uuid.UUID, len(strs))
	for i, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("panel ids: %w", err)
		}
		ids[i] = id
	}
	return ids, nil
}

func marshalSubstitutions(subs []domain.Substitution) (string, error) {
	docs := make([]substitutionDoc, len(subs))
	for i, s := range subs {
		docs[i] = substitutionDoc{
			RequiredID:  s.RequiredID.String(),
			AlternateID: s.AlternateID.String(),
			Reason:      s.Reason,
		}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalSubstitutions(raw string) ([]domain.Substitution, error) {
	var docs []substitutionDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("substitutions: %w", err)
	}
	subs := make([]domain.Substitution, len(docs))
	for i, d := range docs {
		requiredID, err := uuid.Parse(d.RequiredID)
		if err != nil {
			return nil, fmt.Errorf("substitutions: %w", err)
		}
		alternateID, err := uuid.Parse(d.AlternateID)
		if err != nil {
			return nil, fmt.Errorf("substitutions: %w", err)
		}
		subs[i] = domain.Substitution{
			RequiredID:  requiredID,
			AlternateID: alternateID,
			Reason:      d.Reason,
		}
	}
	return subs, nil
}

func marshalEventRefs(refs []domain.EventRef) (string, error) {
	docs := make([]eventRefDoc, len(refs))
	for i, r := range refs {
		docs[i] = eventRefDoc{
			InterviewerID: r.InterviewerID.String(),
			ProviderID:    r.ProviderID,
			EventID:       r.EventID,
		}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalEventRefs(raw string) ([]domain.EventRef, error) {
	var docs []eventRefDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("event refs: %w", err)
	}
	refs := make([]domain.EventRef, len(docs))
	for i, d := range docs {
		interviewerID, err := uuid.Parse(d.InterviewerID)
		if err != nil {
			return nil, fmt.Errorf("event refs: %w", err)
		}
		refs[i] = domain.EventRef{
			InterviewerID: interviewerID,
			ProviderID:    d.ProviderID,
			EventID:       d.EventID,
		}
	}
	return refs, nil
}

// Working hours are stored keyed by lowercase weekday name with minute
// spans, e.g. {"monday":[{"start":540,"end":1020}]}.

type clockSpanDoc struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

var weekdayNames = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

func marshalWorkingHours(hours domain.WorkingHours) (string, error) {
	docs := make(map[string][]clockSpanDoc, len(hours))
	for day, spans := range hours {
		name := dayName(int(day))
		for _, span := range spans {
			docs[name] = append(docs[name], clockSpanDoc{Start: span.StartMinute, End: span.EndMinute})
		}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalWorkingHours(raw string) (domain.WorkingHours, error) {
	var docs map[string][]clockSpanDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	hours := domain.WorkingHours{}
	for name, spans := range docs {
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("working hours: unknown weekday %q", name)
		}
		for _, span := range spans {
			hours[time.Weekday(day)] = append(hours[time.Weekday(day)], domain.ClockSpan{
				StartMinute: span.Start,
				EndMinute:   span.End,
			})
		}
	}
	return hours, nil
}

func dayName(day int) string {
	for name, d := range weekdayNames {
		if d == day {
			return name
		}
	}
	return "sunday"
}
