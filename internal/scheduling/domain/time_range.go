// Package domain contains the interview scheduling model: interviewers,
// scheduling requests, slot candidates, holds, and booking records.
package domain

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("end time must be after start time")
)

// TimeRange is a half-open interval [Start, End) in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a validated UTC time range.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsZero reports whether the range is unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Overlaps checks if two ranges overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Contains checks if a time falls within the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Covers checks if the range fully contains another range.
func (r TimeRange) Covers(other TimeRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Intersect returns the overlap of two ranges, or a zero range if disjoint.
func (r TimeRange) Intersect(other TimeRange) TimeRange {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return TimeRange{}
	}
	return TimeRange{Start: start, End: end}
}

// MergeRanges sorts ranges by start and coalesces overlapping or adjacent ones.
func MergeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// SubtractRanges removes busy ranges from a set of free ranges. Both inputs
// may be unsorted; the result is sorted and non-overlapping.
func SubtractRanges(free, busy []TimeRange) []TimeRange {
	result := MergeRanges(free)
	for _, b := range MergeRanges(busy) {
		next := make([]TimeRange, 0, len(result)+1)
		for _, f := range result {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, TimeRange{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, TimeRange{Start: b.End, End: f.End})
			}
		}
		result = next
	}
	return result
}

// IntersectSets returns the pairwise intersection of two sets of ranges.
// Both sides are merged first so the result is sorted and non-overlapping.
func IntersectSets(a, b []TimeRange) []TimeRange {
	ma, mb := MergeRanges(a), MergeRanges(b)
	var result []TimeRange
	i, j := 0, 0
	for i < len(ma) && j < len(mb) {
		if x := ma[i].Intersect(mb[j]); !x.IsZero() {
			result = append(result, x)
		}
		if ma[i].End.Before(mb[j].End) {
			i++
		} else {
			j++
		}
	}
	return result
}
