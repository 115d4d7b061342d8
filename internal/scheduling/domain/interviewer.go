package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClockSpan is a recurring within-day window in an interviewer's local time.
type ClockSpan struct {
	StartMinute int // minutes since local midnight
	EndMinute   int
}

// WorkingHours maps weekdays to the interviewer's declared local-time windows.
type WorkingHours map[time.Weekday][]ClockSpan

// Interviewer is a panel member as supplied by the directory service. The
// orchestrator treats it as read-only input; the directory owns mutation.
type Interviewer struct {
	ID         uuid.UUID
	Name       string
	Location   *time.Location
	Hours      WorkingHours
	SkillTags  []string
	ProviderID string
}

// WorkingRanges expands the recurring working hours into concrete UTC ranges
// inside the given UTC window. Local wall-clock windows are resolved against
// the interviewer's time zone day by day, so DST transitions are honored.
func (iv *Interviewer) WorkingRanges(window TimeRange) []TimeRange {
	if iv.Location == nil || len(iv.Hours) == 0 {
		return nil
	}

	var ranges []TimeRange

	// Walk local days; start one day early so a local day straddling the
	// window start is not missed.
	localStart := window.Start.In(iv.Location)
	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, iv.Location).AddDate(0, 0, -1)
	localEnd := window.End.In(iv.Location)

	for !day.After(localEnd) {
		for _, span := range iv.Hours[day.Weekday()] {
			start := day.Add(time.Duration(span.StartMinute) * time.Minute)
			end := day.Add(time.Duration(span.EndMinute) * time.Minute)
			if !end.After(start) {
				continue
			}
			r := TimeRange{Start: start.UTC(), End: end.UTC()}
			if x := r.Intersect(window); !x.IsZero() {
				ranges = append(ranges, x)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return MergeRanges(ranges)
}
