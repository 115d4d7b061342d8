package cli

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToInterviewer(t *testing.T) {
	rec := interviewerRecord{
		ID:       uuid.NewString(),
		Name:     "Ada",
		TimeZone: "Europe/Berlin",
		Hours: map[string][]struct {
			StartMinute int `json:"start_minute"`
			EndMinute   int `json:"end_minute"`
		}{
			"monday": {{StartMinute: 9 * 60, EndMinute: 17 * 60}},
		},
		SkillTags:  []string{"golang", "distributed-systems"},
		ProviderID: "google",
	}

	iv, err := recordToInterviewer(rec)
	require.NoError(t, err)
	assert.Equal(t, "Ada", iv.Name)
	assert.Equal(t, "Europe/Berlin", iv.Location.String())
	require.Len(t, iv.Hours[time.Monday], 1)
	assert.Equal(t, 9*60, iv.Hours[time.Monday][0].StartMinute)
	assert.Equal(t, "google", iv.ProviderID)
}

func TestRecordToInterviewer_Invalid(t *testing.T) {
	_, err := recordToInterviewer(interviewerRecord{ID: "nope"})
	require.Error(t, err)

	_, err = recordToInterviewer(interviewerRecord{ID: uuid.NewString(), TimeZone: "Mars/Olympus"})
	require.Error(t, err)

	rec := interviewerRecord{ID: uuid.NewString()}
	rec.Hours = map[string][]struct {
		StartMinute int `json:"start_minute"`
		EndMinute   int `json:"end_minute"`
	}{"moonday": {{StartMinute: 0, EndMinute: 60}}}
	_, err = recordToInterviewer(rec)
	require.Error(t, err)
}
