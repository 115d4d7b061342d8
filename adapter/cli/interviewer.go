package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/app"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/security"
	"github.com/recruitflow/scheduler/pkg/config"
	"github.com/spf13/cobra"
)

var interviewerFile string

// interviewerRecord is the JSON shape accepted by the import command.
type interviewerRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
	Hours    map[string][]struct {
		StartMinute int `json:"start_minute"`
		EndMinute   int `json:"end_minute"`
	} `json:"working_hours"`
	SkillTags  []string `json:"skill_tags"`
	ProviderID string   `json:"provider_id"`
}

var interviewerCmd = &cobra.Command{
	Use:   "interviewer",
	Short: "Manage the interviewer directory",
}

var interviewerImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import interviewers from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := security.SafeReadFile(interviewerFile)
		if err != nil {
			return err
		}
		var records []interviewerRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("invalid interviewer file: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		container, err := app.NewContainer(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		for _, rec := range records {
			iv, err := recordToInterviewer(rec)
			if err != nil {
				return fmt.Errorf("interviewer %q: %w", rec.Name, err)
			}
			if err := container.DirectoryAdmin.Save(cmd.Context(), iv); err != nil {
				return fmt.Errorf("interviewer %q: %w", rec.Name, err)
			}
		}
		fmt.Printf("imported %d interviewers\n", len(records))
		return nil
	},
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func recordToInterviewer(rec interviewerRecord) (*domain.Interviewer, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	loc := time.UTC
	if rec.TimeZone != "" {
		loc, err = time.LoadLocation(rec.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("unknown time zone %q", rec.TimeZone)
		}
	}
	hours := domain.WorkingHours{}
	for day, spans := range rec.Hours {
		weekday, ok := weekdays[day]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		for _, s := range spans {
			hours[weekday] = append(hours[weekday], domain.ClockSpan{
				StartMinute: s.StartMinute,
				EndMinute:   s.EndMinute,
			})
		}
	}
	return &domain.Interviewer{
		ID:         id,
		Name:       rec.Name,
		Location:   loc,
		Hours:      hours,
		SkillTags:  rec.SkillTags,
		ProviderID: rec.ProviderID,
	}, nil
}

func init() {
	interviewerImportCmd.Flags().StringVarP(&interviewerFile, "file", "f", "interviewers.json", "JSON file with interviewer records")
	interviewerCmd.AddCommand(interviewerImportCmd)
	rootCmd.AddCommand(interviewerCmd)
}
