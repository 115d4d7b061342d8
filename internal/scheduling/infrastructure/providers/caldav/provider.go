// Package caldav adapts CalDAV servers (Fastmail, Nextcloud, iCloud) as a
// calendar provider.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// Common CalDAV server URLs
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// PropXRecruitflow marks events created by this service.
const PropXRecruitflow = "X-RECRUITFLOW"

// CredentialStore resolves CalDAV credentials per interviewer.
type CredentialStore interface {
	Credentials(ctx context.Context, interviewerID uuid.UUID) (username, password string, err error)
}

// StaticCredentials serves one shared service account for every
// interviewer. Suits deployments where the CalDAV server proxies a shared
// company calendar host.
type StaticCredentials struct {
	Username string
	Password string
}

// Credentials implements CredentialStore.
func (s StaticCredentials) Credentials(context.Context, uuid.UUID) (string, string, error) {
	return s.Username, s.Password, nil
}

// Provider syncs interview events against a CalDAV calendar. Event ids are
// calendar object paths, so cancellation needs no credential lookup beyond
// the configured account.
type Provider struct {
	baseURL      string
	credentials  CredentialStore
	calendarPath string
	logger       *slog.Logger
}

// NewProvider creates a CalDAV provider.
func NewProvider(baseURL string, credentials CredentialStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL:     baseURL,
		credentials: credentials,
		logger:      logger,
	}
}

// WithCalendarPath pins a specific calendar collection instead of
// discovering the default one.
func (p *Provider) WithCalendarPath(path string) *Provider {
	p.calendarPath = path
	return p
}

// ID implements application.CalendarProvider.
func (p *Provider) ID() string { return "caldav" }

// FetchBusyIntervals implements application.CalendarProvider with a
// time-range VEVENT query.
func (p *Provider) FetchBusyIntervals(ctx context.Context, interviewerID uuid.UUID, window domain.TimeRange) ([]domain.TimeRange, error) {
	client, err := p.client(ctx, interviewerID)
	if err != nil {
		return nil, p.wrap("fetch_busy", err, false)
	}
	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return nil, p.wrap("fetch_busy", err, true)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"UID", "DTSTART", "DTEND", "STATUS", "TRANSP"},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: window.Start,
					End:   window.End,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, p.wrap("fetch_busy", fmt.Errorf("calendar query: %w", err), true)
	}

	var intervals []domain.TimeRange
	for i := range objects {
		if tr, ok := busyRange(&objects[i]); ok {
			intervals = append(intervals, tr)
		}
	}
	return intervals, nil
}

// CreateEvent implements application.CalendarProvider. The returned event id
// is the calendar object path.
func (p *Provider) CreateEvent(ctx context.Context, interviewerID uuid.UUID, details application.EventDetails) (string, error) {
	client, err := p.client(ctx, interviewerID)
	if err != nil {
		return "", p.wrap("create_event", err, false)
	}
	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return "", p.wrap("create_event", err, true)
	}

	uid := fmt.Sprintf("%s-%s", details.BookingID, interviewerID)
	eventPath := fmt.Sprintf("%s%s.ics", calPath, uid)

	cal := toICalendar(uid, details)
	if _, err := client.PutCalendarObject(ctx, eventPath, cal); err != nil {
		return "", p.wrap("create_event", fmt.Errorf("put calendar object: %w", err), true)
	}
	return eventPath, nil
}

// CancelEvent implements application.CalendarProvider.
func (p *Provider) CancelEvent(ctx context.Context, eventID string) error {
	client, err := p.client(ctx, uuid.Nil)
	if err != nil {
		return p.wrap("cancel_event", err, false)
	}
	if err := client.RemoveAll(ctx, eventID); err != nil {
		return p.wrap("cancel_event", err, true)
	}
	return nil
}

func (p *Provider) client(ctx context.Context, interviewerID uuid.UUID) (*caldav.Client, error) {
	if p.credentials == nil {
		return nil, fmt.Errorf("credential store not configured")
	}
	username, password, err := p.credentials.Credentials(ctx, interviewerID)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			username: username,
			password: password,
			base:     http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, username, password), p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (p *Provider) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if p.calendarPath != "" {
		return p.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}
	return cals[0].Path, nil
}

func (p *Provider) wrap(op string, err error, transient bool) error {
	return &application.ProviderError{Provider: p.ID(), Op: op, Transient: transient, Err: err}
}

// busyRange extracts the event's time range unless it is cancelled or
// explicitly transparent to free/busy.
func busyRange(obj *caldav.CalendarObject) (domain.TimeRange, bool) {
	if obj == nil || obj.Data == nil {
		return domain.TimeRange{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if props := child.Props["STATUS"]; len(props) > 0 && props[0].Value == "CANCELLED" {
			return domain.TimeRange{}, false
		}
		if props := child.Props["TRANSP"]; len(props) > 0 && props[0].Value == "TRANSPARENT" {
			return domain.TimeRange{}, false
		}

		event := &ical.Event{Component: child}
		start, err := event.DateTimeStart(time.UTC)
		if err != nil {
			return domain.TimeRange{}, false
		}
		end, err := event.DateTimeEnd(time.UTC)
		if err != nil {
			return domain.TimeRange{}, false
		}
		tr, err := domain.NewTimeRange(start, end)
		if err != nil {
			return domain.TimeRange{}, false
		}
		return tr, true
	}
	return domain.TimeRange{}, false
}

// toICalendar builds the VCALENDAR body for one interview event.
func toICalendar(uid string, details application.EventDetails) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//RecruitFlow//Scheduler//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, details.Slot.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, details.Slot.End.UTC())
	event.Props.SetText(ical.PropSummary, details.Title)

	description := fmt.Sprintf("Interview type: %s", details.InterviewType)
	if details.VideoURL != "" {
		description += "\nVideo: " + details.VideoURL
	}
	if details.Notes != "" {
		description += "\n\n" + details.Notes
	}
	event.Props.SetText(ical.PropDescription, description)
	if details.Location != "" {
		event.Props.SetText(ical.PropLocation, details.Location)
	}

	marker := ical.NewProp(PropXRecruitflow)
	marker.Value = "1"
	event.Props[PropXRecruitflow] = []ical.Prop{*marker}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}
