// Package google adapts the Google Calendar v3 API as a calendar provider.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// markerProperty tags events created by this service so they can be told
// apart from ones interviewers created themselves.
const markerProperty = "recruitflow"

type tokenSourceProvider interface {
	TokenSource(ctx context.Context, interviewerID uuid.UUID) (oauth2.TokenSource, error)
}

// Provider talks to Google Calendar on behalf of interviewers who connected
// their accounts.
type Provider struct {
	oauthService tokenSourceProvider
	logger       *slog.Logger
	baseURL      string
	calendarID   string
}

// NewProvider creates a Google Calendar provider.
func NewProvider(oauthService tokenSourceProvider, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		oauthService: oauthService,
		logger:       logger,
		baseURL:      defaultBaseURL,
		calendarID:   "primary",
	}
}

// NewProviderWithBaseURL creates a provider against a custom base URL.
func NewProviderWithBaseURL(oauthService tokenSourceProvider, logger *slog.Logger, baseURL string) *Provider {
	p := NewProvider(oauthService, logger)
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithCalendarID overrides the target calendar.
func (p *Provider) WithCalendarID(calendarID string) *Provider {
	if calendarID != "" {
		p.calendarID = calendarID
	}
	return p
}

// ID implements application.CalendarProvider.
func (p *Provider) ID() string { return "google" }

// FetchBusyIntervals implements application.CalendarProvider via the
// freeBusy endpoint.
func (p *Provider) FetchBusyIntervals(ctx context.Context, interviewerID uuid.UUID, window domain.TimeRange) ([]domain.TimeRange, error) {
	client, err := p.client(ctx, interviewerID)
	if err != nil {
		return nil, p.wrap("fetch_busy", err, false)
	}

	payload := struct {
		TimeMin string `json:"timeMin"`
		TimeMax string `json:"timeMax"`
		Items   []struct {
			ID string `json:"id"`
		} `json:"items"`
	}{
		TimeMin: window.Start.UTC().Format(time.RFC3339),
		TimeMax: window.End.UTC().Format(time.RFC3339),
		Items: []struct {
			ID string `json:"id"`
		}{{ID: p.calendarID}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, p.wrap("fetch_busy", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/freeBusy", bytes.NewReader(body))
	if err != nil {
		return nil, p.wrap("fetch_busy", err, false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, p.wrap("fetch_busy", err, true)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.wrap("fetch_busy", responseError(resp), transientStatus(resp.StatusCode))
	}

	var result struct {
		Calendars map[string]struct {
			Busy []struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, p.wrap("fetch_busy", err, true)
	}

	var intervals []domain.TimeRange
	for _, cal := range result.Calendars {
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				continue
			}
			tr, err := domain.NewTimeRange(start, end)
			if err != nil {
				continue
			}
			intervals = append(intervals, tr)
		}
	}
	return intervals, nil
}

type googleEvent struct {
	Summary            string `json:"summary"`
	Description        string `json:"description,omitempty"`
	Location           string `json:"location,omitempty"`
	ExtendedProperties struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties,omitempty"`
	Start struct {
		DateTime string `json:"dateTime"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
	} `json:"end"`
}

// CreateEvent implements application.CalendarProvider.
func (p *Provider) CreateEvent(ctx context.Context, interviewerID uuid.UUID, details application.EventDetails) (string, error) {
	client, err := p.client(ctx, interviewerID)
	if err != nil {
		return "", p.wrap("create_event", err, false)
	}

	event := googleEvent{
		Summary:  details.Title,
		Location: details.Location,
	}
	description := fmt.Sprintf("Interview type: %s", details.InterviewType)
	if details.VideoURL != "" {
		description += "\nVideo: " + details.VideoURL
	}
	if details.Notes != "" {
		description += "\n\n" + details.Notes
	}
	event.Description = description
	event.ExtendedProperties.Private = map[string]string{
		markerProperty: "1",
		"booking_id":   details.BookingID.String(),
	}
	event.Start.DateTime = details.Slot.Start.UTC().Format(time.RFC3339)
	event.End.DateTime = details.Slot.End.UTC().Format(time.RFC3339)

	body, err := json.Marshal(event)
	if err != nil {
		return "", p.wrap("create_event", err, false)
	}

	insertURL := fmt.Sprintf("%s/calendars/%s/events", p.baseURL, p.calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, insertURL, bytes.NewReader(body))
	if err != nil {
		return "", p.wrap("create_event", err, false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", p.wrap("create_event", err, true)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.wrap("create_event", responseError(resp), transientStatus(resp.StatusCode))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", p.wrap("create_event", err, true)
	}
	if created.ID == "" {
		return "", p.wrap("create_event", fmt.Errorf("event created without id"), false)
	}
	return created.ID, nil
}

// CancelEvent implements application.CalendarProvider. Deleting an already
// deleted event is treated as success so compensation stays idempotent.
func (p *Provider) CancelEvent(ctx context.Context, eventID string) error {
	// Event ids are scoped to the connected calendar, so no interviewer
	// lookup is needed beyond the shared service credentials.
	client, err := p.client(ctx, uuid.Nil)
	if err != nil {
		return p.wrap("cancel_event", err, false)
	}

	deleteURL := fmt.Sprintf("%s/calendars/%s/events/%s", p.baseURL, p.calendarID, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return p.wrap("cancel_event", err, false)
	}

	resp, err := client.Do(req)
	if err != nil {
		return p.wrap("cancel_event", err, true)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.wrap("cancel_event", responseError(resp), transientStatus(resp.StatusCode))
	}
	return nil
}

func (p *Provider) client(ctx context.Context, interviewerID uuid.UUID) (*http.Client, error) {
	if p.oauthService == nil {
		return nil, fmt.Errorf("oauth service not configured")
	}
	tokenSource, err := p.oauthService.TokenSource(ctx, interviewerID)
	if err != nil {
		return nil, err
	}
	token, err := tokenSource.Token()
	if err != nil {
		p.logger.Warn("oauth token refresh failed", "interviewer_id", interviewerID, "error", err)
		return nil, err
	}
	if !token.Expiry.IsZero() && time.Until(token.Expiry) < 24*time.Hour {
		p.logger.Warn("oauth token nearing expiry", "expires_at", token.Expiry)
	}

	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: tokenSource,
		},
	}, nil
}

func (p *Provider) wrap(op string, err error, transient bool) error {
	return &application.ProviderError{Provider: p.ID(), Op: op, Transient: transient, Err: err}
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("google calendar: status=%d body=%s", resp.StatusCode, string(body))
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return t.base.RoundTrip(req)
}
