package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"golang.org/x/oauth2"
)

type stubTokenSourceProvider struct {
	source oauth2.TokenSource
	err    error
}

func (s stubTokenSourceProvider) TokenSource(ctx context.Context, interviewerID uuid.UUID) (oauth2.TokenSource, error) {
	return s.source, s.err
}

func staticToken() stubTokenSourceProvider {
	return stubTokenSourceProvider{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", Expiry: time.Now().Add(48 * time.Hour)}),
	}
}

func testWindow() domain.TimeRange {
	return domain.TimeRange{
		Start: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 18, 0, 0, 0, time.UTC),
	}
}

func TestProvider_FetchBusyIntervals(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/freeBusy" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")

		var payload struct {
			TimeMin string `json:"timeMin"`
			TimeMax string `json:"timeMax"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if payload.TimeMin != "2026-01-12T08:00:00Z" {
			t.Errorf("unexpected timeMin %s", payload.TimeMin)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{
				"primary": map[string]any{
					"busy": []map[string]string{
						{"start": "2026-01-12T14:00:00Z", "end": "2026-01-12T15:00:00Z"},
					},
				},
			},
		})
	}))
	defer server.Close()

	provider := NewProviderWithBaseURL(staticToken(), nil, server.URL)
	busy, err := provider.FetchBusyIntervals(context.Background(), uuid.New(), testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(busy) != 1 {
		t.Fatalf("expected 1 busy interval, got %d", len(busy))
	}
	if !busy[0].Start.Equal(time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected busy start %s", busy[0].Start)
	}
}

func TestProvider_FetchBusyIntervals_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewProviderWithBaseURL(staticToken(), nil, server.URL)
	_, err := provider.FetchBusyIntervals(context.Background(), uuid.New(), testWindow())
	if err == nil {
		t.Fatal("expected error")
	}
	if !application.IsTransient(err) {
		t.Errorf("expected transient classification for 503, got %v", err)
	}
}

func TestProvider_CreateEvent(t *testing.T) {
	var created map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/calendars/primary/events") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "evt-123"})
	}))
	defer server.Close()

	provider := NewProviderWithBaseURL(staticToken(), nil, server.URL)
	eventID, err := provider.CreateEvent(context.Background(), uuid.New(), application.EventDetails{
		BookingID:     uuid.New(),
		InterviewType: domain.InterviewTypeTechnical,
		Slot:          testWindow(),
		Title:         "Interview: technical",
		VideoURL:      "https://meet.example.com/abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eventID != "evt-123" {
		t.Errorf("expected event id evt-123, got %s", eventID)
	}

	props, ok := created["extendedProperties"].(map[string]any)
	if !ok {
		t.Fatal("expected extendedProperties in payload")
	}
	private, _ := props["private"].(map[string]any)
	if private["recruitflow"] != "1" {
		t.Error("expected recruitflow marker on created event")
	}
}

func TestProvider_CreateEvent_ForbiddenIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewProviderWithBaseURL(staticToken(), nil, server.URL)
	_, err := provider.CreateEvent(context.Background(), uuid.New(), application.EventDetails{
		Slot:  testWindow(),
		Title: "Interview",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if application.IsTransient(err) {
		t.Errorf("expected permanent classification for 403, got %v", err)
	}
}

func TestProvider_CancelEvent_GoneIsSuccess(t *testing.T) {
	deletes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		deletes++
		if deletes == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	provider := NewProviderWithBaseURL(staticToken(), nil, server.URL)
	if err := provider.CancelEvent(context.Background(), "evt-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A second cancellation of the same event stays idempotent.
	if err := provider.CancelEvent(context.Background(), "evt-123"); err != nil {
		t.Fatalf("expected gone event to cancel cleanly, got %v", err)
	}
}

func TestProvider_TokenSourceFailure(t *testing.T) {
	provider := NewProviderWithBaseURL(stubTokenSourceProvider{err: errors.New("no grant")}, nil, "http://unused")
	_, err := provider.FetchBusyIntervals(context.Background(), uuid.New(), testWindow())
	if err == nil {
		t.Fatal("expected error")
	}
	if application.IsTransient(err) {
		t.Error("expected permanent classification for missing grant")
	}
}
