package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	sharedDomain "github.com/recruitflow/scheduler/internal/shared/domain"
)

// fakeDirectory serves interviewer records from a map.
type fakeDirectory struct {
	interviewers map[uuid.UUID]*domain.Interviewer
}

func (d *fakeDirectory) GetInterviewers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Interviewer, error) {
	result := make(map[uuid.UUID]*domain.Interviewer, len(ids))
	for _, id := range ids {
		if iv, ok := d.interviewers[id]; ok {
			result[id] = iv
		}
	}
	return result, nil
}

// fakeProvider is a scriptable calendar provider.
type fakeProvider struct {
	mu sync.Mutex

	id   string
	busy map[uuid.UUID][]domain.TimeRange

	fetchErr  error
	createErr map[uuid.UUID]error
	cancelErr error

	fetchCalls  int
	created     map[string]uuid.UUID // eventID -> interviewer
	cancelled   []string
	nextEventID int
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{
		id:        id,
		busy:      make(map[uuid.UUID][]domain.TimeRange),
		createErr: make(map[uuid.UUID]error),
		created:   make(map[string]uuid.UUID),
	}
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) FetchBusyIntervals(_ context.Context, interviewerID uuid.UUID, _ domain.TimeRange) ([]domain.TimeRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return append([]domain.TimeRange(nil), p.busy[interviewerID]...), nil
}

func (p *fakeProvider) CreateEvent(_ context.Context, interviewerID uuid.UUID, _ application.EventDetails) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.createErr[interviewerID]; err != nil {
		return "", err
	}
	p.nextEventID++
	eventID := p.id + "-evt-" + uuid.NewString()[:8]
	p.created[eventID] = interviewerID
	return eventID, nil
}

func (p *fakeProvider) CancelEvent(_ context.Context, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelErr != nil {
		return p.cancelErr
	}
	delete(p.created, eventID)
	p.cancelled = append(p.cancelled, eventID)
	return nil
}

func (p *fakeProvider) liveEvents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

// fakeRegistry maps provider ids to providers.
type fakeRegistry struct {
	providers map[string]application.CalendarProvider
}

func (r *fakeRegistry) ProviderFor(providerID string) (application.CalendarProvider, bool) {
	p, ok := r.providers[providerID]
	return p, ok
}

// memoryBookingRepo is an in-memory BookingRepository enforcing the overlap
// invariant the way the real repositories do.
type memoryBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*domain.BookingRecord
}

func newMemoryBookingRepo() *memoryBookingRepo {
	return &memoryBookingRepo{bookings: make(map[uuid.UUID]*domain.BookingRecord)}
}

func (r *memoryBookingRepo) Save(_ context.Context, booking *domain.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.Status() == domain.BookingConfirmed {
		for _, other := range r.bookings {
			if other.ID() == booking.ID() {
				continue
			}
			for _, id := range booking.Panel().InterviewerIDs {
				if other.ConflictsWith(id, booking.Slot()) {
					return domain.ErrBookingOverlap
				}
			}
		}
	}

	r.bookings[booking.ID()] = booking
	return nil
}

func (r *memoryBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (r *memoryBookingRepo) FindByRequestID(_ context.Context, requestID uuid.UUID) (*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, booking := range r.bookings {
		if booking.RequestID() == requestID {
			return booking, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (r *memoryBookingRepo) FindConfirmedOverlapping(_ context.Context, interviewerID uuid.UUID, tr domain.TimeRange) ([]*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.BookingRecord
	for _, booking := range r.bookings {
		if booking.ConflictsWith(interviewerID, tr) {
			result = append(result, booking)
		}
	}
	return result, nil
}

// capturingPublisher records published domain events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []sharedDomain.DomainEvent
}

func (p *capturingPublisher) PublishDomainEvent(_ context.Context, event sharedDomain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		keys = append(keys, ev.RoutingKey())
	}
	return keys
}

// capturingNotifier records notifications.
type capturingNotifier struct {
	mu    sync.Mutex
	kinds []application.NotificationKind
}

func (n *capturingNotifier) Notify(_ context.Context, _ uuid.UUID, kind application.NotificationKind, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

// capturingAudit records audit entries.
type capturingAudit struct {
	mu      sync.Mutex
	entries []application.AuditEntry
}

func (a *capturingAudit) Record(_ context.Context, entry application.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *capturingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	actions := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// fakeClock is a mutable clock shared between components under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// allDayHours declares 00:00-24:00 working hours for every weekday.
func allDayHours() domain.WorkingHours {
	hours := domain.WorkingHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = []domain.ClockSpan{{StartMinute: 0, EndMinute: 24 * 60}}
	}
	return hours
}
