package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/recruitflow/scheduler/pkg/observability"
)

var (
	ErrNoInterviewerIDs = errors.New("interviewer id list must not be empty")
	ErrWindowTooWide    = errors.New("availability window exceeds the configured maximum span")
)

// Availability is one interviewer's busy data for a queried window.
type Availability struct {
	Busy      []domain.TimeRange
	FetchedAt time.Time

	// Stale marks data served past its TTL from the grace window after a
	// fetch failure. The ranker down-ranks slots built on stale data.
	Stale bool

	// Unavailable marks an interviewer whose data could not be obtained at
	// all. Non-fatal: the ranker excludes them from candidate slots.
	Unavailable bool

	// Degraded marks data blocked by an open provider circuit.
	Degraded bool
}

// AggregatorConfig configures the availability aggregator.
type AggregatorConfig struct {
	// TTL is how long a fetched window stays fresh.
	TTL time.Duration

	// Grace extends the lifetime of cached data when a fresh fetch fails;
	// data served in this window is flagged stale.
	Grace time.Duration

	// FetchTimeout bounds each provider call.
	FetchTimeout time.Duration

	// MaxWindowSpan caps the queried window to keep provider queries bounded.
	MaxWindowSpan time.Duration
}

// DefaultAggregatorConfig returns the defaults used in production.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		TTL:           5 * time.Minute,
		Grace:         15 * time.Minute,
		FetchTimeout:  10 * time.Second,
		MaxWindowSpan: 31 * 24 * time.Hour,
	}
}

type availabilityEntry struct {
	window    domain.TimeRange
	busy      []domain.TimeRange
	fetchedAt time.Time
}

// AvailabilityAggregator normalizes busy intervals per interviewer from the
// provider adapters, with a freshness-TTL cache and a grace window for
// provider outages.
type AvailabilityAggregator struct {
	directory domain.InterviewerDirectory
	providers ProviderRegistry
	cfg       AggregatorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu    sync.RWMutex
	cache map[uuid.UUID]*availabilityEntry

	now func() time.Time
}

// NewAvailabilityAggregator creates an availability aggregator.
func NewAvailabilityAggregator(directory domain.InterviewerDirectory, providers ProviderRegistry, cfg AggregatorConfig, logger *slog.Logger) *AvailabilityAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityAggregator{
		directory: directory,
		providers: providers,
		cfg:       cfg,
		logger:    logger,
		metrics:   observability.NoopMetrics{},
		cache:     make(map[uuid.UUID]*availabilityEntry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the aggregator's clock. Test hook.
func (a *AvailabilityAggregator) WithClock(now func() time.Time) *AvailabilityAggregator {
	a.now = now
	return a
}

// WithMetrics sets the metrics collector for provider fetch timings.
func (a *AvailabilityAggregator) WithMetrics(metrics observability.Metrics) *AvailabilityAggregator {
	if metrics != nil {
		a.metrics = metrics
	}
	return a
}

// GetAvailability returns busy intervals for each interviewer in the window.
// Individual interviewers whose data cannot be obtained are returned with
// Unavailable set rather than failing the whole call.
func (a *AvailabilityAggregator) GetAvailability(ctx context.Context, interviewerIDs []uuid.UUID, window domain.TimeRange) (map[uuid.UUID]Availability, error) {
	if len(interviewerIDs) == 0 {
		return nil, ErrNoInterviewerIDs
	}
	if window.Duration() > a.cfg.MaxWindowSpan {
		return nil, ErrWindowTooWide
	}

	interviewers, err := a.directory.GetInterviewers(ctx, interviewerIDs)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]Availability, len(interviewerIDs))
	for _, id := range interviewerIDs {
		iv, ok := interviewers[id]
		if !ok {
			result[id] = Availability{Unavailable: true}
			continue
		}
		result[id] = a.availabilityFor(ctx, iv, window)
	}
	return result, nil
}

// Revalidate fetches fresh busy data for one interviewer, bypassing the
// cache. Used by the booking coordinator's last-look conflict check.
func (a *AvailabilityAggregator) Revalidate(ctx context.Context, interviewerID uuid.UUID, window domain.TimeRange) ([]domain.TimeRange, error) {
	interviewers, err := a.directory.GetInterviewers(ctx, []uuid.UUID{interviewerID})
	if err != nil {
		return nil, err
	}
	iv, ok := interviewers[interviewerID]
	if !ok {
		return nil, ErrInsufficientAvailabilityData
	}

	busy, err := a.fetch(ctx, iv, window)
	if err != nil {
		return nil, err
	}
	a.store(interviewerID, window, busy)
	return busy, nil
}

func (a *AvailabilityAggregator) availabilityFor(ctx context.Context, iv *domain.Interviewer, window domain.TimeRange) Availability {
	now := a.now()

	a.mu.RLock()
	entry, cached := a.cache[iv.ID]
	a.mu.RUnlock()

	if cached && entry.window.Covers(window) && now.Sub(entry.fetchedAt) < a.cfg.TTL {
		return Availability{Busy: clipBusy(entry.busy, window), FetchedAt: entry.fetchedAt}
	}

	busy, err := a.fetch(ctx, iv, window)
	if err == nil {
		a.store(iv.ID, window, busy)
		return Availability{Busy: busy, FetchedAt: now}
	}

	degraded := errors.Is(err, ErrCircuitOpen)
	a.logger.Warn("availability fetch failed",
		"interviewer_id", iv.ID,
		"provider", iv.ProviderID,
		"circuit_open", degraded,
		"error", err,
	)

	// Serve the last cached value inside the grace window, flagged stale.
	if cached && entry.window.Covers(window) && now.Sub(entry.fetchedAt) < a.cfg.Grace {
		return Availability{
			Busy:      clipBusy(entry.busy, window),
			FetchedAt: entry.fetchedAt,
			Stale:     true,
			Degraded:  degraded,
		}
	}

	return Availability{Unavailable: true, Degraded: degraded}
}

func (a *AvailabilityAggregator) fetch(ctx context.Context, iv *domain.Interviewer, window domain.TimeRange) ([]domain.TimeRange, error) {
	provider, ok := a.providers.ProviderFor(iv.ProviderID)
	if !ok {
		return nil, &ProviderError{Provider: iv.ProviderID, Op: "fetch_busy", Transient: false, Err: errors.New("no adapter registered")}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	timer := observability.StartTimer("availability_fetch").
		WithMetrics(a.metrics).
		WithTags(observability.T("provider", iv.ProviderID))
	busy, err := provider.FetchBusyIntervals(fetchCtx, iv.ID, window)
	timer.StopWithError(err)
	if err != nil {
		return nil, err
	}
	return domain.MergeRanges(busy), nil
}

func (a *AvailabilityAggregator) store(id uuid.UUID, window domain.TimeRange, busy []domain.TimeRange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[id] = &availabilityEntry{
		window:    window,
		busy:      busy,
		fetchedAt: a.now(),
	}
}

func clipBusy(busy []domain.TimeRange, window domain.TimeRange) []domain.TimeRange {
	var clipped []domain.TimeRange
	for _, b := range busy {
		if x := b.Intersect(window); !x.IsZero() {
			clipped = append(clipped, x)
		}
	}
	return clipped
}
