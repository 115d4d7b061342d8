package application

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

var (
	ErrHoldNotFound      = errors.New("no active hold")
	ErrHoldLeaseMismatch = errors.New("lease token does not own this hold")
)

// DefaultHoldTTL bridges the gap between slot selection and the
// confirmation request.
const DefaultHoldTTL = 2 * time.Minute

// HoldConflictError is returned when an unexpired hold for a different
// request already occupies the slot key. It carries the existing expiry so
// the caller can offer the next-ranked candidate instead of retrying blindly.
type HoldConflictError struct {
	Key            domain.SlotKey
	ExistingExpiry time.Time
}

func (e *HoldConflictError) Error() string {
	return fmt.Sprintf("slot %s is held until %s", e.Key, e.ExistingExpiry.Format(time.RFC3339))
}

// HoldStore is the serialized check-and-set table behind the hold manager.
// Implementations must make Acquire atomic per slot key and purge expired
// entries lazily on access.
type HoldStore interface {
	// Acquire stores the hold if no unexpired hold exists for its key. On
	// conflict it returns the existing hold and no error.
	Acquire(ctx context.Context, hold *domain.Hold) (existing *domain.Hold, err error)

	// Release removes the hold if the token owns it.
	Release(ctx context.Context, key domain.SlotKey, token uuid.UUID) error

	// Renew extends the hold's expiry if the token owns it.
	Renew(ctx context.Context, key domain.SlotKey, token uuid.UUID, ttl time.Duration) (*domain.Hold, error)

	// FindByRequest returns the active hold taken by a request, if any.
	FindByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Hold, error)
}

// HoldManager owns the propose-to-confirm reservation window. At most one
// unexpired hold exists per slot key; acquisition is first-come-first-served
// among non-expired attempts.
type HoldManager struct {
	store      HoldStore
	defaultTTL time.Duration
	publisher  EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewHoldManager creates a hold manager over the given store.
func NewHoldManager(store HoldStore, defaultTTL time.Duration, publisher EventPublisher, logger *slog.Logger) *HoldManager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultHoldTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HoldManager{
		store:      store,
		defaultTTL: defaultTTL,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the manager's clock. Test hook.
func (m *HoldManager) WithClock(now func() time.Time) *HoldManager {
	m.now = now
	return m
}

// TryHold atomically reserves a slot key for a request. A conflicting
// unexpired hold from a different request yields HoldConflictError; a
// re-hold by the same request returns the existing hold unchanged.
func (m *HoldManager) TryHold(ctx context.Context, key domain.SlotKey, requestID uuid.UUID, slot domain.TimeRange, panel domain.PanelResolution, ttl time.Duration) (*domain.Hold, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	hold := domain.NewHold(key, requestID, slot, panel, ttl, m.now())

	existing, err := m.store.Acquire(ctx, hold)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.RequestID == requestID {
			return existing, nil
		}
		return nil, &HoldConflictError{Key: key, ExistingExpiry: existing.ExpiresAt}
	}

	m.logger.Debug("hold acquired", "slot_key", key, "request_id", requestID, "expires_at", hold.ExpiresAt)
	if m.publisher != nil {
		ev := domain.NewHoldAcquired(requestID, key, hold.ExpiresAt)
		_ = m.publisher.PublishDomainEvent(ctx, ev)
	}
	return hold, nil
}

// Release removes a hold owned by the lease token.
func (m *HoldManager) Release(ctx context.Context, key domain.SlotKey, token uuid.UUID, reason string) error {
	if err := m.store.Release(ctx, key, token); err != nil {
		return err
	}
	m.logger.Debug("hold released", "slot_key", key, "reason", reason)
	return nil
}

// Renew extends a hold's lease.
func (m *HoldManager) Renew(ctx context.Context, key domain.SlotKey, token uuid.UUID, ttl time.Duration) (*domain.Hold, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	return m.store.Renew(ctx, key, token, ttl)
}

// FindByRequest returns the request's active hold.
func (m *HoldManager) FindByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Hold, error) {
	return m.store.FindByRequest(ctx, requestID)
}

const holdShards = 32

type holdShard struct {
	mu    sync.Mutex
	holds map[domain.SlotKey]*domain.Hold
}

// MemoryHoldStore is the in-process hold table: a sharded map with atomic
// check-and-set per slot key, so unrelated keys never contend.
type MemoryHoldStore struct {
	shards [holdShards]holdShard

	byRequestMu sync.Mutex
	byRequest   map[uuid.UUID]domain.SlotKey

	now func() time.Time
}

// NewMemoryHoldStore creates an empty in-memory hold store.
func NewMemoryHoldStore() *MemoryHoldStore {
	s := &MemoryHoldStore{
		byRequest: make(map[uuid.UUID]domain.SlotKey),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for i := range s.shards {
		s.shards[i].holds = make(map[domain.SlotKey]*domain.Hold)
	}
	return s
}

// WithClock overrides the store's clock. Test hook.
func (s *MemoryHoldStore) WithClock(now func() time.Time) *MemoryHoldStore {
	s.now = now
	return s
}

func (s *MemoryHoldStore) shard(key domain.SlotKey) *holdShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%holdShards]
}

// Acquire implements HoldStore with per-key check-and-set. Expired entries
// for the key are reclaimed lazily here. The store keeps its own copy, so
// callers never alias the stored hold.
func (s *MemoryHoldStore) Acquire(_ context.Context, hold *domain.Hold) (*domain.Hold, error) {
	shard := s.shard(hold.Key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := s.now()
	if existing, ok := shard.holds[hold.Key]; ok {
		if !existing.Expired(now) {
			conflicting := *existing
			return &conflicting, nil
		}
		s.dropIndex(existing.RequestID)
	}

	stored := *hold
	shard.holds[hold.Key] = &stored
	s.setIndex(hold.RequestID, hold.Key)
	return nil, nil
}

// Release implements HoldStore.
func (s *MemoryHoldStore) Release(_ context.Context, key domain.SlotKey, token uuid.UUID) error {
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.holds[key]
	if !ok || existing.Expired(s.now()) {
		if ok {
			delete(shard.holds, key)
			s.dropIndex(existing.RequestID)
		}
		return ErrHoldNotFound
	}
	if !existing.OwnedBy(token) {
		return ErrHoldLeaseMismatch
	}

	delete(shard.holds, key)
	s.dropIndex(existing.RequestID)
	return nil
}

// Renew implements HoldStore.
func (s *MemoryHoldStore) Renew(_ context.Context, key domain.SlotKey, token uuid.UUID, ttl time.Duration) (*domain.Hold, error) {
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.holds[key]
	now := s.now()
	if !ok || existing.Expired(now) {
		return nil, ErrHoldNotFound
	}
	if !existing.OwnedBy(token) {
		return nil, ErrHoldLeaseMismatch
	}

	// Replace the stored value instead of mutating it; previously returned
	// pointers read ExpiresAt outside this lock.
	renewed := *existing
	renewed.ExpiresAt = now.Add(ttl)
	shard.holds[key] = &renewed
	result := renewed
	return &result, nil
}

// FindByRequest implements HoldStore.
func (s *MemoryHoldStore) FindByRequest(_ context.Context, requestID uuid.UUID) (*domain.Hold, error) {
	s.byRequestMu.Lock()
	key, ok := s.byRequest[requestID]
	s.byRequestMu.Unlock()
	if !ok {
		return nil, ErrHoldNotFound
	}

	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.holds[key]
	if !ok || existing.RequestID != requestID {
		return nil, ErrHoldNotFound
	}
	found := *existing
	return &found, nil
}

func (s *MemoryHoldStore) setIndex(requestID uuid.UUID, key domain.SlotKey) {
	s.byRequestMu.Lock()
	s.byRequest[requestID] = key
	s.byRequestMu.Unlock()
}

func (s *MemoryHoldStore) dropIndex(requestID uuid.UUID) {
	s.byRequestMu.Lock()
	delete(s.byRequest, requestID)
	s.byRequestMu.Unlock()
}
