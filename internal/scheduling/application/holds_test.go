package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlot(t *testing.T) (domain.SlotKey, domain.TimeRange, domain.PanelResolution) {
	t.Helper()
	slot := domain.TimeRange{
		Start: time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC),
	}
	panel := domain.PanelResolution{InterviewerIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	return domain.NewSlotKey(panel.InterviewerIDs, slot), slot, panel
}

func TestHoldManager_ConcurrentTryHold_ExactlyOneWinner(t *testing.T) {
	key, slot, panel := testSlot(t)
	publisher := &capturingPublisher{}
	manager := application.NewHoldManager(application.NewMemoryHoldStore(), time.Minute, publisher, nil)

	const attempts = 32
	results := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := manager.TryHold(context.Background(), key, uuid.New(), slot, panel, time.Minute)
			results[i] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		var conflict *application.HoldConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, key, conflict.Key)
	}
	assert.Equal(t, 1, winners)
}

func TestHoldManager_SameRequestReholdReturnsExisting(t *testing.T) {
	key, slot, panel := testSlot(t)
	manager := application.NewHoldManager(application.NewMemoryHoldStore(), time.Minute, nil, nil)
	requestID := uuid.New()

	first, err := manager.TryHold(context.Background(), key, requestID, slot, panel, time.Minute)
	require.NoError(t, err)

	again, err := manager.TryHold(context.Background(), key, requestID, slot, panel, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.LeaseToken, again.LeaseToken)
	assert.Equal(t, first.ExpiresAt, again.ExpiresAt)
}

func TestHoldManager_ExpiredHoldIsReclaimable(t *testing.T) {
	key, slot, panel := testSlot(t)
	clock := newFakeClock(time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC))
	store := application.NewMemoryHoldStore().WithClock(clock.Now)
	manager := application.NewHoldManager(store, time.Minute, nil, nil).WithClock(clock.Now)

	loser := uuid.New()
	_, err := manager.TryHold(context.Background(), key, loser, slot, panel, time.Minute)
	require.NoError(t, err)

	// Past the TTL the slot is acquirable by a different request, no
	// sweeper needed.
	clock.Advance(2 * time.Minute)
	winner := uuid.New()
	hold, err := manager.TryHold(context.Background(), key, winner, slot, panel, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, winner, hold.RequestID)

	// The evicted request's secondary index is gone too.
	_, err = manager.FindByRequest(context.Background(), loser)
	assert.ErrorIs(t, err, application.ErrHoldNotFound)
}

func TestHoldManager_ReleaseRequiresOwningToken(t *testing.T) {
	key, slot, panel := testSlot(t)
	manager := application.NewHoldManager(application.NewMemoryHoldStore(), time.Minute, nil, nil)

	hold, err := manager.TryHold(context.Background(), key, uuid.New(), slot, panel, time.Minute)
	require.NoError(t, err)

	err = manager.Release(context.Background(), key, uuid.New(), "test")
	assert.ErrorIs(t, err, application.ErrHoldLeaseMismatch)

	require.NoError(t, manager.Release(context.Background(), key, hold.LeaseToken, "test"))
	err = manager.Release(context.Background(), key, hold.LeaseToken, "test")
	assert.ErrorIs(t, err, application.ErrHoldNotFound)
}

func TestHoldManager_RenewExtendsLease(t *testing.T) {
	key, slot, panel := testSlot(t)
	clock := newFakeClock(time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC))
	store := application.NewMemoryHoldStore().WithClock(clock.Now)
	manager := application.NewHoldManager(store, time.Minute, nil, nil).WithClock(clock.Now)

	hold, err := manager.TryHold(context.Background(), key, uuid.New(), slot, panel, time.Minute)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	renewed, err := manager.Renew(context.Background(), key, hold.LeaseToken, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute), renewed.ExpiresAt)

	_, err = manager.Renew(context.Background(), key, uuid.New(), time.Minute)
	assert.ErrorIs(t, err, application.ErrHoldLeaseMismatch)

	clock.Advance(5 * time.Minute)
	_, err = manager.Renew(context.Background(), key, hold.LeaseToken, time.Minute)
	assert.ErrorIs(t, err, application.ErrHoldNotFound)
}

func TestHoldManager_RenewDoesNotMutateHandedOutHolds(t *testing.T) {
	key, slot, panel := testSlot(t)
	clock := newFakeClock(time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC))
	store := application.NewMemoryHoldStore().WithClock(clock.Now)
	manager := application.NewHoldManager(store, time.Minute, nil, nil).WithClock(clock.Now)
	requestID := uuid.New()

	hold, err := manager.TryHold(context.Background(), key, requestID, slot, panel, time.Minute)
	require.NoError(t, err)
	originalExpiry := hold.ExpiresAt

	found, err := manager.FindByRequest(context.Background(), requestID)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	renewed, err := manager.Renew(context.Background(), key, hold.LeaseToken, time.Minute)
	require.NoError(t, err)
	require.True(t, renewed.ExpiresAt.After(originalExpiry))

	// Holds handed out before the renewal are snapshots; the coordinator
	// reads ExpiresAt on them without holding the store's lock.
	assert.Equal(t, originalExpiry, hold.ExpiresAt)
	assert.Equal(t, originalExpiry, found.ExpiresAt)

	// The store itself reflects the extended lease.
	current, err := manager.FindByRequest(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, renewed.ExpiresAt, current.ExpiresAt)
}

func TestHoldManager_PublishesAcquiredEvent(t *testing.T) {
	key, slot, panel := testSlot(t)
	publisher := &capturingPublisher{}
	manager := application.NewHoldManager(application.NewMemoryHoldStore(), time.Minute, publisher, nil)

	_, err := manager.TryHold(context.Background(), key, uuid.New(), slot, panel, 0)
	require.NoError(t, err)
	assert.Contains(t, publisher.routingKeys(), domain.RoutingKeyHoldAcquired)
}
