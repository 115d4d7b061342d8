package domain

import (
	"time"

	"github.com/google/uuid"
)

// Hold is a short-lived exclusive reservation on a slot key, bridging the
// gap between slot selection and booking confirmation. At most one unexpired
// Hold exists per slot key at any instant.
type Hold struct {
	Key        SlotKey
	RequestID  uuid.UUID
	LeaseToken uuid.UUID
	ExpiresAt  time.Time
	AcquiredAt time.Time

	// Slot and Panel carry the data needed to confirm without re-ranking.
	Slot  TimeRange
	Panel PanelResolution
}

// NewHold creates a hold with a fresh lease token, acquired at the given
// instant.
func NewHold(key SlotKey, requestID uuid.UUID, slot TimeRange, panel PanelResolution, ttl time.Duration, now time.Time) *Hold {
	now = now.UTC()
	return &Hold{
		Key:        key,
		RequestID:  requestID,
		LeaseToken: uuid.New(),
		ExpiresAt:  now.Add(ttl),
		AcquiredAt: now,
		Slot:       slot,
		Panel:      panel,
	}
}

// Expired reports whether the hold's lease has lapsed at the given instant.
func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// OwnedBy checks lease ownership.
func (h *Hold) OwnedBy(token uuid.UUID) bool {
	return h.LeaseToken == token
}
