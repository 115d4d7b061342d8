package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages. The API process saves envelopes in
// the same database transaction scope as the booking write; the worker's
// relay drains them through GetUnpublished and the Mark methods.
type Repository interface {
	// Save stores a single pending message.
	Save(ctx context.Context, msg *Message) error

	// SaveBatch stores several pending messages atomically.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns pending messages whose retry time has passed,
	// oldest first, up to limit.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	// MarkPublished records that the broker accepted the message.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a publish failure and schedules the next attempt.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error

	// MarkDead removes the message from the relay loop permanently.
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld prunes published messages older than the retention window
	// and returns how many were removed.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
