// Package holdstore provides a Redis-backed implementation of the hold
// store, for deployments where multiple scheduler instances share the
// propose-to-confirm reservation window.
package holdstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/redis/go-redis/v9"
)

// Keys are namespaced so a shared Redis instance can host other state:
//
//	scheduler:hold:slot:{slot_key}     -> JSON hold document, PX = lease TTL
//	scheduler:hold:request:{request_id} -> slot key string, same TTL
const (
	slotKeyPrefix    = "scheduler:hold:slot:"
	requestKeyPrefix = "scheduler:hold:request:"
)

// releaseScript deletes a hold only when the caller's lease token owns it.
// Returns 1 on release, 0 on token mismatch, -1 when no hold exists.
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
local doc = cjson.decode(raw)
if doc.lease_token ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('DEL', 'scheduler:hold:request:' .. doc.request_id)
return 1
`)

// renewScript extends a hold's lease when the caller owns it. ARGV[2] is the
// new expiry as RFC3339, ARGV[3] the new TTL in milliseconds. Returns the
// updated document, 0 on token mismatch, -1 when no hold exists.
var renewScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
local doc = cjson.decode(raw)
if doc.lease_token ~= ARGV[1] then
	return 0
end
doc.expires_at = ARGV[2]
local updated = cjson.encode(doc)
redis.call('SET', KEYS[1], updated, 'PX', ARGV[3])
redis.call('PEXPIRE', 'scheduler:hold:request:' .. doc.request_id, ARGV[3])
return updated
`)

// RedisHoldStore implements application.HoldStore on Redis. Lease expiry is
// delegated to Redis key TTLs, so an expired hold simply vanishes and the
// slot key becomes free for SET NX again.
type RedisHoldStore struct {
	client *redis.Client
}

// NewRedisHoldStore creates a Redis-backed hold store.
func NewRedisHoldStore(client *redis.Client) *RedisHoldStore {
	return &RedisHoldStore{client: client}
}

type holdDoc struct {
	Key        string   `json:"key"`
	RequestID  string   `json:"request_id"`
	LeaseToken string   `json:"lease_token"`
	ExpiresAt  string   `json:"expires_at"`
	AcquiredAt string   `json:"acquired_at"`
	SlotStart  string   `json:"slot_start"`
	SlotEnd    string   `json:"slot_end"`
	PanelIDs   []string `json:"panel_ids"`
	Subs       []subDoc `json:"substitutions,omitempty"`
}

type subDoc struct {
	RequiredID  string `json:"required_id"`
	AlternateID string `json:"alternate_id"`
	Reason      string `json:"reason,omitempty"`
}

func encodeHold(hold *domain.Hold) ([]byte, error) {
	doc := holdDoc{
		Key:        hold.Key.String(),
		RequestID:  hold.RequestID.String(),
		LeaseToken: hold.LeaseToken.String(),
		ExpiresAt:  hold.ExpiresAt.UTC().Format(time.RFC3339Nano),
		AcquiredAt: hold.AcquiredAt.UTC().Format(time.RFC3339Nano),
		SlotStart:  hold.Slot.Start.UTC().Format(time.RFC3339Nano),
		SlotEnd:    hold.Slot.End.UTC().Format(time.RFC3339Nano),
		PanelIDs:   make([]string, 0, len(hold.Panel.InterviewerIDs)),
	}
	for _, id := range hold.Panel.InterviewerIDs {
		doc.PanelIDs = append(doc.PanelIDs, id.String())
	}
	for _, sub := range hold.Panel.Substitutions {
		doc.Subs = append(doc.Subs, subDoc{
			RequiredID:  sub.RequiredID.String(),
			AlternateID: sub.AlternateID.String(),
			Reason:      sub.Reason,
		})
	}
	return json.Marshal(doc)
}

func decodeHold(raw []byte) (*domain.Hold, error) {
	var doc holdDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	requestID, err := uuid.Parse(doc.RequestID)
	if err != nil {
		return nil, err
	}
	leaseToken, err := uuid.Parse(doc.LeaseToken)
	if err != nil {
		return nil, err
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, doc.ExpiresAt)
	if err != nil {
		return nil, err
	}
	acquiredAt, err := time.Parse(time.RFC3339Nano, doc.AcquiredAt)
	if err != nil {
		return nil, err
	}
	slotStart, err := time.Parse(time.RFC3339Nano, doc.SlotStart)
	if err != nil {
		return nil, err
	}
	slotEnd, err := time.Parse(time.RFC3339Nano, doc.SlotEnd)
	if err != nil {
		return nil, err
	}
	slot, err := domain.NewTimeRange(slotStart, slotEnd)
	if err != nil {
		return nil, err
	}

	panelIDs := make([]uuid.UUID, 0, len(doc.PanelIDs))
	for _, s := range doc.PanelIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		panelIDs = append(panelIDs, id)
	}
	var subs []domain.Substitution
	for _, s := range doc.Subs {
		requiredID, err := uuid.Parse(s.RequiredID)
		if err != nil {
			return nil, err
		}
		alternateID, err := uuid.Parse(s.AlternateID)
		if err != nil {
			return nil, err
		}
		subs = append(subs, domain.Substitution{
			RequiredID:  requiredID,
			AlternateID: alternateID,
			Reason:      s.Reason,
		})
	}

	return &domain.Hold{
		Key:        domain.SlotKey(doc.Key),
		RequestID:  requestID,
		LeaseToken: leaseToken,
		ExpiresAt:  expiresAt,
		AcquiredAt: acquiredAt,
		Slot:       slot,
		Panel:      domain.PanelResolution{InterviewerIDs: panelIDs, Substitutions: subs},
	}, nil
}

func slotRedisKey(key domain.SlotKey) string {
	return slotKeyPrefix + key.String()
}

func requestRedisKey(requestID uuid.UUID) string {
	return requestKeyPrefix + requestID.String()
}

// Acquire stores the hold if no unexpired hold exists for its key. On
// conflict it returns the existing hold and no error.
func (s *RedisHoldStore) Acquire(ctx context.Context, hold *domain.Hold) (*domain.Hold, error) {
	raw, err := encodeHold(hold)
	if err != nil {
		return nil, err
	}
	ttl := time.Until(hold.ExpiresAt)
	if ttl <= 0 {
		return nil, fmt.Errorf("hold for %s already expired", hold.Key)
	}

	ok, err := s.client.SetNX(ctx, slotRedisKey(hold.Key), raw, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		existingRaw, err := s.client.Get(ctx, slotRedisKey(hold.Key)).Bytes()
		if err == redis.Nil {
			// The rival hold expired between SETNX and GET. Retry once;
			// losing the second race is a genuine conflict.
			ok, err := s.client.SetNX(ctx, slotRedisKey(hold.Key), raw, ttl).Result()
			if err != nil {
				return nil, err
			}
			if !ok {
				existingRaw, err := s.client.Get(ctx, slotRedisKey(hold.Key)).Bytes()
				if err != nil {
					return nil, err
				}
				return decodeHold(existingRaw)
			}
		} else if err != nil {
			return nil, err
		} else {
			return decodeHold(existingRaw)
		}
	}

	if err := s.client.Set(ctx, requestRedisKey(hold.RequestID), hold.Key.String(), ttl).Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Release removes the hold if the token owns it.
func (s *RedisHoldStore) Release(ctx context.Context, key domain.SlotKey, token uuid.UUID) error {
	res, err := releaseScript.Run(ctx, s.client, []string{slotRedisKey(key)}, token.String()).Int64()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case 0:
		return application.ErrHoldLeaseMismatch
	default:
		return application.ErrHoldNotFound
	}
}

// Renew extends the hold's expiry if the token owns it.
func (s *RedisHoldStore) Renew(ctx context.Context, key domain.SlotKey, token uuid.UUID, ttl time.Duration) (*domain.Hold, error) {
	expiresAt := time.Now().UTC().Add(ttl)
	res, err := renewScript.Run(ctx, s.client,
		[]string{slotRedisKey(key)},
		token.String(),
		expiresAt.Format(time.RFC3339Nano),
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, err
	}
	switch v := res.(type) {
	case string:
		return decodeHold([]byte(v))
	case int64:
		if v == 0 {
			return nil, application.ErrHoldLeaseMismatch
		}
		return nil, application.ErrHoldNotFound
	default:
		return nil, errors.New("unexpected renew script result")
	}
}

// FindByRequest returns the active hold taken by a request, if any.
func (s *RedisHoldStore) FindByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Hold, error) {
	slotKey, err := s.client.Get(ctx, requestRedisKey(requestID)).Result()
	if err == redis.Nil {
		return nil, application.ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, slotKeyPrefix+slotKey).Bytes()
	if err == redis.Nil {
		return nil, application.ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}

	hold, err := decodeHold(raw)
	if err != nil {
		return nil, err
	}
	// The slot key may have been re-held by a different request after this
	// one expired.
	if hold.RequestID != requestID {
		return nil, application.ErrHoldNotFound
	}
	return hold, nil
}
