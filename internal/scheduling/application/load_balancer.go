package application

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLoadWindow is the trailing window over which interview load counts.
const DefaultLoadWindow = 14 * 24 * time.Hour

// LoadBalancer tracks rolling interview load per interviewer and biases slot
// ranking toward under-loaded panels. Counters move only on confirmed
// bookings and cancellations, never on proposals or expired holds.
type LoadBalancer struct {
	mu     sync.Mutex
	window time.Duration
	events map[uuid.UUID][]time.Time
	now    func() time.Time
}

// NewLoadBalancer creates a load balancer with the given trailing window.
func NewLoadBalancer(window time.Duration) *LoadBalancer {
	if window <= 0 {
		window = DefaultLoadWindow
	}
	return &LoadBalancer{
		window: window,
		events: make(map[uuid.UUID][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the balancer's clock. Test hook.
func (lb *LoadBalancer) WithClock(now func() time.Time) *LoadBalancer {
	lb.now = now
	return lb
}

// Penalty returns the aggregate load penalty for a panel. Counts are
// normalized against the mean across the tracked pool so one interviewer's
// absolute count does not dominate when pool size varies.
func (lb *LoadBalancer) Penalty(interviewerIDs []uuid.UUID) float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.prune()

	total := 0
	for _, events := range lb.events {
		total += len(events)
	}
	pool := len(lb.events)
	if pool == 0 {
		return 0
	}
	mean := float64(total) / float64(pool)

	var penalty float64
	for _, id := range interviewerIDs {
		penalty += float64(len(lb.events[id])) / (1 + mean)
	}
	return penalty
}

// Count returns the current rolling count for one interviewer.
func (lb *LoadBalancer) Count(id uuid.UUID) int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.prune()
	return len(lb.events[id])
}

// RecordBooking increments counters for a confirmed booking.
func (lb *LoadBalancer) RecordBooking(interviewerIDs []uuid.UUID) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	now := lb.now()
	for _, id := range interviewerIDs {
		lb.events[id] = append(lb.events[id], now)
	}
}

// RecordCancellation removes the most recent booking event inside the window
// for each interviewer, so cancelled interviews stop counting toward load.
func (lb *LoadBalancer) RecordCancellation(interviewerIDs []uuid.UUID) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.prune()
	for _, id := range interviewerIDs {
		if events := lb.events[id]; len(events) > 0 {
			lb.events[id] = events[:len(events)-1]
		}
	}
}

// prune drops events older than the trailing window. Caller holds the lock.
func (lb *LoadBalancer) prune() {
	cutoff := lb.now().Add(-lb.window)
	for id, events := range lb.events {
		kept := events[:0]
		for _, at := range events {
			if at.After(cutoff) {
				kept = append(kept, at)
			}
		}
		if len(kept) == 0 {
			delete(lb.events, id)
			continue
		}
		lb.events[id] = kept
	}
}
