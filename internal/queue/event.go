// Package queue defines the lease event payloads exchanged over RabbitMQ
// and the consumer that turns them into an audit log.
package queue

import "time"

// Event types published on the lease events queue.
const (
	EventAcquired    = "lease.acquired"
	EventReleased    = "lease.released"
	EventReleasedAll = "lease.released_all"
	EventReclaimed   = "lease.reclaimed"
	EventStalePurged = "lease.stale_purged"
)

// LeaseEvent describes a change in lease state.  Sweep events carry a
// Count and Reason instead of a single reservation.
type LeaseEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id,omitempty"`
	TenantID      uint64 `json:"tenant_id,omitempty"`
	PortfolioID   uint64 `json:"portfolio_id,omitempty"`
	Hour          int    `json:"hour"`
	Holder        string `json:"holder,omitempty"`
	Count         int64  `json:"count,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// Stamp formats t the way every event timestamp is written.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
