package model

import "time"

// LeaseDuration is the fixed lifetime of a reservation.  There is no
// renewal: a lease ends at AcquiredAt+LeaseDuration or earlier when the
// hour slot rolls over.
const LeaseDuration = 60 * time.Minute

// RolloverGrace protects freshly acquired leases from the hour-rollover
// sweep, e.g. a lease taken at 05:59 for hour 6.
const RolloverGrace = 2 * time.Minute

// Reservation is a time-leased exclusive lock on a (portfolio, hour)
// pair within a tenant.  Rows are immutable: they are inserted once and
// later deleted by an explicit release, the background reclaimer or
// the stale-reference detector.
//
// Fields:
//
//	ID           – opaque identifier generated at creation.
//	TenantID     – owning tenant; every lookup is scoped to it.
//	PortfolioID  – locked portfolio; zero when the column is NULL.
//	Hour         – wall-clock hour slot (0–23) the lease covers.
//	Holder       – lower-cased email of the user who acquired it.
//	SessionToken – per-acquisition token, informational only.
//	AcquiredAt   – creation time (UTC).
//	ExpiresAt    – AcquiredAt + LeaseDuration (UTC).
type Reservation struct {
	ID           string    `json:"id"`            // reservations.id
	TenantID     uint64    `json:"tenant_id"`     // reservations.tenant_id
	PortfolioID  uint64    `json:"portfolio_id"`  // reservations.portfolio_id (nullable)
	Hour         int       `json:"hour"`          // reservations.hour
	Holder       string    `json:"holder"`        // reservations.holder
	SessionToken string    `json:"-"`             // reservations.session_token
	AcquiredAt   time.Time `json:"acquired_at"`   // reservations.acquired_at
	ExpiresAt    time.Time `json:"expires_at"`    // reservations.expires_at
}

// Live reports whether the lease has not yet reached its expiry.
func (r Reservation) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Expired is the time-based eviction predicate used by the reclaimer.
func (r Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// RolledOver is the hour-rollover eviction predicate.  A lease whose hour
// slot no longer matches currentHour is evicted once it is older than
// grace, independent of ExpiresAt.
func (r Reservation) RolledOver(currentHour int, now time.Time, grace time.Duration) bool {
	if r.Hour == currentHour {
		return false
	}
	return r.AcquiredAt.Before(now.Add(-grace))
}

// HasPortfolio reports whether the row still carries a portfolio reference.
func (r Reservation) HasPortfolio() bool {
	return r.PortfolioID != 0
}

// LeaseView is a reservation enriched for display by the lock listing.
type LeaseView struct {
	Reservation
	PortfolioName string `json:"portfolio_name"`
}

// ValidHour reports whether h is a valid hour slot.
func ValidHour(h int) bool {
	return h >= 0 && h <= 23
}
