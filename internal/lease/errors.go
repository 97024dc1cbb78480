package lease

import (
	"errors"
	"fmt"
)

// Business errors returned synchronously to callers.
var (
	// ErrAlreadyHoldingLease: the caller already holds another live lease
	// for the requested hour.
	ErrAlreadyHoldingLease = errors.New("already holding a lease for this hour")
	// ErrPortfolioAlreadyLocked: someone holds a live lease on the portfolio.
	ErrPortfolioAlreadyLocked = errors.New("portfolio already locked")
	// ErrNotLocked: release of a portfolio without a live lease.
	ErrNotLocked = errors.New("portfolio is not locked")
	// ErrNotLeaseHolder: release attempted by someone other than the holder.
	ErrNotLeaseHolder = errors.New("not the lease holder")

	ErrInvalidHour       = errors.New("hour must be between 0 and 23")
	ErrInvalidHolder     = errors.New("holder is required")
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// ErrStaleReservation marks a lease whose portfolio no longer exists.  It
// is only logged; callers never see it.
var ErrStaleReservation = errors.New("stale reservation")

// ErrStoreUnavailable wraps every failure talking to the reservation or
// portfolio store.  It is retryable.
var ErrStoreUnavailable = errors.New("lease store unavailable")

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// LeaseError carries the details of a conflict or ownership failure.  It
// unwraps to one of ErrAlreadyHoldingLease, ErrPortfolioAlreadyLocked or
// ErrNotLeaseHolder.
type LeaseError struct {
	Kind          error
	PortfolioID   uint64
	PortfolioName string
	Holder        string
	Hour          int
}

func (e *LeaseError) Error() string {
	holder := e.Holder
	if holder == "" {
		holder = "another user"
	}
	switch e.Kind {
	case ErrAlreadyHoldingLease:
		return fmt.Sprintf("you already hold %s for hour %d; release it before starting another portfolio", e.PortfolioName, e.Hour)
	case ErrPortfolioAlreadyLocked:
		return fmt.Sprintf("%s is locked by %s for hour %d", e.PortfolioName, holder, e.Hour)
	case ErrNotLeaseHolder:
		return fmt.Sprintf("%s is locked by %s; only the holder can release it", e.PortfolioName, holder)
	}
	return e.Kind.Error()
}

func (e *LeaseError) Unwrap() error { return e.Kind }
