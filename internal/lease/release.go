package lease

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/portfolio-lease/internal/queue"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

// Release deletes the live lease on a portfolio if requester holds it.
// A repeated call returns ErrNotLocked, which cleanup callers may treat as
// success.
func (s *Service) Release(ctx context.Context, tenantID, portfolioID uint64, requester string) error {
	requester = NormalizeHolder(requester)
	res, err := s.store.FindLiveByPortfolio(ctx, tenantID, portfolioID, s.now())
	if errors.Is(err, repository.ErrReservationNotFound) {
		s.metrics.Release("not_locked")
		return ErrNotLocked
	}
	if err != nil {
		s.metrics.Release("error")
		return storeErr("load lease", err)
	}
	if !strings.EqualFold(res.Holder, requester) {
		s.metrics.Release("not_holder")
		return &LeaseError{
			Kind:          ErrNotLeaseHolder,
			PortfolioID:   portfolioID,
			PortfolioName: s.DisplayName(ctx, tenantID, portfolioID),
			Holder:        res.Holder,
			Hour:          res.Hour,
		}
	}

	n, err := s.store.DeleteByID(ctx, res.ID)
	if err != nil {
		s.metrics.Release("error")
		return storeErr("delete lease", err)
	}
	if n == 0 {
		// Reclaimed or released concurrently.
		s.metrics.Release("not_locked")
		return ErrNotLocked
	}

	s.metrics.Release("ok")
	s.log.Info("lease released",
		"tenant_id", tenantID, "portfolio_id", portfolioID, "holder", res.Holder, "reservation_id", res.ID)
	s.publish(ctx, reservationEvent(queue.EventReleased, res))
	return nil
}

// ReleaseAllForUser deletes every live lease holder has in the tenant and
// returns how many were removed.
func (s *Service) ReleaseAllForUser(ctx context.Context, tenantID uint64, holder string) (int64, error) {
	holder = NormalizeHolder(holder)
	if holder == "" {
		return 0, ErrInvalidHolder
	}
	n, err := s.store.DeleteLiveByHolder(ctx, tenantID, holder, s.now())
	if err != nil {
		s.metrics.Release("error")
		return 0, storeErr("delete leases for holder", err)
	}
	s.log.Info("released all leases", "tenant_id", tenantID, "holder", holder, "count", n)
	if n > 0 {
		s.publish(ctx, queue.LeaseEvent{
			Type:     queue.EventReleasedAll,
			TenantID: tenantID,
			Holder:   holder,
			Count:    n,
			Reason:   "user",
		})
	}
	return n, nil
}
