package lease

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/queue"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

// Acquire creates a lease on (portfolioID, hour) for holder.
//
// The per-user-per-hour check runs before the insert and can race with a
// concurrent acquisition by the same user on another portfolio; the
// unique key on (tenant, portfolio) is what guarantees mutual exclusion,
// and a duplicate-key failure is reported as ErrPortfolioAlreadyLocked.
func (s *Service) Acquire(ctx context.Context, tenantID, portfolioID uint64, holder string, hour int) (*model.Reservation, error) {
	holder = NormalizeHolder(holder)
	if holder == "" {
		return nil, ErrInvalidHolder
	}
	if !model.ValidHour(hour) {
		return nil, ErrInvalidHour
	}
	if portfolioID == 0 {
		return nil, ErrPortfolioNotFound
	}
	now := s.now()

	if n, err := s.store.DeleteExpiredByHolder(ctx, tenantID, holder, now); err != nil {
		s.log.Warn("self-cleanup of expired leases failed", "tenant_id", tenantID, "holder", holder, "error", err)
	} else if n > 0 {
		s.log.Debug("removed own expired leases", "tenant_id", tenantID, "holder", holder, "count", n)
	}

	ok, err := s.portfolios.Exists(ctx, tenantID, portfolioID)
	if err != nil {
		s.metrics.Acquire("error")
		return nil, storeErr("check portfolio", err)
	}
	if !ok {
		s.metrics.Acquire("portfolio_not_found")
		return nil, ErrPortfolioNotFound
	}

	held, err := s.store.FindLiveByHolderAndHour(ctx, tenantID, holder, hour, now)
	if err != nil {
		s.metrics.Acquire("error")
		return nil, storeErr("find leases for holder", err)
	}
	for _, r := range held {
		stale, err := s.isStale(ctx, r)
		if err != nil {
			s.metrics.Acquire("error")
			return nil, storeErr("check lease portfolio", err)
		}
		if stale {
			s.purge(ctx, r)
			continue
		}
		s.metrics.Acquire("already_holding")
		return nil, &LeaseError{
			Kind:          ErrAlreadyHoldingLease,
			PortfolioID:   r.PortfolioID,
			PortfolioName: s.DisplayName(ctx, tenantID, r.PortfolioID),
			Holder:        r.Holder,
			Hour:          r.Hour,
		}
	}

	// The unique key covers expired rows too, so clear them first.
	if _, err := s.store.DeleteExpiredByPortfolio(ctx, tenantID, portfolioID, now); err != nil {
		s.metrics.Acquire("error")
		return nil, storeErr("clear expired portfolio lease", err)
	}

	token, err := s.newToken()
	if err != nil {
		s.metrics.Acquire("error")
		return nil, storeErr("generate session token", err)
	}
	res := &model.Reservation{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		PortfolioID:  portfolioID,
		Hour:         hour,
		Holder:       holder,
		SessionToken: token,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(s.duration),
	}
	if err := s.store.Insert(ctx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicateReservation) {
			s.metrics.Acquire("already_locked")
			return nil, s.lockedError(ctx, tenantID, portfolioID, hour)
		}
		s.metrics.Acquire("error")
		return nil, storeErr("insert reservation", err)
	}

	s.metrics.Acquire("ok")
	s.log.Info("lease acquired",
		"tenant_id", tenantID, "portfolio_id", portfolioID, "hour", hour,
		"holder", holder, "reservation_id", res.ID, "expires_at", res.ExpiresAt)
	s.publish(ctx, reservationEvent(queue.EventAcquired, res))
	return res, nil
}

// lockedError describes the lease that beat us to the insert.  The winner
// may already be gone again, in which case the holder stays anonymous.
func (s *Service) lockedError(ctx context.Context, tenantID, portfolioID uint64, hour int) error {
	e := &LeaseError{
		Kind:          ErrPortfolioAlreadyLocked,
		PortfolioID:   portfolioID,
		PortfolioName: s.DisplayName(ctx, tenantID, portfolioID),
		Hour:          hour,
	}
	if current, err := s.store.FindLiveByPortfolio(ctx, tenantID, portfolioID, s.now()); err == nil {
		e.Holder = current.Holder
		e.Hour = current.Hour
	}
	return e
}
