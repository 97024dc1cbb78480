package lease

import (
	"context"

	"github.com/iliyamo/portfolio-lease/internal/metrics"
	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/queue"
)

// isStale reports whether r points at a portfolio that no longer exists.
// The tenant-scoped lookup is tried first; a miss falls back to an
// unscoped lookup so a moved portfolio is not mistaken for a deleted one.
func (s *Service) isStale(ctx context.Context, r model.Reservation) (bool, error) {
	if !r.HasPortfolio() {
		return true, nil
	}
	ok, err := s.portfolios.Exists(ctx, r.TenantID, r.PortfolioID)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	ok, err = s.portfolios.ExistsAnyTenant(ctx, r.PortfolioID)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// DetectStale returns the reservations among rs whose portfolio is gone.
// A lookup failure keeps the reservation: a row is only treated as stale
// when both lookups positively miss.
func (s *Service) DetectStale(ctx context.Context, rs []model.Reservation) []model.Reservation {
	var stale []model.Reservation
	for _, r := range rs {
		gone, err := s.isStale(ctx, r)
		if err != nil {
			s.log.Warn("stale check failed; keeping lease",
				"reservation_id", r.ID, "portfolio_id", r.PortfolioID, "error", err)
			continue
		}
		if gone {
			stale = append(stale, r)
		}
	}
	return stale
}

// PurgeStale deletes the given stale reservations and returns how many rows
// were removed.  Failures are logged per row and do not stop the purge.
func (s *Service) PurgeStale(ctx context.Context, rs []model.Reservation) int64 {
	var total int64
	for _, r := range rs {
		total += s.purge(ctx, r)
	}
	return total
}

func (s *Service) purge(ctx context.Context, r model.Reservation) int64 {
	n, err := s.store.DeleteByID(ctx, r.ID)
	if err != nil {
		s.log.Warn("purge of stale lease failed", "reservation_id", r.ID, "error", err)
		return 0
	}
	if n == 0 {
		return 0
	}
	s.log.Warn("purged lease",
		"error", ErrStaleReservation,
		"reservation_id", r.ID, "tenant_id", r.TenantID, "portfolio_id", r.PortfolioID,
		"holder", r.Holder, "hour", r.Hour)
	s.metrics.Reclaimed(metrics.ReasonStale, n)
	ev := reservationEvent(queue.EventStalePurged, &r)
	ev.Count = n
	ev.Reason = metrics.ReasonStale
	s.publish(ctx, ev)
	return n
}
