package lease

import (
	"context"
	"errors"

	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

// ListLive returns every live lease in the tenant enriched with portfolio
// names.  Stale leases are purged as a side effect and omitted.
func (s *Service) ListLive(ctx context.Context, tenantID uint64) ([]model.LeaseView, error) {
	rows, err := s.store.ListLive(ctx, tenantID, s.now())
	if err != nil {
		return nil, storeErr("list leases", err)
	}

	stale := s.DetectStale(ctx, rows)
	if len(stale) > 0 {
		s.PurgeStale(ctx, stale)
	}
	skip := make(map[string]struct{}, len(stale))
	for _, r := range stale {
		skip[r.ID] = struct{}{}
	}

	out := make([]model.LeaseView, 0, len(rows)-len(stale))
	for _, r := range rows {
		if _, ok := skip[r.ID]; ok {
			continue
		}
		out = append(out, model.LeaseView{
			Reservation:   r,
			PortfolioName: s.DisplayName(ctx, tenantID, r.PortfolioID),
		})
	}
	return out, nil
}

// FindLiveByPortfolio returns the live lease on a portfolio, or nil when
// there is none.
func (s *Service) FindLiveByPortfolio(ctx context.Context, tenantID, portfolioID uint64) (*model.Reservation, error) {
	res, err := s.store.FindLiveByPortfolio(ctx, tenantID, portfolioID, s.now())
	if errors.Is(err, repository.ErrReservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find lease by portfolio", err)
	}
	return res, nil
}

// FindLiveByHolder returns the live leases held by holder in the tenant.
func (s *Service) FindLiveByHolder(ctx context.Context, tenantID uint64, holder string) ([]model.Reservation, error) {
	rows, err := s.store.FindLiveByHolder(ctx, tenantID, NormalizeHolder(holder), s.now())
	if err != nil {
		return nil, storeErr("find leases by holder", err)
	}
	return rows, nil
}
