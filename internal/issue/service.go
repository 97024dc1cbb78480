// Package issue logs findings against a portfolio hour and drives the
// all-sites-checked completion workflow.  Both consult the lease service
// so a finding can only be recorded by whoever holds the portfolio.
package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/portfolio-lease/internal/lease"
	"github.com/iliyamo/portfolio-lease/internal/logging"
	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

var (
	// ErrLockedByOther: the portfolio is leased to someone else.
	ErrLockedByOther = errors.New("portfolio is locked by another user")
	// ErrFinishCurrentLock: the author holds a lease on a different portfolio.
	ErrFinishCurrentLock = errors.New("finish your current portfolio first")

	ErrInvalidHour       = errors.New("hour must be between 0 and 23")
	ErrEmptyDescription  = errors.New("description is required")
	ErrInvalidAuthor     = errors.New("author is required")
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// LockedError names the lease that blocked an issue.  It unwraps to
// ErrLockedByOther or ErrFinishCurrentLock.
type LockedError struct {
	Kind          error
	PortfolioID   uint64
	PortfolioName string
	Holder        string
	Hour          int
}

func (e *LockedError) Error() string {
	if e.Kind == ErrFinishCurrentLock {
		return fmt.Sprintf("you are still working on %s (hour %d); finish or release it first", e.PortfolioName, e.Hour)
	}
	return fmt.Sprintf("%s is locked by %s for hour %d", e.PortfolioName, e.Holder, e.Hour)
}

func (e *LockedError) Unwrap() error { return e.Kind }

// Leases is the part of the lease service issue logging depends on.
type Leases interface {
	FindLiveByPortfolio(ctx context.Context, tenantID, portfolioID uint64) (*model.Reservation, error)
	FindLiveByHolder(ctx context.Context, tenantID uint64, holder string) ([]model.Reservation, error)
	Release(ctx context.Context, tenantID, portfolioID uint64, requester string) error
	DisplayName(ctx context.Context, tenantID, portfolioID uint64) string
}

// Store persists issues.
type Store interface {
	Create(ctx context.Context, is *model.Issue) error
}

// Portfolios checks existence and updates the completion flag.
type Portfolios interface {
	Exists(ctx context.Context, tenantID, portfolioID uint64) (bool, error)
	SetAllSitesChecked(ctx context.Context, tenantID, portfolioID uint64, checked bool) error
}

type Service struct {
	leases     Leases
	store      Store
	portfolios Portfolios
	log        *slog.Logger
}

func NewService(leases Leases, store Store, portfolios Portfolios, logger *slog.Logger) *Service {
	if leases == nil || store == nil || portfolios == nil {
		panic("nil dependency passed to issue.NewService")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{leases: leases, store: store, portfolios: portfolios, log: logger.With("component", "issue")}
}

// Create records a finding for (portfolioID, hour).  It is rejected when
// the portfolio does not exist in the tenant, when another user holds it,
// or when the author still holds a lease on a different portfolio.
func (s *Service) Create(ctx context.Context, tenantID, portfolioID uint64, author string, hour int, description string) (*model.Issue, error) {
	author = lease.NormalizeHolder(author)
	description = strings.TrimSpace(description)
	switch {
	case author == "":
		return nil, ErrInvalidAuthor
	case !model.ValidHour(hour):
		return nil, ErrInvalidHour
	case description == "":
		return nil, ErrEmptyDescription
	}

	ok, err := s.portfolios.Exists(ctx, tenantID, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("%w: check portfolio: %w", lease.ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrPortfolioNotFound
	}

	current, err := s.leases.FindLiveByPortfolio(ctx, tenantID, portfolioID)
	if err != nil {
		return nil, err
	}
	if current != nil && !strings.EqualFold(current.Holder, author) {
		return nil, &LockedError{
			Kind:          ErrLockedByOther,
			PortfolioID:   portfolioID,
			PortfolioName: s.leases.DisplayName(ctx, tenantID, portfolioID),
			Holder:        current.Holder,
			Hour:          current.Hour,
		}
	}

	mine, err := s.leases.FindLiveByHolder(ctx, tenantID, author)
	if err != nil {
		return nil, err
	}
	for _, r := range mine {
		if r.PortfolioID != portfolioID {
			return nil, &LockedError{
				Kind:          ErrFinishCurrentLock,
				PortfolioID:   r.PortfolioID,
				PortfolioName: s.leases.DisplayName(ctx, tenantID, r.PortfolioID),
				Holder:        r.Holder,
				Hour:          r.Hour,
			}
		}
	}

	is := &model.Issue{
		TenantID:    tenantID,
		PortfolioID: portfolioID,
		Hour:        hour,
		Author:      author,
		Description: description,
	}
	if err := s.store.Create(ctx, is); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	s.log.Info("issue created", "tenant_id", tenantID, "portfolio_id", portfolioID, "hour", hour, "issue_id", is.ID)
	return is, nil
}

// MarkAllSitesChecked sets the completion flag and then releases the
// requester's lease.  A failed release is logged, never returned.
func (s *Service) MarkAllSitesChecked(ctx context.Context, tenantID, portfolioID uint64, requester string) error {
	if err := s.portfolios.SetAllSitesChecked(ctx, tenantID, portfolioID, true); err != nil {
		if errors.Is(err, repository.ErrPortfolioNotFound) {
			return ErrPortfolioNotFound
		}
		return fmt.Errorf("mark all sites checked: %w", err)
	}
	s.log.Info("all sites checked", "tenant_id", tenantID, "portfolio_id", portfolioID, "by", requester)

	err := s.leases.Release(ctx, tenantID, portfolioID, requester)
	switch {
	case err == nil:
	case errors.Is(err, lease.ErrNotLocked):
		s.log.Debug("no lease to release after completion", "portfolio_id", portfolioID)
	default:
		s.log.Warn("release after completion failed", "portfolio_id", portfolioID, "requester", requester, "error", err)
	}
	return nil
}
