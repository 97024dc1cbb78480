// Package lease implements the reservation lifecycle: acquisition,
// release, listing with stale-reference pruning and background
// reclamation of expired or rolled-over leases.
//
// The reservations table is the only shared state.  Nothing here holds an
// in-process mutex around it; mutual exclusion per portfolio rests on the
// store's unique key and the per-user-per-hour rule is a best-effort
// pre-check.
package lease

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/iliyamo/portfolio-lease/internal/logging"
	"github.com/iliyamo/portfolio-lease/internal/metrics"
	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/queue"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

// Store is the reservation store used by request-path operations.
type Store interface {
	Insert(ctx context.Context, res *model.Reservation) error
	FindLiveByPortfolio(ctx context.Context, tenantID, portfolioID uint64, now time.Time) (*model.Reservation, error)
	FindLiveByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) ([]model.Reservation, error)
	FindLiveByHolderAndHour(ctx context.Context, tenantID uint64, holder string, hour int, now time.Time) ([]model.Reservation, error)
	ListLive(ctx context.Context, tenantID uint64, now time.Time) ([]model.Reservation, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	DeleteExpiredByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) (int64, error)
	DeleteExpiredByPortfolio(ctx context.Context, tenantID, portfolioID uint64, now time.Time) (int64, error)
	DeleteLiveByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) (int64, error)
}

// Portfolios answers existence questions about portfolios.
type Portfolios interface {
	Exists(ctx context.Context, tenantID, portfolioID uint64) (bool, error)
	ExistsAnyTenant(ctx context.Context, portfolioID uint64) (bool, error)
}

// NameSource resolves portfolio display names.
type NameSource interface {
	Name(ctx context.Context, tenantID, portfolioID uint64) (string, error)
}

// EventPublisher receives lease events.  Publishing is best-effort.
type EventPublisher interface {
	PublishLeaseEvent(ctx context.Context, ev queue.LeaseEvent) error
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Clock         clock.Clock
	Logger        *slog.Logger
	Metrics       *metrics.LeaseMetrics
	Events        EventPublisher
	LeaseDuration time.Duration
}

// Service runs the request-path lease operations on top of a Store.
type Service struct {
	store      Store                  // reservations table
	portfolios Portfolios             // existence checks, never cached
	names      NameSource             // display names, possibly cached
	events     EventPublisher         // optional; nil drops events
	metrics    *metrics.LeaseMetrics  // optional; nil records nothing
	clock      clock.Clock            // source of "now", UTC
	log        *slog.Logger
	duration   time.Duration          // lifetime of a new lease
	newToken   func() (string, error) // session token source
}

// NewService wires a Service.  store, portfolios and names must be non-nil.
func NewService(store Store, portfolios Portfolios, names NameSource, opts Options) *Service {
	if store == nil || portfolios == nil || names == nil {
		panic("nil dependency passed to lease.NewService")
	}
	s := &Service{
		store:      store,
		portfolios: portfolios,
		names:      names,
		events:     opts.Events,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		log:        opts.Logger,
		duration:   opts.LeaseDuration,
		newToken:   repository.NewSessionToken,
	}
	if s.clock == nil {
		s.clock = clock.WallClock
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	s.log = s.log.With("component", "lease")
	if s.duration <= 0 {
		s.duration = model.LeaseDuration
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// NormalizeHolder canonicalizes a holder identity (email) so that
// comparisons are case-insensitive.
func NormalizeHolder(holder string) string {
	return strings.ToLower(strings.TrimSpace(holder))
}

// DisplayName returns the portfolio name or "Portfolio ID: <id>" when it
// cannot be resolved.
func (s *Service) DisplayName(ctx context.Context, tenantID, portfolioID uint64) string {
	if portfolioID != 0 {
		if name, err := s.names.Name(ctx, tenantID, portfolioID); err == nil && name != "" {
			return name
		}
	}
	return fmt.Sprintf("Portfolio ID: %d", portfolioID)
}

func (s *Service) publish(ctx context.Context, ev queue.LeaseEvent) {
	if s.events == nil {
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = queue.Stamp(s.now())
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.PublishLeaseEvent(pctx, ev); err != nil {
		s.log.Debug("lease event dropped", "type", ev.Type, "error", err)
	}
}

func reservationEvent(typ string, r *model.Reservation) queue.LeaseEvent {
	return queue.LeaseEvent{
		Type:          typ,
		ReservationID: r.ID,
		TenantID:      r.TenantID,
		PortfolioID:   r.PortfolioID,
		Hour:          r.Hour,
		Holder:        r.Holder,
	}
}
