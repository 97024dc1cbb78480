package lease

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/iliyamo/portfolio-lease/internal/logging"
	"github.com/iliyamo/portfolio-lease/internal/metrics"
	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/queue"
)

// DefaultSweepInterval is how often the reclaimer sweeps.
const DefaultSweepInterval = 60 * time.Second

// ErrReclaimerRunning is returned by Start on a reclaimer that is already
// running.
var ErrReclaimerRunning = errors.New("reclaimer already running")

// SweepStore is the tenant-agnostic part of the reservation store used by
// the reclaimer.
type SweepStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteRolledOver(ctx context.Context, currentHour int, acquiredBefore time.Time) (int64, error)
}

// ReclaimerConfig configures a Reclaimer.  Zero values take defaults
// except Grace, where only a negative value selects model.RolloverGrace.
type ReclaimerConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Location *time.Location
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *metrics.LeaseMetrics
	Events   EventPublisher
}

// SweepResult reports one sweep.  Err joins the errors of both deletions.
type SweepResult struct {
	Expired    int64 // rows past expires_at
	RolledOver int64 // rows for an hour other than the current one
	Err        error
}

// Reclaimer deletes expired and rolled-over leases on a fixed interval.
type Reclaimer struct {
	store    SweepStore
	interval time.Duration  // time between sweeps
	grace    time.Duration  // minimum lease age before rollover eviction
	loc      *time.Location // timezone the current hour is read in
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.LeaseMetrics
	events   EventPublisher

	mu     sync.Mutex         // guards cancel and done
	cancel context.CancelFunc // non-nil while the loop runs
	done   chan struct{}      // closed when the loop exits
}

// NewReclaimer returns a stopped Reclaimer.
func NewReclaimer(store SweepStore, cfg ReclaimerConfig) *Reclaimer {
	if store == nil {
		panic("nil store passed to lease.NewReclaimer")
	}
	r := &Reclaimer{
		store:    store,
		interval: cfg.Interval,
		grace:    cfg.Grace,
		loc:      cfg.Location,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		events:   cfg.Events,
	}
	if r.interval <= 0 {
		r.interval = DefaultSweepInterval
	}
	if r.grace < 0 {
		r.grace = model.RolloverGrace
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.clock == nil {
		r.clock = clock.WallClock
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	r.log = r.log.With("component", "reclaimer")
	return r
}

// SweepOnce runs both deletions once.  A failure in one does not skip the
// other.
func (r *Reclaimer) SweepOnce(ctx context.Context) SweepResult {
	start := r.clock.Now()
	now := start.UTC()
	hour := now.In(r.loc).Hour()

	var res SweepResult
	var errs []error

	n, err := r.store.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, storeErr("delete expired leases", err))
		r.metrics.SweepFailed()
		r.log.Error("expired sweep failed", "error", err)
	} else {
		res.Expired = n
		r.reclaimed(ctx, metrics.ReasonExpired, n, now)
	}

	n, err = r.store.DeleteRolledOver(ctx, hour, now.Add(-r.grace))
	if err != nil {
		errs = append(errs, storeErr("delete rolled-over leases", err))
		r.metrics.SweepFailed()
		r.log.Error("rollover sweep failed", "hour", hour, "error", err)
	} else {
		res.RolledOver = n
		r.reclaimed(ctx, metrics.ReasonRollover, n, now)
	}

	res.Err = errors.Join(errs...)
	r.metrics.ObserveSweep(r.clock.Now().Sub(start))
	r.log.Debug("sweep finished", "expired", res.Expired, "rolled_over", res.RolledOver, "hour", hour)
	return res
}

func (r *Reclaimer) reclaimed(ctx context.Context, reason string, n int64, now time.Time) {
	if n <= 0 {
		return
	}
	r.log.Info("reclaimed leases", "reason", reason, "count", n)
	r.metrics.Reclaimed(reason, n)
	if r.events == nil {
		return
	}
	ev := queue.LeaseEvent{
		Type:       queue.EventReclaimed,
		Count:      n,
		Reason:     reason,
		OccurredAt: queue.Stamp(now),
	}
	if err := r.events.PublishLeaseEvent(ctx, ev); err != nil {
		r.log.Debug("lease event dropped", "type", ev.Type, "error", err)
	}
}

// Start sweeps immediately and then every interval on its own goroutine
// until ctx is cancelled or Stop is called.  Once the loop has exited the
// reclaimer can be started again.
func (r *Reclaimer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrReclaimerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, cancel, r.done)
	r.log.Info("reclaimer started", "interval", r.interval, "grace", r.grace, "timezone", r.loc.String())
	return nil
}

func (r *Reclaimer) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		// Forget this run unless Stop or a later Start already did.
		r.mu.Lock()
		if r.done == done {
			r.cancel, r.done = nil, nil
		}
		r.mu.Unlock()
		cancel()
		close(done)
	}()
	for {
		r.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.interval):
		}
	}
}

// Stop halts the loop and waits for an in-flight sweep to finish.  It is
// safe to call on a stopped reclaimer.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info("reclaimer stopped")
}
