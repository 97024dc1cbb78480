package lease

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/portfolio-lease/internal/model"
	"github.com/iliyamo/portfolio-lease/internal/queue"
	"github.com/iliyamo/portfolio-lease/internal/repository"
)

type portfolioKey struct {
	tenant    uint64
	portfolio uint64
}

// memStore mimics the reservations table, including the unique key on
// (tenant_id, portfolio_id) that ignores expiry.
type memStore struct {
	mu   sync.Mutex
	rows map[string]model.Reservation

	failNext error // returned once by the next call, then cleared
	failOps  map[string]error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]model.Reservation{}, failOps: map[string]error{}}
}

func (m *memStore) fail(op string) error {
	if err := m.failOps[op]; err != nil {
		return err
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	return nil
}

func (m *memStore) put(r model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
}

func (m *memStore) all() []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Reservation, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) filter(pred func(model.Reservation) bool) []model.Reservation {
	var out []model.Reservation
	for _, r := range m.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].AcquiredAt.Before(out[j].AcquiredAt)
	})
	return out
}

func (m *memStore) remove(pred func(model.Reservation) bool) int64 {
	var n int64
	for id, r := range m.rows {
		if pred(r) {
			delete(m.rows, id)
			n++
		}
	}
	return n
}

func (m *memStore) Insert(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Insert"); err != nil {
		return err
	}
	if res.PortfolioID != 0 {
		for _, r := range m.rows {
			if r.TenantID == res.TenantID && r.PortfolioID == res.PortfolioID {
				return repository.ErrDuplicateReservation
			}
		}
	}
	m.rows[res.ID] = *res
	return nil
}

func (m *memStore) FindLiveByPortfolio(_ context.Context, tenantID, portfolioID uint64, now time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindLiveByPortfolio"); err != nil {
		return nil, err
	}
	rs := m.filter(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.PortfolioID == portfolioID && r.Live(now)
	})
	if len(rs) == 0 {
		return nil, repository.ErrReservationNotFound
	}
	return &rs[0], nil
}

func (m *memStore) FindLiveByHolder(_ context.Context, tenantID uint64, holder string, now time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindLiveByHolder"); err != nil {
		return nil, err
	}
	return m.filter(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.Holder == holder && r.Live(now)
	}), nil
}

func (m *memStore) FindLiveByHolderAndHour(_ context.Context, tenantID uint64, holder string, hour int, now time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindLiveByHolderAndHour"); err != nil {
		return nil, err
	}
	return m.filter(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.Holder == holder && r.Hour == hour && r.Live(now)
	}), nil
}

func (m *memStore) ListLive(_ context.Context, tenantID uint64, now time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListLive"); err != nil {
		return nil, err
	}
	return m.filter(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.Live(now)
	}), nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteByID"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool { return r.ID == id }), nil
}

func (m *memStore) DeleteExpiredByHolder(_ context.Context, tenantID uint64, holder string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteExpiredByHolder"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.Holder == holder && !r.Live(now)
	}), nil
}

func (m *memStore) DeleteExpiredByPortfolio(_ context.Context, tenantID, portfolioID uint64, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteExpiredByPortfolio"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.PortfolioID == portfolioID && !r.Live(now)
	}), nil
}

func (m *memStore) DeleteLiveByHolder(_ context.Context, tenantID uint64, holder string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteLiveByHolder"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool {
		return r.TenantID == tenantID && r.Holder == holder && r.Live(now)
	}), nil
}

func (m *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteExpired"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool { return r.Expired(now) }), nil
}

func (m *memStore) DeleteRolledOver(_ context.Context, currentHour int, acquiredBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteRolledOver"); err != nil {
		return 0, err
	}
	return m.remove(func(r model.Reservation) bool {
		return r.Hour != currentHour && r.AcquiredAt.Before(acquiredBefore)
	}), nil
}

// memPortfolios is a portfolio table keyed by (tenant, id).
type memPortfolios struct {
	mu       sync.Mutex
	names    map[portfolioKey]string
	existErr error
}

func newMemPortfolios() *memPortfolios {
	return &memPortfolios{names: map[portfolioKey]string{}}
}

func (p *memPortfolios) add(tenantID, id uint64, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[portfolioKey{tenantID, id}] = name
}

func (p *memPortfolios) drop(tenantID, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.names, portfolioKey{tenantID, id})
}

func (p *memPortfolios) Exists(_ context.Context, tenantID, portfolioID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existErr != nil {
		return false, p.existErr
	}
	_, ok := p.names[portfolioKey{tenantID, portfolioID}]
	return ok, nil
}

func (p *memPortfolios) ExistsAnyTenant(_ context.Context, portfolioID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existErr != nil {
		return false, p.existErr
	}
	for k := range p.names {
		if k.portfolio == portfolioID {
			return true, nil
		}
	}
	return false, nil
}

func (p *memPortfolios) Name(_ context.Context, tenantID, portfolioID uint64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.names[portfolioKey{tenantID, portfolioID}]
	if !ok {
		return "", repository.ErrPortfolioNotFound
	}
	return name, nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []queue.LeaseEvent
	err    error
}

func (e *recordedEvents) PublishLeaseEvent(_ context.Context, ev queue.LeaseEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *recordedEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

var errDown = errors.New("connection refused")

func isStoreDown(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && strings.Contains(err.Error(), errDown.Error())
}
