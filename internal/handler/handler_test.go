package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/portfolio-lease/internal/issue"
	"github.com/iliyamo/portfolio-lease/internal/lease"
	"github.com/iliyamo/portfolio-lease/internal/logging"
	"github.com/iliyamo/portfolio-lease/internal/middleware"
	"github.com/iliyamo/portfolio-lease/internal/model"
)

type stubLeases struct {
	err      error
	released int64
	items    []model.LeaseView

	gotTenant    uint64
	gotHolder    string
	gotPortfolio uint64
	gotHour      int
}

func (s *stubLeases) Acquire(_ context.Context, tenantID, portfolioID uint64, holder string, hour int) (*model.Reservation, error) {
	s.gotTenant, s.gotPortfolio, s.gotHolder, s.gotHour = tenantID, portfolioID, holder, hour
	if s.err != nil {
		return nil, s.err
	}
	return &model.Reservation{
		ID:          "res-1",
		TenantID:    tenantID,
		PortfolioID: portfolioID,
		Hour:        hour,
		Holder:      holder,
		ExpiresAt:   time.Date(2025, 3, 10, 6, 10, 0, 0, time.UTC),
	}, nil
}

func (s *stubLeases) Release(_ context.Context, tenantID, portfolioID uint64, requester string) error {
	s.gotTenant, s.gotPortfolio, s.gotHolder = tenantID, portfolioID, requester
	return s.err
}

func (s *stubLeases) ReleaseAllForUser(_ context.Context, tenantID uint64, holder string) (int64, error) {
	s.gotTenant, s.gotHolder = tenantID, holder
	return s.released, s.err
}

func (s *stubLeases) ListLive(_ context.Context, tenantID uint64) ([]model.LeaseView, error) {
	s.gotTenant = tenantID
	return s.items, s.err
}

// as authenticates every request as alice in tenant 3.
func as(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(middleware.CtxTenantID, uint64(3))
		c.Set(middleware.CtxUserID, "alice@example.com")
		return next(c)
	}
}

func leaseServer(svc LeaseService) *echo.Echo {
	e := echo.New()
	h := NewLeaseHandler(svc, logging.Discard())
	e.POST("/v1/portfolios/:id/lease", h.Acquire, as)
	e.DELETE("/v1/portfolios/:id/lease", h.Release, as)
	e.DELETE("/v1/leases/mine", h.ReleaseAll, as)
	e.GET("/v1/leases", h.List, as)
	e.GET("/anon/leases", h.List)
	return e
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAcquireHandler(t *testing.T) {
	svc := &stubLeases{}
	rec, body := do(leaseServer(svc), http.MethodPost, "/v1/portfolios/10/lease", `{"hour":5}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "res-1", body["id"])
	assert.Equal(t, "2025-03-10T06:10:00Z", body["expires_at"])
	assert.EqualValues(t, 3, svc.gotTenant)
	assert.EqualValues(t, 10, svc.gotPortfolio)
	assert.Equal(t, "alice@example.com", svc.gotHolder)
	assert.Equal(t, 5, svc.gotHour)
}

func TestAcquireHandlerBadInput(t *testing.T) {
	e := leaseServer(&stubLeases{})
	for _, tc := range []struct{ path, body string }{
		{"/v1/portfolios/abc/lease", `{"hour":5}`},
		{"/v1/portfolios/0/lease", `{"hour":5}`},
		{"/v1/portfolios/10/lease", `{}`},
		{"/v1/portfolios/10/lease", `{"hour":"five"}`},
	} {
		rec, _ := do(e, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.path, tc.body)
	}
}

func TestLeaseErrorMapping(t *testing.T) {
	locked := &lease.LeaseError{Kind: lease.ErrPortfolioAlreadyLocked, PortfolioID: 10, PortfolioName: "North", Holder: "bob@example.com", Hour: 5}
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{locked, http.StatusConflict, "portfolio_locked"},
		{&lease.LeaseError{Kind: lease.ErrAlreadyHoldingLease, PortfolioName: "South", Hour: 5}, http.StatusConflict, "already_holding_lease"},
		{&lease.LeaseError{Kind: lease.ErrNotLeaseHolder, Holder: "bob@example.com"}, http.StatusForbidden, "not_lease_holder"},
		{lease.ErrNotLocked, http.StatusNotFound, "not_locked"},
		{lease.ErrPortfolioNotFound, http.StatusNotFound, "portfolio_not_found"},
		{lease.ErrInvalidHour, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("%w: insert: %w", lease.ErrStoreUnavailable, errors.New("conn reset")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rec, body := do(leaseServer(&stubLeases{err: tt.err}), http.MethodPost, "/v1/portfolios/10/lease", `{"hour":5}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.kind, body["error"])
		})
	}

	_, body := do(leaseServer(&stubLeases{err: locked}), http.MethodPost, "/v1/portfolios/10/lease", `{"hour":5}`)
	assert.Equal(t, "bob@example.com", body["holder"])
	assert.Equal(t, "North", body["portfolio_name"])
	assert.EqualValues(t, 5, body["hour"])

	_, body = do(leaseServer(&stubLeases{err: errors.New("dsn secret leaked")}), http.MethodGet, "/v1/leases", "")
	assert.NotContains(t, body["message"], "secret")
}

func TestReleaseHandlers(t *testing.T) {
	svc := &stubLeases{released: 2}
	e := leaseServer(svc)

	rec, body := do(e, http.MethodDelete, "/v1/portfolios/10/lease", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["released"])

	rec, body = do(e, http.MethodDelete, "/v1/leases/mine", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["released"])
	assert.Equal(t, "alice@example.com", svc.gotHolder)

	rec, _ = do(leaseServer(&stubLeases{err: lease.ErrNotLocked}), http.MethodDelete, "/v1/portfolios/10/lease", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHandler(t *testing.T) {
	svc := &stubLeases{items: []model.LeaseView{{
		Reservation:   model.Reservation{ID: "r1", PortfolioID: 10, Hour: 5, Holder: "bob@example.com"},
		PortfolioName: "North",
	}}}
	rec, body := do(leaseServer(svc), http.MethodGet, "/v1/leases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "North", item["portfolio_name"])
	assert.Equal(t, "bob@example.com", item["holder"])
	assert.NotContains(t, item, "session_token")

	rec, _ = do(leaseServer(svc), http.MethodGet, "/anon/leases", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubIssues struct {
	err     error
	checked uint64
}

func (s *stubIssues) Create(_ context.Context, tenantID, portfolioID uint64, author string, hour int, description string) (*model.Issue, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Issue{ID: 1, TenantID: tenantID, PortfolioID: portfolioID, Hour: hour, Author: author, Description: description}, nil
}

func (s *stubIssues) MarkAllSitesChecked(_ context.Context, _, portfolioID uint64, _ string) error {
	s.checked = portfolioID
	return s.err
}

func issueServer(svc IssueService) *echo.Echo {
	e := echo.New()
	h := NewIssueHandler(svc, logging.Discard())
	e.POST("/v1/portfolios/:id/issues", h.Create, as)
	e.POST("/v1/portfolios/:id/checked", h.MarkChecked, as)
	return e
}

func TestIssueHandlers(t *testing.T) {
	svc := &stubIssues{}
	rec, body := do(issueServer(svc), http.MethodPost, "/v1/portfolios/10/issues", `{"hour":5,"description":"loose cable"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice@example.com", body["author"])

	rec, body = do(issueServer(svc), http.MethodPost, "/v1/portfolios/10/checked", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Yes", body["all_sites_checked"])
	assert.EqualValues(t, 10, svc.checked)
}

func TestIssueErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{&issue.LockedError{Kind: issue.ErrLockedByOther, Holder: "bob@example.com"}, http.StatusConflict, "locked_by_other"},
		{&issue.LockedError{Kind: issue.ErrFinishCurrentLock, PortfolioName: "South"}, http.StatusConflict, "finish_current_lock"},
		{issue.ErrInvalidHour, http.StatusBadRequest, "invalid_request"},
		{issue.ErrPortfolioNotFound, http.StatusNotFound, "portfolio_not_found"},
		{lease.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		rec, body := do(issueServer(&stubIssues{err: tt.err}), http.MethodPost, "/v1/portfolios/10/issues", `{"hour":5,"description":"x"}`)
		assert.Equal(t, tt.code, rec.Code, tt.kind)
		assert.Equal(t, tt.kind, body["error"])
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/readyz", Ready(pinger{}))
	e.GET("/down", Ready(pinger{err: errors.New("no db")}))

	rec, _ := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, "ok", rec.Body.String())
	rec, _ = do(e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(e, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubSweeper struct {
	res   lease.SweepResult
	calls int
}

func (s *stubSweeper) SweepOnce(context.Context) lease.SweepResult {
	s.calls++
	return s.res
}

func TestAdminSweep(t *testing.T) {
	tests := []struct {
		name   string
		res    lease.SweepResult
		status int
		body   string
	}{
		{"ok", lease.SweepResult{Expired: 2, RolledOver: 1}, http.StatusOK, `{"expired":2,"rolled_over":1}`},
		{"partial failure", lease.SweepResult{RolledOver: 1, Err: lease.ErrStoreUnavailable}, http.StatusServiceUnavailable,
			`{"expired":0,"rolled_over":1,"error":"store_unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &stubSweeper{res: tt.res}
			e := echo.New()
			e.POST("/v1/admin/sweep", NewAdminHandler(sw, logging.Discard()).Sweep, as)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/sweep", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			assert.Equal(t, 1, sw.calls)
		})
	}
}
