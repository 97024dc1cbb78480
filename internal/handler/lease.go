package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-lease/internal/lease"
	"github.com/iliyamo/portfolio-lease/internal/model"
)

// LeaseService is what LeaseHandler needs from *lease.Service.
type LeaseService interface {
	Acquire(ctx context.Context, tenantID, portfolioID uint64, holder string, hour int) (*model.Reservation, error)
	Release(ctx context.Context, tenantID, portfolioID uint64, requester string) error
	ReleaseAllForUser(ctx context.Context, tenantID uint64, holder string) (int64, error)
	ListLive(ctx context.Context, tenantID uint64) ([]model.LeaseView, error)
}

// LeaseHandler serves the lease endpoints.  Tenant and holder always come
// from the token, never from the request body.
type LeaseHandler struct {
	svc LeaseService
	log *slog.Logger
}

func NewLeaseHandler(svc LeaseService, logger *slog.Logger) *LeaseHandler {
	if svc == nil {
		panic("nil service passed to NewLeaseHandler")
	}
	return &LeaseHandler{svc: svc, log: logger.With("component", "lease-handler")}
}

type acquireRequest struct {
	Hour *int `json:"hour"`
}

// Acquire handles POST /v1/portfolios/:id/lease with body {"hour": 0-23}.
func (h *LeaseHandler) Acquire(c echo.Context) error {
	tenantID, holder, err := caller(c)
	if err != nil {
		return unauthorized(c)
	}
	portfolioID, ok := portfolioParam(c)
	if !ok {
		return badPortfolioID(c)
	}
	var body acquireRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Hour == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hour is required"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := h.svc.Acquire(ctx, tenantID, portfolioID, holder, *body.Hour)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":           res.ID,
		"portfolio_id": res.PortfolioID,
		"hour":         res.Hour,
		"expires_at":   res.ExpiresAt,
	})
}

// Release handles DELETE /v1/portfolios/:id/lease.
func (h *LeaseHandler) Release(c echo.Context) error {
	tenantID, holder, err := caller(c)
	if err != nil {
		return unauthorized(c)
	}
	portfolioID, ok := portfolioParam(c)
	if !ok {
		return badPortfolioID(c)
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.svc.Release(ctx, tenantID, portfolioID, holder); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// ReleaseAll handles DELETE /v1/leases/mine.
func (h *LeaseHandler) ReleaseAll(c echo.Context) error {
	tenantID, holder, err := caller(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	n, err := h.svc.ReleaseAllForUser(ctx, tenantID, holder)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// List handles GET /v1/leases.
func (h *LeaseHandler) List(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.svc.ListLive(ctx, tenantID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *LeaseHandler) fail(c echo.Context, err error) error {
	status, body := leaseErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("lease request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(status, body)
}

// leaseErrorResponse maps lease errors to a status and JSON body.
// Conflicts carry the holder, portfolio and hour that caused them.
func leaseErrorResponse(err error) (int, echo.Map) {
	body := echo.Map{"message": err.Error()}
	var le *lease.LeaseError
	if errors.As(err, &le) {
		body["portfolio_id"] = le.PortfolioID
		body["portfolio_name"] = le.PortfolioName
		body["hour"] = le.Hour
		if le.Holder != "" {
			body["holder"] = le.Holder
		}
	}

	var status int
	switch {
	case errors.Is(err, lease.ErrAlreadyHoldingLease):
		status, body["error"] = http.StatusConflict, "already_holding_lease"
	case errors.Is(err, lease.ErrPortfolioAlreadyLocked):
		status, body["error"] = http.StatusConflict, "portfolio_locked"
	case errors.Is(err, lease.ErrNotLeaseHolder):
		status, body["error"] = http.StatusForbidden, "not_lease_holder"
	case errors.Is(err, lease.ErrNotLocked):
		status, body["error"] = http.StatusNotFound, "not_locked"
	case errors.Is(err, lease.ErrPortfolioNotFound):
		status, body["error"] = http.StatusNotFound, "portfolio_not_found"
	case errors.Is(err, lease.ErrInvalidHour), errors.Is(err, lease.ErrInvalidHolder):
		status, body["error"] = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, lease.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		status, body["error"] = http.StatusServiceUnavailable, "store_unavailable"
		body["message"] = "lease store unavailable, retry later"
	default:
		status, body["error"] = http.StatusInternalServerError, "internal_error"
		body["message"] = "internal error"
	}
	return status, body
}
