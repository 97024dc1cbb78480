package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-lease/internal/lease"
)

// Sweeper runs one reclaimer pass on demand.
type Sweeper interface {
	SweepOnce(ctx context.Context) lease.SweepResult
}

// AdminHandler serves operator endpoints.  Routes are expected to sit
// behind middleware.RequireRole("admin").
type AdminHandler struct {
	sweeper Sweeper
	log     *slog.Logger
}

func NewAdminHandler(sweeper Sweeper, logger *slog.Logger) *AdminHandler {
	if sweeper == nil {
		panic("nil sweeper passed to NewAdminHandler")
	}
	return &AdminHandler{sweeper: sweeper, log: logger.With("component", "admin-handler")}
}

// Sweep handles POST /v1/admin/sweep.  Counts are reported even when one
// of the two deletions failed.
func (h *AdminHandler) Sweep(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	res := h.sweeper.SweepOnce(ctx)

	body := echo.Map{"expired": res.Expired, "rolled_over": res.RolledOver}
	if res.Err != nil {
		h.log.Error("manual sweep failed", "error", res.Err)
		body["error"] = "store_unavailable"
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	// Caller identity for the audit trail
	_, by, _ := caller(c)
	h.log.Info("manual sweep", "by", by, "expired", res.Expired, "rolled_over", res.RolledOver)
	return c.JSON(http.StatusOK, body)
}
