package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-lease/internal/issue"
	"github.com/iliyamo/portfolio-lease/internal/lease"
	"github.com/iliyamo/portfolio-lease/internal/model"
)

// IssueService is what IssueHandler needs from *issue.Service.
type IssueService interface {
	Create(ctx context.Context, tenantID, portfolioID uint64, author string, hour int, description string) (*model.Issue, error)
	MarkAllSitesChecked(ctx context.Context, tenantID, portfolioID uint64, requester string) error
}

type IssueHandler struct {
	svc IssueService
	log *slog.Logger
}

func NewIssueHandler(svc IssueService, logger *slog.Logger) *IssueHandler {
	if svc == nil {
		panic("nil service passed to NewIssueHandler")
	}
	return &IssueHandler{svc: svc, log: logger.With("component", "issue-handler")}
}

type createIssueRequest struct {
	Hour        *int   `json:"hour"`
	Description string `json:"description"`
}

// Create handles POST /v1/portfolios/:id/issues.
func (h *IssueHandler) Create(c echo.Context) error {
	tenantID, author, err := caller(c)
	if err != nil {
		return unauthorized(c)
	}
	portfolioID, ok := portfolioParam(c)
	if !ok {
		return badPortfolioID(c)
	}
	var body createIssueRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Hour == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hour is required"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	is, err := h.svc.Create(ctx, tenantID, portfolioID, author, *body.Hour, body.Description)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, is)
}

// MarkChecked handles POST /v1/portfolios/:id/checked.
func (h *IssueHandler) MarkChecked(c echo.Context) error {
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
	if err := h.svc.MarkAllSitesChecked(ctx, tenantID, portfolioID, holder); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"portfolio_id": portfolioID, "all_sites_checked": "Yes"})
}

func (h *IssueHandler) fail(c echo.Context, err error) error {
	var le *issue.LockedError
	switch {
	case errors.As(err, &le):
		code := "locked_by_other"
		if errors.Is(err, issue.ErrFinishCurrentLock) {
			code = "finish_current_lock"
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":          code,
			"message":        err.Error(),
			"holder":         le.Holder,
			"portfolio_id":   le.PortfolioID,
			"portfolio_name": le.PortfolioName,
			"hour":           le.Hour,
		})
	case errors.Is(err, issue.ErrInvalidHour), errors.Is(err, issue.ErrEmptyDescription), errors.Is(err, issue.ErrInvalidAuthor):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, issue.ErrPortfolioNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "portfolio_not_found", "message": err.Error()})
	case errors.Is(err, lease.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.log.Error("issue request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store_unavailable", "message": "store unavailable, retry later"})
	}
	h.log.Error("issue request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal error"})
}
