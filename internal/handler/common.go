package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-lease/internal/middleware"
)

// requestTimeout bounds every store round-trip made on behalf of a request.
const requestTimeout = 5 * time.Second

var errUnauthorized = errors.New("unauthorized")

// caller returns the tenant and holder email placed in the context by
// middleware.JWTAuth.
func caller(c echo.Context) (uint64, string, error) {
	tenantID, holder, ok := middleware.Identity(c)
	if !ok {
		return 0, "", errUnauthorized
	}
	return tenantID, holder, nil
}

func portfolioParam(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badPortfolioID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid portfolio id"})
}
