package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Identity returns the tenant and holder email stored by JWTAuth.  ok is
// false on routes that were not authenticated.
func Identity(c echo.Context) (tenantID uint64, holder string, ok bool) {
	tenantID, tok := c.Get(CtxTenantID).(uint64)
	holder, hok := c.Get(CtxUserID).(string)
	if !tok || !hok || holder == "" {
		return 0, "", false
	}
	return tenantID, holder, true
}

// userID is the rate limiter's caller key: "<tenant>:<email>" or "guest".
func userID(c echo.Context) string {
	tenantID, holder, ok := Identity(c)
	if !ok {
		return "guest"
	}
	return strconv.FormatUint(tenantID, 10) + ":" + holder
}
