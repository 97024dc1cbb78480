package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"   // holder email (sub claim)
	CtxTenantID = "tenant_id" // uint64
	CtxRole     = "role"
)

// JWTAuth validates an HS256 Bearer token and stores the caller's email,
// tenant and role in the context.  Tokens without a subject or a positive
// tenant_id claim are rejected: every lease operation is tenant scoped.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			sub, _ := claims["sub"].(string)
			sub = strings.ToLower(strings.TrimSpace(sub))
			tenant, ok := tenantClaim(claims["tenant_id"])
			if sub == "" || !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(CtxUserID, sub)
			c.Set(CtxTenantID, tenant)
			c.Set(CtxRole, claims["role"])
			return next(c)
		}
	}
}

// JSON numbers decode as float64 in MapClaims.
func tenantClaim(v any) (uint64, bool) {
	f, ok := v.(float64)
	if !ok || f < 1 || f != float64(uint64(f)) {
		return 0, false
	}
	return uint64(f), true
}
