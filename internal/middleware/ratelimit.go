package middleware

import (
	"NewsVol/internal/service/ratelimit"
	xhttp "NewsVol/pkg/http"

	"github.com/labstack/echo/v4"
)

// RateLimit throttles requests per client IP. Paths in skip (such as the
// metrics endpoint) are never limited.
func RateLimit(l *ratelimit.Limiter, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}
