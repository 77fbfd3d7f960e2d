package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are connection-scoped request headers that handlers never see.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that adds security headers
// and strips hop-by-hop headers from requests.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			// Set before the handler so they are part of the written header.
			res := c.Response().Header()
			res.Set(echo.HeaderXContentTypeOptions, "nosniff")
			res.Set(echo.HeaderXFrameOptions, "DENY")
			res.Set(echo.HeaderReferrerPolicy, "no-referrer")

			return next(c)
		}
	}
}
