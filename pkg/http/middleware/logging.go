package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
)

// RequestLogging logs one line per request: error for 5xx, warn for 4xx and
// slow requests, debug for paths in quiet (probes, scrapes), info otherwise.
func RequestLogging(l *applogger.Logger, slow time.Duration, quiet ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			req := c.Request()
			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", GetRequestID(c)),
				applogger.Int("status", status),
				applogger.Duration("took", took),
			}
			switch {
			case status >= 500:
				l.Error("http request", fields...)
			case status >= 400 || (slow > 0 && took >= slow):
				l.Warn("http request", fields...)
			case skip[c.Path()]:
				l.Debug("http request", fields...)
			default:
				l.Info("http request", fields...)
			}
			return nil
		}
	}
}
