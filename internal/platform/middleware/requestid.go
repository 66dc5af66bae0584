package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/labstack/echo/v4"
)

const requestIDKey = "request_id"

// GetRequestID returns the id assigned by RequestID, or "" outside it.
func GetRequestID(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}

// RequestID tags every request with a random id, exposed to handlers via
// GetRequestID and echoed back in the X-Request-Id header. An id supplied
// by the client is reused so upstream proxies can correlate logs.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get("X-Request-Id")
			if rid == "" {
				var buf [16]byte
				if _, err := rand.Read(buf[:]); err == nil {
					rid = hex.EncodeToString(buf[:])
				}
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set("X-Request-Id", rid)
			return next(c)
		}
	}
}
