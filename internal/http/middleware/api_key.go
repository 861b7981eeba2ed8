package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const clientIDKey = "client_id"

// ClientIDFromCtx returns the caller id set by APIKeyMiddleware: a short
// digest of the key, never the key itself.
func ClientIDFromCtx(c echo.Context) (string, bool) {
	id, ok := c.Get(clientIDKey).(string)
	return id, ok && id != ""
}

// APIKeyMiddleware authenticates requests with the X-API-Key header against
// a static key list. An empty list disables auth (local development).
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				c.Set(clientIDKey, "anonymous")
				return next(c)
			}
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			for _, a := range allowed {
				if subtle.ConstantTimeCompare(a, []byte(key)) == 1 {
					sum := sha256.Sum256(a)
					c.Set(clientIDKey, hex.EncodeToString(sum[:6]))
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		}
	}
}

// WebhookSecretMiddleware guards provider callbacks with a shared secret in
// X-Webhook-Secret. No secret configured means the route is open.
func WebhookSecretMiddleware(secret string) echo.MiddlewareFunc {
	want := []byte(strings.TrimSpace(secret))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(want) == 0 {
				return next(c)
			}
			got := []byte(c.Request().Header.Get("X-Webhook-Secret"))
			if subtle.ConstantTimeCompare(want, got) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
			}
			return next(c)
		}
	}
}
