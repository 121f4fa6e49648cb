package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/models"
)

// CallerKey is the gin context key holding the API key a request was
// admitted with. RateLimiter buckets by it.
const CallerKey = "aliscout.caller"

// Auth admits requests carrying one of apiKeys, either as
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// Keys are compared in constant time. With no keys configured every
// request passes.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := presentedKey(c.Request)
		switch {
		case key == "":
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
		case !knownKey(keys, key):
			unauthorized(c, "invalid API key")
		default:
			c.Set(CallerKey, key)
			c.Next()
		}
	}
}

// presentedKey reads X-API-Key, then a Bearer authorization. The scheme
// name is case-insensitive.
func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// knownKey checks every key so the time taken does not reveal which one
// came close.
func knownKey(keys [][]byte, key string) bool {
	presented := []byte(key)
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(k, presented)
	}
	return match == 1
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}
