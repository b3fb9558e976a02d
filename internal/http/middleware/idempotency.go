// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of create requests. A key
// is scoped by the acting role and the request (method + path), so the same
// key sent to two different endpoints never collides. When the lookup finds
// a stored, unexpired result the request is flagged as a replay; handlers
// then answer with the resource created the first time instead of creating
// it again, and the rate limiter lets the replay through for free.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyIdemResult = "idem.resource"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now is the time source handed to the lookup; nil means time.Now.
	Now func() time.Time
}

// IdempotencyLookup returns the ID of the resource created earlier under
// (actor, scope, key), or "" when there is none (or it expired at now).
// Errors are treated as "no replay".
type IdempotencyLookup func(ctx context.Context, actor, scope, key string, now time.Time) (resourceID string, err error)

// IdempotencyScope names the operation a key belongs to.
func IdempotencyScope(c *gin.Context) string {
	return c.Request.Method + " " + c.Request.URL.Path
}

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already used for this operation.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyIdemReplay)
	b, _ := v.(bool)
	return b
}

// ReplayedResource returns the resource ID recorded for a replayed key.
func ReplayedResource(c *gin.Context) string {
	v, _ := c.Get(ctxKeyIdemResult)
	return asString(v)
}

// IdempotencyValidator checks the Idempotency-Key header of POST requests.
// Requests without the header pass untouched; a malformed key is rejected
// with 400; a known key marks the request as a replay.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			id, err := lookup(c.Request.Context(), RoleFrom(c), IdempotencyScope(c), key, now().UTC())
			if err == nil && id != "" {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemResult, id)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
