package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/http/middleware"
)

// HeaderReplayed marks a response served from an earlier request with the
// same Idempotency-Key.
const HeaderReplayed = "Idempotency-Replayed"

// replay answers a replayed create with the resource it produced the first
// time. It reports false when the request is not a replay or the resource
// is gone, in which case the handler proceeds normally.
func replay(c *gin.Context, load func(id string) (any, error)) bool {
	if !middleware.IsReplay(c) {
		return false
	}
	prev, err := load(middleware.ReplayedResource(c))
	if err != nil {
		return false
	}
	c.Header(HeaderReplayed, "true")
	ok(c, http.StatusOK, prev)
	return true
}

// remember stores the key of a successful create. Failures are logged only.
func (h *Handlers) remember(c *gin.Context, resourceID string, status int) {
	if h.svc.Idempotency == nil {
		return
	}
	key, has := middleware.GetIdempotencyKey(c)
	if !has {
		return
	}
	err := h.svc.Idempotency.Remember(c.Request.Context(), middleware.RoleFrom(c),
		middleware.IdempotencyScope(c), key, resourceID, status)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency store failed")
	}
}
