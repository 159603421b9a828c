package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/platform/ctxutil"
)

// AttachRequestContext stamps a trace id (the inbound X-Request-Id header,
// or a freshly minted one) onto both the gin context, for
// response.RespondError's envelope, and the request's context.Context, for
// any handler/executor code below gin that wants it via ctxutil. Grounded
// on the teacher's internal/http/middleware/request_context.go, generalized
// from the teacher's SSE-session-only attachment since this Brain's trace
// id is useful on every request, not just the SSE path.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Set("request_id", traceID)

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: traceID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-Id", traceID)
		c.Next()
	}
}
