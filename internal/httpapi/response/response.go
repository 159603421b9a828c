// Package response is the gin JSON envelope the Brain's HTTP surface
// replies with, adapted from the teacher's internal/http/response package.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wifientist/rtools2-sub002/internal/platform/apierr"
)

type apiErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error     apiErrorBody `json:"error"`
	TraceID   string       `json:"trace_id,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// RespondError writes status/code/err as the envelope; trace/request ids
// come from gin keys set by middleware.AttachRequestContext.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, errorEnvelope{
		Error:     apiErrorBody{Message: msg, Code: code},
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}

// RespondAPIErr unwraps an *apierr.Error for its intended status/code, or
// falls back to 500/internal_error for anything else.
func RespondAPIErr(c *gin.Context, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	code := ae.Code
	if code == "" {
		code = "error"
	}
	RespondError(c, ae.Status, code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
