// Package authmw is a boundary gate only: it verifies a bearer JWT names a
// user and attaches that user id to the request context. It is
// deliberately not a full auth flow (login, refresh, session revocation are
// Non-goals) — just enough for the rest of internal/httpapi to trust
// ctxutil.GetUserID.
//
// Grounded on the teacher's internal/http/middleware/auth.go for the
// bearer-extraction and abort-with-JSON shape, generalized from the
// teacher's opaque-session-token-plus-AuthService lookup to a self-
// contained JWT verify (github.com/golang-jwt/jwt/v5, already a teacher
// dependency) since this Brain has no session store of its own to look a
// token up against.
package authmw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wifientist/rtools2-sub002/internal/platform/ctxutil"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
)

// Middleware verifies bearer JWTs signed with a shared secret (HS256). A
// real multi-key/JWKS rotation scheme is out of scope for a boundary gate.
type Middleware struct {
	log    *logger.Logger
	secret []byte
}

func New(log *logger.Logger, secret []byte) *Middleware {
	return &Middleware{log: log.With("component", "authmw"), secret: secret}
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// RequireAuth aborts with 401 unless the request carries a valid bearer
// token whose subject (or user_id claim) parses as a uuid.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			m.deny(c, "missing bearer token")
			return
		}
		userID, err := m.verify(raw)
		if err != nil {
			m.log.Debug("authmw: token rejected", "error", err)
			m.deny(c, "invalid token")
			return
		}
		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (m *Middleware) verify(raw string) (uuid.UUID, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	subject := cl.UserID
	if subject == "" {
		subject = cl.Subject
	}
	return uuid.Parse(subject)
}

func (m *Middleware) deny(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": message, "code": "unauthorized"},
	})
}

func extractToken(c *gin.Context) string {
	if q := c.Query("token"); q != "" {
		return q
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
