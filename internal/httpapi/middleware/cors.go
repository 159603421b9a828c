package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wifientist/rtools2-sub002/internal/platform/envutil"
)

// CORS reads a comma-separated allow-list from HTTP_CORS_ORIGINS (empty
// disables CORS entirely, the safe default for a service meant to sit
// behind the same origin as its operator UI). Grounded on the teacher's
// internal/http/middleware/cors.go, generalized from a hardcoded dev
// origin list to an env-driven one since this Brain has no fixed frontend
// origin the way the teacher's course-gen UI did.
func CORS() gin.HandlerFunc {
	origins := envutil.String("HTTP_CORS_ORIGINS", "")
	if origins == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cors.Config{
		AllowOrigins:     splitCSV(origins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
