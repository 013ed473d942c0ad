package middleware

import "github.com/gin-gonic/gin"

// apiHeaders are set on every response. The API serves JSON only, so nothing
// may be framed, sniffed or cached, and responses vary with the acting party.
var apiHeaders = [][2]string{
	{"Cache-Control", "no-store"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Vary", ActorRoleHeader + ", " + ActorIDHeader},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
}

// SecurityHeaders sets apiHeaders before the handler runs.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range apiHeaders {
			h.Set(kv[0], kv[1])
		}

		c.Next()
	}
}
