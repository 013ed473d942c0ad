package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONBody guards request bodies: a declared length over maxBytes is refused
// up front, a body of unknown length is cut off at maxBytes, and any
// non-empty body must be sent as application/json.
func JSONBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request

		if req.ContentLength > maxBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}

		if req.Body == nil || req.Body == http.NoBody || req.ContentLength == 0 {
			c.Next()
			return
		}

		if c.ContentType() != gin.MIMEJSON {
			respondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "request body must be application/json")
			return
		}

		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxBytes)
		c.Next()
	}
}
