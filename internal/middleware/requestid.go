package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns the canonical request ID. A gateway that already tagged
// the request with a UUID keeps its ID so logs line up across hops; anything
// else is replaced with a fresh UUID and logged at debug level.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		inbound := c.GetHeader(RequestIDHeader)

		var id string
		if parsed, err := uuid.Parse(inbound); err == nil {
			id = parsed.String()
		} else {
			id = uuid.NewString()

			if inbound != "" {
				log.WithFields(logrus.Fields{
					"request_id":          id,
					"rejected_inbound_id": inbound,
				}).Debug("inbound request id is not a uuid, replaced")
			}
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
