package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// Context keys and headers carrying the caller's identity.
const (
	APIKeyKey = "api_key"
	ActorKey  = "actor"

	ActorRoleHeader     = "X-Actor-Role"
	ActorIDHeader       = "X-Actor-ID"
	ActorOverrideHeader = "X-Actor-Override"

	maxActorIDLen = 255
)

// Actor resolves the acting party from request headers. The upstream gateway
// is trusted to have authenticated the party; this service only checks shape.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := models.ParseRole(c.GetHeader(ActorRoleHeader))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_role", err.Error())
			return
		}

		id := strings.TrimSpace(c.GetHeader(ActorIDHeader))
		if len(id) > maxActorIDLen {
			respondError(c, http.StatusBadRequest, "invalid_request", models.ErrFieldTooLong("actor id", maxActorIDLen).Error())
			return
		}

		cmd := lifecycle.Command{
			Actor:    role,
			ActorID:  id,
			Override: role == models.RolePlatform && strings.EqualFold(c.GetHeader(ActorOverrideHeader), "true"),
		}

		c.Set(ActorKey, cmd)
		c.Next()
	}
}

// CommandFrom returns the command stored by Actor.
func CommandFrom(c *gin.Context) (lifecycle.Command, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return lifecycle.Command{}, false
	}

	cmd, ok := v.(lifecycle.Command)

	return cmd, ok
}
