package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

type registryResponse struct {
	Statuses    []lifecycle.Descriptor `json:"statuses"`
	Transitions []lifecycle.Edge       `json:"transitions"`
}

// Statuses handles GET /statuses and returns the static status registry.
func Statuses(c *gin.Context) {
	resp := registryResponse{
		Statuses:    make([]lifecycle.Descriptor, 0, len(models.AllStatuses)),
		Transitions: lifecycle.Edges(),
	}

	for _, s := range models.AllStatuses {
		if d, ok := lifecycle.Describe(s); ok {
			resp.Statuses = append(resp.Statuses, d)
		}
	}

	c.JSON(http.StatusOK, resp)
}
