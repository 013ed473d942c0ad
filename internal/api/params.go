package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	maxIDLen    = 255
	maxPageSize = 1000
	maxOffset   = 100_000
)

// proposalID reads :id, answering 400 when it is empty or oversized.
func proposalID(c *gin.Context) (string, bool) {
	id := c.Param("id")

	switch {
	case id == "":
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id must not be empty")
	case len(id) > maxIDLen:
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id exceeds maximum length of 255")
	default:
		return id, true
	}

	return "", false
}

// page reads ?limit and ?offset. Garbage falls back to the defaults and
// large values are clamped rather than rejected.
func page(c *gin.Context, defLimit int) (limit, offset int) {
	limit = defLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}

	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = min(v, maxOffset)
	}

	return limit, offset
}
