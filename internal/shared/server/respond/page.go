package respond

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxPageLimit caps the limit query parameter on list endpoints.
const MaxPageLimit = 100

// PageParams reads page and limit, writing a 400 when either is out of range.
// The caller must return when ok is false.
func PageParams(c *gin.Context, defaultLimit int) (page, limit int, ok bool) {
	page, limit = 1, defaultLimit
	var msgs []string
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			msgs = append(msgs, "Page must be a number")
		case v < 1:
			msgs = append(msgs, "Page must be at least 1")
		default:
			page = v
		}
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			msgs = append(msgs, "Limit must be a number")
		case v < 1:
			msgs = append(msgs, "Limit must be at least 1")
		case v > MaxPageLimit:
			msgs = append(msgs, "Limit must not exceed 100")
		default:
			limit = v
		}
	}
	if len(msgs) > 0 {
		Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": msgs})
		return 0, 0, false
	}
	return page, limit, true
}
