package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ontorelease/internal/services"
)

// RespondServiceError maps the service sentinel errors onto status codes.
// Anything else is a 500 and is attached to the gin context for the request log.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrReleaseActive):
		RespondError(c, http.StatusConflict, "release_active", err)
	case errors.Is(err, services.ErrInvalidState):
		RespondError(c, http.StatusConflict, "invalid_state", err)
	case errors.Is(err, services.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	default:
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
