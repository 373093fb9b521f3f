package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
)

// RespondServiceError maps the service error taxonomy onto HTTP. Policy
// rejections keep their stable code in the envelope so clients can branch
// without parsing messages.
func RespondServiceError(c *gin.Context, err error) {
	if rej, ok := apperrors.AsRejection(err); ok {
		RespondError(c, rejectionStatus(rej.Code), rej.Code, rej)
		return
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperrors.ErrConflict):
		// Retries were already exhausted below; the client may try again.
		RespondError(c, http.StatusServiceUnavailable, "transient_conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}

func rejectionStatus(code string) int {
	switch code {
	case apperrors.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case apperrors.CodeNotInviteTarget, apperrors.CodeMessagingLocked:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}
