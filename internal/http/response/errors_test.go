package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
)

func TestRespondServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"quota rejection", apperrors.Reject(apperrors.CodeQuotaExceeded, "over budget"), http.StatusTooManyRequests, "quota_exceeded"},
		{"capacity rejection", apperrors.Reject(apperrors.CodeEventFull, "full"), http.StatusConflict, "event_full"},
		{"transition rejection", apperrors.Reject(apperrors.CodeInvalidTransition, "no"), http.StatusConflict, "invalid_transition"},
		{"wrong responder", apperrors.Reject(apperrors.CodeNotInviteTarget, "no"), http.StatusForbidden, "not_invite_target"},
		{"messaging gate", apperrors.Reject(apperrors.CodeMessagingLocked, "locked"), http.StatusForbidden, "messaging_locked"},
		{"not found", fmt.Errorf("%w: connection", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid argument", fmt.Errorf("%w: bad", apperrors.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"exhausted retries", fmt.Errorf("give up: %w", apperrors.ErrConflict), http.StatusServiceUnavailable, "transient_conflict"},
		{"invariant violation", apperrors.Invariant("broken pair"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondServiceError(c, tc.err)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var env ErrorEnvelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if env.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", env.Error.Code, tc.wantCode)
			}
		})
	}
}
