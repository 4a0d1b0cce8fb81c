package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.L()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Error("http error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// WriteAppError writes a structured AppError response.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *internal.AppError) {
	h.Logger.Error("http error",
		"status", appErr.StatusCode,
		"code", appErr.Code,
		"message", appErr.Message,
		"cause", appErr.Cause)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr}); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// HandleServiceError maps service-layer errors onto HTTP responses: structured
// domain errors get their taxonomy code and status, AppErrors pass through,
// anything else is a 500 with the detail kept out of the response body.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteAppError(w, appErr)
		return
	}

	var (
		invalidRange  *internal.InvalidRangeError
		dateConflict  *internal.DateConflictError
		notice        *internal.InsufficientNoticeError
		policyMissing *internal.PolicyNotFoundError
		noBalance     *internal.InsufficientBalanceError
		exceeded      *internal.BalanceExceededError
		authority     *internal.InsufficientAuthorityError
		concurrent    *internal.ConcurrentModificationError
		locked        *internal.RequestLockedError
	)

	switch {
	case errors.As(err, &invalidRange):
		h.WriteAppError(w, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidRange))
	case errors.As(err, &dateConflict):
		h.WriteAppError(w, internal.NewConflictError(err.Error(), internal.ErrCodeDateConflict))
	case errors.As(err, &notice):
		h.WriteAppError(w, internal.NewValidationError(err.Error(), internal.ErrCodeInsufficientNotice))
	case errors.As(err, &policyMissing):
		h.WriteAppError(w, internal.NewNotFoundError(err.Error(), internal.ErrCodePolicyNotFound))
	case errors.As(err, &noBalance):
		h.WriteAppError(w, internal.NewConflictError(err.Error(), internal.ErrCodeInsufficientBalance))
	case errors.As(err, &exceeded):
		h.WriteAppError(w, internal.NewConflictError(err.Error(), internal.ErrCodeBalanceExceeded))
	case errors.As(err, &authority):
		h.WriteAppError(w, internal.NewForbiddenError(err.Error(), internal.ErrCodeInsufficientAuthority))
	case errors.As(err, &concurrent):
		h.WriteAppError(w, internal.NewConflictError(err.Error(), internal.ErrCodeConcurrentModification))
	case errors.As(err, &locked):
		h.WriteAppError(w, internal.NewConflictError(err.Error(), internal.ErrCodeRequestLocked))
	default:
		h.Logger.Error("unhandled service error", "error", err)
		h.WriteAppError(w, internal.NewInternalError("internal server error", err))
	}
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
