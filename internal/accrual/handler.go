package accrual

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/transport"
	"github.com/hrcore/leave-management/pkg/logger"
)

type RunRequestDTO struct {
	Trigger   string `json:"trigger" validate:"required,oneof=monthly anniversary yearly"`
	PeriodKey string `json:"period_key" validate:"required"`
}

type Handler struct {
	*transport.BaseHandler
	Engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	lg := logger.L()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Engine:      engine,
	}
}

// Run triggers an accrual pass. HR and super admin only; the period key makes
// a repeated trigger harmless.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	role := employee.Role(actor.Role)
	if role != employee.RoleHR && role != employee.RoleSuperAdmin {
		h.WriteError(w, http.StatusForbidden, "only HR or super admin can trigger accrual")
		return
	}

	var dto RunRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.Engine.Run(r.Context(), Trigger(dto.Trigger), dto.PeriodKey)
	if err != nil {
		h.Logger.Error("Run: accrual run failed", "error", err, "trigger", dto.Trigger, "period_key", dto.PeriodKey)
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}
