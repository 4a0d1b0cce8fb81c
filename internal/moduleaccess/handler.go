package moduleaccess

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/transport"
	"github.com/hrcore/leave-management/pkg/logger"
)

type MemberDTO struct {
	EmployeeID int64 `json:"employee_id" validate:"required"`
}

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(service *Service) *Handler {
	lg := logger.L()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (internal.Actor, bool) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return internal.Actor{}, false
	}
	role := employee.Role(actor.Role)
	if role != employee.RoleHR && role != employee.RoleSuperAdmin {
		h.WriteError(w, http.StatusForbidden, "only HR or super admin can manage module access")
		return internal.Actor{}, false
	}
	return actor, true
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r)
	if !ok {
		return
	}

	moduleCode := chi.URLParam(r, "module")
	var dto MemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.EmployeeID <= 0 {
		h.WriteError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	if err := h.Service.Grant(r.Context(), moduleCode, dto.EmployeeID, actor.ID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r)
	if !ok {
		return
	}

	moduleCode := chi.URLParam(r, "module")
	var dto MemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.EmployeeID <= 0 {
		h.WriteError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	if err := h.Service.Revoke(r.Context(), moduleCode, dto.EmployeeID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r)
	if !ok {
		return
	}

	members, err := h.Service.Members(r.Context(), chi.URLParam(r, "module"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}
