package balance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/transport"
	"github.com/hrcore/leave-management/pkg/logger"
)

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

// GetMine returns the acting employee's own balance view.
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.Service.GetBalance(r.Context(), actor.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// GetForEmployee returns another employee's balance view; deciding roles only.
func (h *Handler) GetForEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid employee ID")
		return
	}

	if employeeID != actor.ID && !employee.CanDecide(employee.Role(actor.Role)) {
		h.WriteError(w, http.StatusForbidden, "cannot view another employee's balance")
		return
	}

	view, err := h.Service.GetBalance(r.Context(), employeeID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}
