package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// MenusHandler exposes the navigation resource tree.
type MenusHandler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
}

// NewMenusHandler builds MenusHandler instance.
func NewMenusHandler(logger *slog.Logger, service *Service, guard Guard) *MenusHandler {
	return &MenusHandler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers menu routes.
func (h *MenusHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(Submenu(shared.SubmenuMenuGrants)))
		r.Get("/", h.listResources)
	})
}

func (h *MenusHandler) listResources(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.ListResources(r.Context())
	if err != nil {
		h.logger.Error("list menus", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if menus == nil {
		menus = []MenuNode{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"menus": menus})
}
