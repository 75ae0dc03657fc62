// Package roles exposes role and grant administration over HTTP.
package roles

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// Auditor records who changed which grant.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *rbac.Service
	guard     rbac.Guard
	auditor   Auditor
	validator *validator.Validate
}

// NewHandler builds Handler instance. auditor may be nil.
func NewHandler(logger *slog.Logger, service *rbac.Service, guard rbac.Guard, auditor Auditor) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, auditor: auditor, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.Submenu(shared.SubmenuRoles)))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.Submenu(shared.SubmenuMenuGrants)))
		r.Get("/{id}/grants", h.listGrants)
		r.Post("/{id}/grants", h.createGrant)
		r.Delete("/{id}/grants/{kind}/{resourceID}", h.deleteGrant)
	})
}

type grantRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=menu submenu"`
	ResourceID int64  `json:"resource_id" validate:"required,gt=0"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.ListGrants(r.Context(), roleID)
	if err != nil {
		h.fail(w, "list grants", err)
		return
	}
	views := make([]rbac.GrantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, g.View())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": views})
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "kind must be menu or submenu and resource_id must be positive")
		return
	}
	res, err := rbac.ParseResource(req.Kind, req.ResourceID)
	if err != nil {
		h.fail(w, "parse grant", err)
		return
	}
	if err := h.service.Grant(r.Context(), roleID, res); err != nil {
		h.fail(w, "create grant", err)
		return
	}
	h.logger.Info("grant created", slog.Int64("role_id", roleID), slog.String("resource", res.String()))
	h.audit(r, "grant.create", roleID, res)
	httpx.JSON(w, http.StatusCreated, rbac.Grant{RoleID: roleID, Resource: res}.View())
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	resourceID, ok := pathID(w, r, "resourceID")
	if !ok {
		return
	}
	res, err := rbac.ParseResource(chi.URLParam(r, "kind"), resourceID)
	if err != nil {
		h.fail(w, "parse grant", err)
		return
	}
	if err := h.service.Revoke(r.Context(), roleID, res); err != nil {
		h.fail(w, "delete grant", err)
		return
	}
	h.logger.Info("grant revoked", slog.Int64("role_id", roleID), slog.String("resource", res.String()))
	h.audit(r, "grant.delete", roleID, res)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) audit(r *http.Request, action string, roleID int64, res rbac.Resource) {
	if h.auditor == nil {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	entry := shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     map[string]any{"kind": string(res.Kind()), "resource_id": res.ID()},
	}
	if err := h.auditor.Record(r.Context(), entry); err != nil {
		h.logger.Warn("audit grant change", slog.String("action", action), slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Message(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
