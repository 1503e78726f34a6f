package handler

import (
	"net/http"

	"teamup/internal/access"
	"teamup/internal/users/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	guard   *access.Guard
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, guard *access.Guard, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *UserHandler) respond(w http.ResponseWriter, handler string, status int, user *model.User, err error) {
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	write := httputil.WriteSuccess
	if status == http.StatusCreated {
		write = httputil.WriteCreated
	}
	if err := write(w, user); err != nil {
		h.log.Error("failed to write response", "handler", handler, "error", err)
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	user, err := h.service.Me(r.Context(), principal)
	h.respond(w, "Me", http.StatusOK, user, err)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	user, err := h.service.GetByID(r.Context(), principal, ps.ByName("id"))
	h.respond(w, "GetByID", http.StatusOK, user, err)
}

func (h *UserHandler) Provision(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.UserProvisionRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "Provision", 0, nil, err)
		return
	}

	user, err := h.service.Provision(r.Context(), principal, &req)
	h.respond(w, "Provision", http.StatusCreated, user, err)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.UserRoleUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.respond(w, "UpdateRole", 0, nil, err)
		return
	}

	user, err := h.service.UpdateRole(r.Context(), principal, ps.ByName("id"), &update)
	h.respond(w, "UpdateRole", http.StatusOK, user, err)
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.UserActiveUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.respond(w, "SetActive", 0, nil, err)
		return
	}

	user, err := h.service.SetActive(r.Context(), principal, ps.ByName("id"), &update)
	h.respond(w, "SetActive", http.StatusOK, user, err)
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/users/me", h.guard.Require(access.UserReadSelf, h.Me))
	router.POST("/api/v1/users", h.guard.Require(access.UserProvision, h.Provision))
	router.GET("/api/v1/users/id/:id", h.guard.Require(access.UserManage, h.GetByID))
	router.PUT("/api/v1/users/id/:id/role", h.guard.Require(access.UserManage, h.UpdateRole))
	router.PUT("/api/v1/users/id/:id/active", h.guard.Require(access.UserManage, h.SetActive))
}
