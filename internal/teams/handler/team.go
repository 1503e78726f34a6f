package handler

import (
	"net/http"
	"strings"

	"teamup/internal/access"
	"teamup/internal/teams/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TeamHandler struct {
	service service.TeamService
	guard   *access.Guard
	log     *logger.Logger
}

func NewTeamHandler(service service.TeamService, guard *access.Guard, log *logger.Logger) *TeamHandler {
	return &TeamHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *TeamHandler) respond(w http.ResponseWriter, handler string, status int, team *model.Team, err error) {
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
	if err := write(w, team); err != nil {
		h.log.Error("failed to write response", "handler", handler, "error", err)
	}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.TeamRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "Create", 0, nil, err)
		return
	}

	team, err := h.service.Create(r.Context(), principal, &req)
	h.respond(w, "Create", http.StatusCreated, team, err)
}

func (h *TeamHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	team, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	h.respond(w, "GetByID", http.StatusOK, team, err)
}

func (h *TeamHandler) AddPlayer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.TeamPlayerRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "AddPlayer", 0, nil, err)
		return
	}

	team, err := h.service.AddPlayer(r.Context(), principal, ps.ByName("id"), &req)
	h.respond(w, "AddPlayer", http.StatusOK, team, err)
}

func (h *TeamHandler) RemovePlayer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	team, err := h.service.RemovePlayer(r.Context(), principal, ps.ByName("id"), ps.ByName("userId"))
	h.respond(w, "RemovePlayer", http.StatusOK, team, err)
}

func (h *TeamHandler) UpdatePlayerRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.TeamRoleUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.respond(w, "UpdatePlayerRole", 0, nil, err)
		return
	}

	team, err := h.service.UpdatePlayerRole(r.Context(), principal, ps.ByName("id"), ps.ByName("userId"), &update)
	h.respond(w, "UpdatePlayerRole", http.StatusOK, team, err)
}

func (h *TeamHandler) writeList(w http.ResponseWriter, handler string, teams []*model.Team, total int64, err error) {
	if err != nil {
		h.respond(w, handler, 0, nil, err)
		return
	}
	if err := httputil.WriteList(w, teams, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", handler, "operation", "WriteList", "error", err)
	}
}

func (h *TeamHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.respond(w, "GetAll", 0, nil, err)
		return
	}

	filter := model.TeamFilter{Sport: strings.TrimSpace(r.URL.Query().Get("sport"))}
	teams, total, err := h.service.List(r.Context(), filter, limit, offset)
	h.writeList(w, "GetAll", teams, total, err)
}

func (h *TeamHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.respond(w, "Search", 0, nil, err)
		return
	}

	q := r.URL.Query()
	filter := model.TeamFilter{Query: q.Get("q"), Sport: strings.TrimSpace(q.Get("sport"))}
	teams, total, err := h.service.Search(r.Context(), filter, limit, offset)
	h.writeList(w, "Search", teams, total, err)
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.TeamUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.respond(w, "Update", 0, nil, err)
		return
	}

	team, err := h.service.Update(r.Context(), principal, ps.ByName("id"), &update)
	h.respond(w, "Update", http.StatusOK, team, err)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	if err := h.service.Delete(r.Context(), principal, ps.ByName("id")); err != nil {
		h.respond(w, "Delete", 0, nil, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *TeamHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/teams", h.guard.Require(access.TeamCreate, h.Create))
	router.GET("/api/v1/teams", h.GetAll)
	router.GET("/api/v1/teams/search", h.Search)
	router.GET("/api/v1/teams/id/:id", h.GetByID)
	router.PUT("/api/v1/teams/id/:id", h.guard.Require(access.TeamManage, h.Update))
	router.DELETE("/api/v1/teams/id/:id", h.guard.Require(access.TeamManage, h.Delete))
	router.POST("/api/v1/teams/id/:id/players", h.guard.Require(access.TeamManage, h.AddPlayer))
	router.DELETE("/api/v1/teams/id/:id/players/:userId", h.guard.Require(access.TeamManage, h.RemovePlayer))
	router.PUT("/api/v1/teams/id/:id/players/:userId/role", h.guard.Require(access.TeamManage, h.UpdatePlayerRole))
}
