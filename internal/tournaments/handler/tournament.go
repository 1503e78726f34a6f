package handler

import (
	"net/http"
	"strings"

	"teamup/internal/access"
	"teamup/internal/tournaments/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TournamentHandler struct {
	service service.TournamentService
	guard   *access.Guard
	log     *logger.Logger
}

func NewTournamentHandler(service service.TournamentService, guard *access.Guard, log *logger.Logger) *TournamentHandler {
	return &TournamentHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *TournamentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.TournamentRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	tournament, err := h.service.Create(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, tournament); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tournament, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, tournament); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TournamentHandler) RegisterTeam(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.TournamentRegistrationRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "RegisterTeam", err)
		return
	}

	tournament, err := h.service.RegisterTeam(r.Context(), principal, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "RegisterTeam", err)
		return
	}

	if err := httputil.WriteSuccess(w, tournament); err != nil {
		h.log.Error("failed to write success response", "handler", "RegisterTeam", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TournamentHandler) UpdateTeamStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.RegistrationStatusUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "UpdateTeamStatus", err)
		return
	}

	tournament, err := h.service.UpdateTeamStatus(r.Context(), principal, ps.ByName("id"), ps.ByName("teamId"), &update)
	if err != nil {
		h.writeError(w, "UpdateTeamStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, tournament); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateTeamStatus", "operation", "WriteSuccess", "error", err)
	}
}

// list serves both listing routes; search requires the q parameter.
func (h *TournamentHandler) list(search bool) httprouter.Handle {
	handler := "GetAll"
	fetch := h.service.List
	if search {
		handler, fetch = "Search", h.service.Search
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit, offset, err := httputil.ExtractLimitOffset(r)
		if err != nil {
			h.writeError(w, handler, err)
			return
		}

		q := r.URL.Query()
		filter := model.TournamentFilter{
			Query: q.Get("q"),
			Sport: strings.TrimSpace(q.Get("sport")),
			Phase: strings.TrimSpace(q.Get("status")),
		}
		tournaments, total, err := fetch(r.Context(), filter, limit, offset)
		if err != nil {
			h.writeError(w, handler, err)
			return
		}

		if err := httputil.WriteList(w, tournaments, int(total)); err != nil {
			h.log.Error("failed to write list response", "handler", handler, "operation", "WriteList", "error", err)
		}
	}
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.TournamentUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	tournament, err := h.service.Update(r.Context(), principal, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, tournament); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	if err := h.service.Delete(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *TournamentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tournaments", h.guard.Require(access.TournamentCreate, h.Create))
	router.GET("/api/v1/tournaments", h.list(false))
	router.GET("/api/v1/tournaments/search", h.list(true))
	router.GET("/api/v1/tournaments/id/:id", h.GetByID)
	router.PUT("/api/v1/tournaments/id/:id", h.guard.Require(access.TournamentManage, h.Update))
	router.DELETE("/api/v1/tournaments/id/:id", h.guard.Require(access.TournamentManage, h.Delete))
	router.POST("/api/v1/tournaments/id/:id/register", h.guard.Require(access.TournamentRegister, h.RegisterTeam))
	router.PUT("/api/v1/tournaments/id/:id/teams/:teamId/status", h.guard.Require(access.TournamentManage, h.UpdateTeamStatus))
}
