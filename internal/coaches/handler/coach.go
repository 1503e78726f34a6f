package handler

import (
	"net/http"
	"strconv"
	"strings"

	"teamup/internal/access"
	"teamup/internal/coaches/service"
	"teamup/pkg/auth"
	apperrors "teamup/pkg/errors"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

type CoachHandler struct {
	service service.CoachService
	guard   *access.Guard
	log     *logger.Logger
}

func NewCoachHandler(service service.CoachService, guard *access.Guard, log *logger.Logger) *CoachHandler {
	return &CoachHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *CoachHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CoachHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.CoachRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	coach, err := h.service.Create(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, coach); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *CoachHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	coach, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, coach); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CoachHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}
	q := r.URL.Query()

	filter := model.CoachFilter{Specialty: strings.TrimSpace(q.Get("specialty"))}
	if v := q.Get("min_experience"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, "GetAll", apperrors.InvalidInput("min_experience must be a number"))
			return
		}
		filter.MinExperience = n
	}
	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			h.writeError(w, "GetAll", apperrors.InvalidInput("max_price must be a decimal amount"))
			return
		}
		price := model.NewMoney(d)
		filter.MaxHourlyRate = &price
	}

	coaches, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WriteList(w, coaches, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", "GetAll", "operation", "WriteList", "error", err)
	}
}

func (h *CoachHandler) Nearby(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.NearbyCoachRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Nearby", err)
		return
	}

	coaches, err := h.service.Nearby(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Nearby", err)
		return
	}

	if err := httputil.WriteList(w, coaches, len(coaches)); err != nil {
		h.log.Error("failed to write list response", "handler", "Nearby", "operation", "WriteList", "error", err)
	}
}

func (h *CoachHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.CoachUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	coach, err := h.service.Update(r.Context(), principal, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, coach); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CoachHandler) GetSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	schedule, err := h.service.GetSchedule(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, schedule); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CoachHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.AvailabilityUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "UpdateSchedule", err)
		return
	}

	coach, err := h.service.UpdateSchedule(r.Context(), principal, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "UpdateSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, coach); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CoachHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/coaches", h.guard.Require(access.CoachCreate, h.Create))
	router.GET("/api/v1/coaches", h.GetAll)
	router.POST("/api/v1/coaches/nearby", h.Nearby)
	router.GET("/api/v1/coaches/id/:id", h.GetByID)
	router.PUT("/api/v1/coaches/id/:id", h.guard.Require(access.CoachUpdate, h.Update))
	router.GET("/api/v1/coaches/id/:id/schedule", h.GetSchedule)
	router.PUT("/api/v1/coaches/id/:id/schedule", h.guard.Require(access.CoachUpdateSchedule, h.UpdateSchedule))
}
