package handler

import (
	"net/http"

	"teamup/internal/access"
	"teamup/internal/bookings/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	guard   *access.Guard
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, guard *access.Guard, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	booking, err := h.service.GetByID(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListMine(r.Context(), principal, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WriteList(w, bookings, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListMine", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) ListForCoach(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForCoach", err)
		return
	}

	bookings, total, err := h.service.ListForCoach(r.Context(), principal, r.URL.Query().Get("coachId"), limit, offset)
	if err != nil {
		h.writeError(w, "ListForCoach", err)
		return
	}

	if err := httputil.WriteList(w, bookings, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListForCoach", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.BookingStatusUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), principal, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Rate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var rating model.BookingRating
	if err := httputil.DecodeJSON(r, &rating, false); err != nil {
		h.writeError(w, "Rate", err)
		return
	}

	booking, err := h.service.Rate(r.Context(), principal, ps.ByName("id"), &rating)
	if err != nil {
		h.writeError(w, "Rate", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Rate", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.guard.Require(access.BookingCreate, h.Create))
	router.GET("/api/v1/bookings/user", h.guard.Require(access.BookingRead, h.ListMine))
	router.GET("/api/v1/bookings/coach", h.guard.Require(access.BookingListForCoach, h.ListForCoach))
	router.GET("/api/v1/bookings/id/:id", h.guard.Require(access.BookingRead, h.GetByID))
	router.PUT("/api/v1/bookings/id/:id/status", h.guard.Require(access.BookingUpdateStatus, h.UpdateStatus))
	router.POST("/api/v1/bookings/id/:id/rate", h.guard.Require(access.BookingRate, h.Rate))
}
