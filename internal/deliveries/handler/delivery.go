package handler

import (
	"net/http"
	"strings"

	"teamup/internal/access"
	"teamup/internal/deliveries/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type DeliveryHandler struct {
	service service.DeliveryService
	guard   *access.Guard
	log     *logger.Logger
}

func NewDeliveryHandler(service service.DeliveryService, guard *access.Guard, log *logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *DeliveryHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.DeliveryRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	delivery, err := h.service.Create(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, delivery); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.DeliveryTrackerUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	delivery, err := h.service.UpdateStatus(r.Context(), principal, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, delivery); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DeliveryHandler) Track(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tracking, err := h.service.Track(r.Context(), ps.ByName("trackingNumber"))
	if err != nil {
		h.writeError(w, "Track", err)
		return
	}

	if err := httputil.WriteSuccess(w, tracking); err != nil {
		h.log.Error("failed to write success response", "handler", "Track", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DeliveryHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	delivery, err := h.service.GetByID(r.Context(), principal, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, delivery); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DeliveryHandler) ListByOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	deliveries, err := h.service.ListByOrder(r.Context(), principal, ps.ByName("orderId"))
	if err != nil {
		h.writeError(w, "ListByOrder", err)
		return
	}

	if err := httputil.WriteList(w, deliveries, len(deliveries)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByOrder", "operation", "WriteList", "error", err)
	}
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	deliveries, total, err := h.service.List(r.Context(), principal, strings.TrimSpace(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteList(w, deliveries, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *DeliveryHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/deliveries", h.guard.Require(access.DeliveryCreate, h.Create))
	router.GET("/api/v1/deliveries", h.guard.Require(access.DeliveryList, h.List))
	router.PATCH("/api/v1/deliveries/id/:id/status", h.guard.Require(access.DeliveryUpdateStatus, h.UpdateStatus))
	router.GET("/api/v1/deliveries/track/:trackingNumber", h.Track)
	router.GET("/api/v1/deliveries/id/:id", h.guard.Require(access.DeliveryRead, h.GetByID))
	router.GET("/api/v1/deliveries/order/:orderId", h.guard.Require(access.DeliveryRead, h.ListByOrder))
}
