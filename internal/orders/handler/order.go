package handler

import (
	"context"
	"net/http"
	"strings"

	"teamup/internal/access"
	"teamup/internal/orders/service"
	"teamup/pkg/auth"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type OrderHandler struct {
	service service.OrderService
	guard   *access.Guard
	log     *logger.Logger
}

func NewOrderHandler(service service.OrderService, guard *access.Guard, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *OrderHandler) respond(w http.ResponseWriter, handler string, status int, order *model.Order, err error) {
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
	if err := write(w, order); err != nil {
		h.log.Error("failed to write response", "handler", handler, "error", err)
	}
}

// mutate decodes the request body into a fresh T and applies fn to the order
// named by the :id route parameter.
func mutate[T any](
	h *OrderHandler,
	handler string,
	allowEmpty bool,
	fn func(ctx context.Context, p *auth.Principal, id string, body *T) (*model.Order, error),
) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		principal, _ := auth.PrincipalFrom(r.Context())

		body := new(T)
		if err := httputil.DecodeJSON(r, body, allowEmpty); err != nil {
			h.respond(w, handler, 0, nil, err)
			return
		}

		order, err := fn(r.Context(), principal, ps.ByName("id"), body)
		h.respond(w, handler, http.StatusOK, order, err)
	}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.OrderRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "Create", 0, nil, err)
		return
	}

	order, err := h.service.Create(r.Context(), principal, &req)
	h.respond(w, "Create", http.StatusCreated, order, err)
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())
	order, err := h.service.GetByID(r.Context(), principal, ps.ByName("id"))
	h.respond(w, "GetByID", http.StatusOK, order, err)
}

// list pages through the orders returned by fetch.
func (h *OrderHandler) list(
	handler string,
	fetch func(ctx context.Context, p *auth.Principal, r *http.Request, limit int, offset int64) ([]*model.Order, int64, error),
) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		principal, _ := auth.PrincipalFrom(r.Context())

		limit, offset, err := httputil.ExtractLimitOffset(r)
		if err != nil {
			h.respond(w, handler, 0, nil, err)
			return
		}

		orders, total, err := fetch(r.Context(), principal, r, limit, offset)
		if err != nil {
			h.respond(w, handler, 0, nil, err)
			return
		}

		if err := httputil.WriteList(w, orders, int(total)); err != nil {
			h.log.Error("failed to write list response", "handler", handler, "operation", "WriteList", "error", err)
		}
	}
}

func (h *OrderHandler) ListMine(ctx context.Context, p *auth.Principal, _ *http.Request, limit int, offset int64) ([]*model.Order, int64, error) {
	return h.service.ListMine(ctx, p, limit, offset)
}

func (h *OrderHandler) ListForSeller(ctx context.Context, p *auth.Principal, r *http.Request, limit int, offset int64) ([]*model.Order, int64, error) {
	return h.service.ListForSeller(ctx, p, strings.TrimSpace(r.URL.Query().Get("seller_id")), limit, offset)
}

func (h *OrderHandler) ListAll(ctx context.Context, p *auth.Principal, r *http.Request, limit int, offset int64) ([]*model.Order, int64, error) {
	return h.service.ListAll(ctx, p, strings.TrimSpace(r.URL.Query().Get("status")), limit, offset)
}

func (h *OrderHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/orders", h.guard.Require(access.OrderCreate, h.Create))
	router.GET("/api/v1/orders", h.guard.Require(access.OrderListAll, h.list("ListAll", h.ListAll)))
	router.GET("/api/v1/orders/mine", h.guard.Require(access.OrderRead, h.list("ListMine", h.ListMine)))
	router.GET("/api/v1/orders/seller", h.guard.Require(access.OrderListForSeller, h.list("ListForSeller", h.ListForSeller)))
	router.GET("/api/v1/orders/id/:id", h.guard.Require(access.OrderRead, h.GetByID))
	router.PUT("/api/v1/orders/id/:id", h.guard.Require(access.OrderEdit,
		mutate(h, "Edit", false, h.service.Edit)))
	router.PUT("/api/v1/orders/id/:id/cancel", h.guard.Require(access.OrderCancel,
		mutate(h, "Cancel", true, h.service.Cancel)))
	router.PUT("/api/v1/orders/id/:id/status", h.guard.Require(access.OrderUpdateStatus,
		mutate(h, "UpdateStatus", false, h.service.UpdateStatus)))
	router.PUT("/api/v1/orders/id/:id/assign-delivery", h.guard.Require(access.OrderAssignDelivery,
		mutate(h, "AssignDelivery", false, h.service.AssignDelivery)))
	router.PUT("/api/v1/orders/id/:id/delivery-status", h.guard.Require(access.OrderUpdateDeliveryStatus,
		mutate(h, "UpdateDeliveryStatus", false, h.service.UpdateDeliveryStatus)))
}
