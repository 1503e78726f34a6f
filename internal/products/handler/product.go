package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"teamup/internal/access"
	"teamup/internal/products/service"
	"teamup/pkg/auth"
	apperrors "teamup/pkg/errors"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	service service.ProductService
	guard   *access.Guard
	log     *logger.Logger
}

func NewProductHandler(service service.ProductService, guard *access.Guard, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *ProductHandler) respond(w http.ResponseWriter, handler string, created bool, product *model.Product, err error) {
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	write := httputil.WriteSuccess
	if created {
		write = httputil.WriteCreated
	}
	if err := write(w, product); err != nil {
		h.log.Error("failed to write response", "handler", handler, "error", err)
	}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.ProductRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "Create", false, nil, err)
		return
	}

	product, err := h.service.Create(r.Context(), principal, &req)
	h.respond(w, "Create", true, product, err)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	product, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	h.respond(w, "GetByID", false, product, err)
}

// filterFrom reads the catalogue filter from the query string.
func filterFrom(r *http.Request) (model.ProductFilter, error) {
	q := r.URL.Query()
	filter := model.ProductFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Sport:    q.Get("sport"),
		SellerID: strings.TrimSpace(q.Get("seller_id")),
	}

	for name, dst := range map[string]**model.Money{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return filter, apperrors.InvalidInput(fmt.Sprintf("'%s' must be a non-negative number", name))
		}
		m := model.NewMoney(d)
		*dst = &m
	}

	if raw := strings.TrimSpace(q.Get("rating")); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil || rating < 0 || rating > 5 {
			return filter, apperrors.InvalidInput("'rating' must be between 0 and 5")
		}
		filter.MinRating = rating
	}
	return filter, nil
}

func (h *ProductHandler) writeList(w http.ResponseWriter, handler string, products []*model.Product, total int64, err error) {
	if err != nil {
		h.respond(w, handler, false, nil, err)
		return
	}
	if err := httputil.WriteList(w, products, int(total)); err != nil {
		h.log.Error("failed to write list response", "handler", handler, "operation", "WriteList", "error", err)
	}
}

func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.respond(w, "GetAll", false, nil, err)
		return
	}
	filter, err := filterFrom(r)
	if err != nil {
		h.respond(w, "GetAll", false, nil, err)
		return
	}

	products, total, err := h.service.List(r.Context(), filter, limit, offset)
	h.writeList(w, "GetAll", products, total, err)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.respond(w, "Search", false, nil, err)
		return
	}
	filter, err := filterFrom(r)
	if err != nil {
		h.respond(w, "Search", false, nil, err)
		return
	}

	products, total, err := h.service.Search(r.Context(), filter, limit, offset)
	h.writeList(w, "Search", products, total, err)
}

// ListMine lists the calling seller's own catalogue.
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.respond(w, "ListMine", false, nil, err)
		return
	}

	products, total, err := h.service.List(r.Context(), model.ProductFilter{SellerID: principal.UserID}, limit, offset)
	h.writeList(w, "ListMine", products, total, err)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var update model.ProductUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.respond(w, "Update", false, nil, err)
		return
	}

	product, err := h.service.Update(r.Context(), principal, ps.ByName("id"), &update)
	h.respond(w, "Update", false, product, err)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	if err := h.service.Delete(r.Context(), principal, ps.ByName("id")); err != nil {
		h.respond(w, "Delete", false, nil, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ProductHandler) AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.ReviewRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "AddReview", false, nil, err)
		return
	}

	product, err := h.service.AddReview(r.Context(), principal, ps.ByName("id"), &req)
	h.respond(w, "AddReview", true, product, err)
}

func (h *ProductHandler) UpdateReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req model.ReviewRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.respond(w, "UpdateReview", false, nil, err)
		return
	}

	product, err := h.service.UpdateReview(r.Context(), principal, ps.ByName("id"), ps.ByName("reviewId"), &req)
	h.respond(w, "UpdateReview", false, product, err)
}

func (h *ProductHandler) DeleteReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := auth.PrincipalFrom(r.Context())

	product, err := h.service.DeleteReview(r.Context(), principal, ps.ByName("id"), ps.ByName("reviewId"))
	h.respond(w, "DeleteReview", false, product, err)
}

func (h *ProductHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/products", h.guard.Require(access.ProductCreate, h.Create))
	router.GET("/api/v1/products", h.GetAll)
	router.GET("/api/v1/products/search", h.Search)
	router.GET("/api/v1/products/mine", h.guard.Require(access.ProductManage, h.ListMine))
	router.GET("/api/v1/products/id/:id", h.GetByID)
	router.PUT("/api/v1/products/id/:id", h.guard.Require(access.ProductManage, h.Update))
	router.DELETE("/api/v1/products/id/:id", h.guard.Require(access.ProductManage, h.Delete))
	router.POST("/api/v1/products/id/:id/reviews", h.guard.Require(access.ProductReview, h.AddReview))
	router.PUT("/api/v1/products/id/:id/reviews/:reviewId", h.guard.Require(access.ProductReview, h.UpdateReview))
	router.DELETE("/api/v1/products/id/:id/reviews/:reviewId", h.guard.Require(access.ProductReview, h.DeleteReview))
}
