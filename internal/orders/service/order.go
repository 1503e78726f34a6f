package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"teamup/internal/access"
	orderserrors "teamup/internal/orders/errors"
	"teamup/internal/orders/repository"
	productserrors "teamup/internal/products/errors"
	usererrors "teamup/internal/users/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
)

// ProductStore is the slice of the product catalogue orders depend on.
type ProductStore interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	ReserveStock(ctx context.Context, id string, qty int) error
	RestoreStock(ctx context.Context, id string, qty int) error
	FindIDsBySeller(ctx context.Context, sellerID string) ([]string, error)
}

type OrderService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.OrderRequest) (*model.Order, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Order, error)
	ListMine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Order, int64, error)
	ListForSeller(ctx context.Context, p *auth.Principal, sellerID string, limit int, offset int64) ([]*model.Order, int64, error)
	ListAll(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Order, int64, error)
	Cancel(ctx context.Context, p *auth.Principal, id string, req *model.OrderCancelRequest) (*model.Order, error)
	UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.OrderStatusUpdate) (*model.Order, error)
	AssignDelivery(ctx context.Context, p *auth.Principal, id string, req *model.AssignDeliveryRequest) (*model.Order, error)
	UpdateDeliveryStatus(ctx context.Context, p *auth.Principal, id string, update *model.DeliveryStatusUpdate) (*model.Order, error)
	Edit(ctx context.Context, p *auth.Principal, id string, edit *model.OrderEdit) (*model.Order, error)
	OnDeliveryMarkedDelivered(ctx context.Context, evt events.Event) error
}

type orderService struct {
	repo      repository.OrderRepository
	products  ProductStore
	users     access.UserFinder
	tx        mongodb.TransactionManager
	bus       *events.Bus
	validator *validator.Validate
	cfg       *config.Config
	now       func() time.Time
}

func NewOrderService(
	repo repository.OrderRepository,
	products ProductStore,
	users access.UserFinder,
	tx mongodb.TransactionManager,
	bus *events.Bus,
	validator *validator.Validate,
	cfg *config.Config,
) OrderService {
	return &orderService{
		repo:      repo,
		products:  products,
		users:     users,
		tx:        tx,
		bus:       bus,
		validator: validator,
		cfg:       cfg,
		now:       mongodb.Now,
	}
}

// Subscribe registers the service's event handlers on bus.
func Subscribe(bus *events.Bus, s OrderService) {
	bus.Subscribe(events.DeliveryMarkedDelivered, s.OnDeliveryMarkedDelivered)
}

// reservation is the total quantity requested of one product across all lines.
type reservation struct {
	product *model.Product
	qty     int
}

// Create prices and places an order. Stock is checked for every line before
// anything is written, then reserved line by line inside a transaction so a
// late shortage rolls back the reservations already made.
func (s *orderService) Create(ctx context.Context, p *auth.Principal, req *model.OrderRequest) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	normalizeAddress(&req.ShippingAddress)
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Order validation failed", "error", err)
		return nil, err
	}

	var reservations []*reservation
	byProduct := make(map[string]*reservation)
	order := &model.Order{
		UserID:          p.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ShippingPrice:   req.ShippingPrice,
		TaxPrice:        req.TaxPrice,
		Status:          model.OrderPending,
	}

	for _, line := range req.Items {
		res, ok := byProduct[line.ProductID]
		if !ok {
			product, err := s.findProduct(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			res = &reservation{product: product}
			byProduct[line.ProductID] = res
			reservations = append(reservations, res)
		}
		res.qty += line.Quantity

		order.Items = append(order.Items, model.OrderItem{
			ProductID: res.product.ID,
			Name:      res.product.Name,
			Quantity:  line.Quantity,
			Price:     res.product.Price,
		})
	}

	for _, res := range reservations {
		if res.product.Stock < res.qty {
			log.Info("Order rejected for stock", "product_id", res.product.ID, "available", res.product.Stock, "requested", res.qty)
			return nil, apperrors.InsufficientStock(res.product.Name, res.product.Stock, res.qty)
		}
	}

	order.RecomputeTotals()

	err := s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		// The driver re-runs this callback on a transient commit error; the
		// insert must not reuse the ID handed out by the aborted attempt.
		order.ID = ""
		for _, res := range reservations {
			if err := s.products.ReserveStock(ctx, res.product.ID, res.qty); err != nil {
				switch {
				case errors.Is(err, productserrors.ErrInsufficientStock):
					return apperrors.InsufficientStock(res.product.Name, res.product.Stock, res.qty)
				case errors.Is(err, productserrors.ErrNotFound):
					return apperrors.NotFoundWithID("Product", res.product.ID)
				}
				return apperrors.Internal("Failed to reserve stock", err)
			}
		}
		if err := s.repo.Create(ctx, order); err != nil {
			return apperrors.Internal("Failed to create order", err)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to place order", "user_id", p.UserID, "error", err)
		return nil, err
	}

	log.Info("Order created successfully",
		"id", order.ID,
		"user_id", order.UserID,
		"items", len(order.Items),
		"total_price", order.TotalPrice.StringFixed(2),
	)
	s.bus.Emit(ctx, events.OrderCreated, order.ID, p.UserID, orderPayload(order))
	return order, nil
}

// GetByID returns the order to its owner, the assigned delivery user, a
// seller of one of its products, or an admin.
func (s *orderService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderRead); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if access.CanActOn(p, order.UserID, order.DeliveryAssigned) {
		return order, nil
	}
	if p.Role == model.RoleSeller {
		if err := s.requireSeller(ctx, p, order); err != nil {
			return nil, err
		}
		return order, nil
	}
	return nil, apperrors.Forbidden("Not authorized to access this order")
}

func (s *orderService) ListMine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Order, int64, error) {
	if err := access.Authorize(p, access.OrderRead); err != nil {
		return nil, 0, err
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Order, error) {
			return s.repo.FindByUser(ctx, p.UserID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByUser(ctx, p.UserID)
		},
	)
}

// ListForSeller lists the orders containing at least one of the seller's
// products. Admins may name any seller with sellerID.
func (s *orderService) ListForSeller(ctx context.Context, p *auth.Principal, sellerID string, limit int, offset int64) ([]*model.Order, int64, error) {
	if err := access.Authorize(p, access.OrderListForSeller); err != nil {
		return nil, 0, err
	}
	if sellerID == "" || p.Role != model.RoleAdmin {
		sellerID = p.UserID
	}

	productIDs, err := s.products.FindIDsBySeller(ctx, sellerID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve seller products", err)
	}
	if len(productIDs) == 0 {
		return []*model.Order{}, 0, nil
	}

	return s.list(ctx,
		func(ctx context.Context) ([]*model.Order, error) {
			return s.repo.FindByProducts(ctx, productIDs, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByProducts(ctx, productIDs)
		},
	)
}

func (s *orderService) ListAll(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Order, int64, error) {
	if err := access.Authorize(p, access.OrderListAll); err != nil {
		return nil, 0, err
	}
	if status != "" && !model.IsOrderStatus(status) {
		return nil, 0, apperrors.InvalidInput("Unknown order status: " + status)
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Order, error) {
			return s.repo.FindAll(ctx, status, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountAll(ctx, status)
		},
	)
}

func (s *orderService) Cancel(ctx context.Context, p *auth.Principal, id string, req *model.OrderCancelRequest) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderCancel); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, req); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "order", order.UserID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, p, order, req.Reason)
}

// cancel marks the order cancelled and restores stock for every line in one
// transaction. The status guard on the write keeps stock from being
// restored twice by concurrent cancels.
func (s *orderService) cancel(ctx context.Context, p *auth.Principal, order *model.Order, reason string) (*model.Order, error) {
	log := s.cfg.Log.FromContext(ctx)

	switch order.Status {
	case model.OrderDelivered:
		return nil, apperrors.InvalidState("Cannot cancel a delivered order")
	case model.OrderCancelled:
		return nil, apperrors.InvalidState("Order is already cancelled")
	}
	if reason == "" {
		reason = model.CancelCustomerRequest
	}

	var cancelled *model.Order
	err := s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.repo.Update(ctx, order.ID, order.Status, bson.M{
			"status":        model.OrderCancelled,
			"cancel_reason": reason,
			"cancelled_at":  s.now(),
		})
		if err != nil {
			return mapUpdateError(err)
		}

		for _, item := range order.Items {
			if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, productserrors.ErrNotFound) {
					// The product was removed from the catalogue; nothing to restock.
					log.Warn("Skipping restock for missing product", "order_id", order.ID, "product_id", item.ProductID)
					continue
				}
				return apperrors.Internal("Failed to restore stock", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to cancel order", "id", order.ID, "error", err)
		return nil, err
	}

	log.Info("Order cancelled", "id", order.ID, "reason", reason, "by", p.UserID)
	payload := orderPayload(cancelled)
	payload.Reason = reason
	s.bus.Emit(ctx, events.OrderCancelled, cancelled.ID, p.UserID, payload)
	return cancelled, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.OrderStatusUpdate) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderUpdateStatus); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireSeller(ctx, p, order); err != nil {
		return nil, err
	}

	if update.Status == model.OrderCancelled {
		return s.cancel(ctx, p, order, model.CancelOther)
	}
	if !CanAdvanceOrder(order.Status, update.Status) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot change order status from %s to %s", order.Status, update.Status))
	}

	updated, err := s.repo.Update(ctx, id, order.Status, bson.M{"status": update.Status})
	if err != nil {
		return nil, mapUpdateError(err)
	}

	s.cfg.Log.FromContext(ctx).Info("Order status updated", "id", id, "from", order.Status, "to", updated.Status)
	return updated, nil
}

func (s *orderService) AssignDelivery(ctx context.Context, p *auth.Principal, id string, req *model.AssignDeliveryRequest) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderAssignDelivery); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, req); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderConfirmed && order.Status != model.OrderShipped {
		return nil, apperrors.InvalidState("Only confirmed or shipped orders can be assigned for delivery")
	}

	assignee, err := s.users.FindByID(ctx, req.DeliveryUserID)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) || errors.Is(err, usererrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("User", req.DeliveryUserID)
		}
		return nil, apperrors.Internal("Failed to retrieve delivery user", err)
	}
	if assignee.Role != model.RoleDelivery || !assignee.IsActive {
		return nil, apperrors.InvalidInput("Assignee must be an active delivery user")
	}

	// A shipment already under way keeps its courier. Only a pending or
	// failed delivery may be handed to someone else.
	info := model.DeliveryInfo{Status: model.DeliveryInfoPending}
	if order.DeliveryInfo != nil {
		current := order.DeliveryInfo.Status
		if current != model.DeliveryInfoPending && current != model.DeliveryInfoFailed {
			return nil, apperrors.InvalidState(fmt.Sprintf("Cannot reassign a delivery that is %s", current))
		}
		info = *order.DeliveryInfo
		info.Status = model.DeliveryInfoPending
	}

	updated, err := s.repo.Update(ctx, id, order.Status, bson.M{
		"delivery_assigned": assignee.ID,
		"delivery_info":     info,
	})
	if err != nil {
		return nil, mapUpdateError(err)
	}

	s.cfg.Log.FromContext(ctx).Info("Order assigned for delivery", "id", id, "delivery_user_id", assignee.ID, "by", p.UserID)
	return updated, nil
}

func (s *orderService) UpdateDeliveryStatus(ctx context.Context, p *auth.Principal, id string, update *model.DeliveryStatusUpdate) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderUpdateDeliveryStatus); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.DeliveryAssigned == "" || order.DeliveryInfo == nil {
		return nil, apperrors.InvalidState("Order has not been assigned for delivery")
	}
	if err := access.RequireOwner(p, "order delivery", order.DeliveryAssigned); err != nil {
		return nil, err
	}
	if order.Status == model.OrderCancelled {
		return nil, apperrors.InvalidState("Order is cancelled")
	}

	current := order.DeliveryInfo.Status
	if !CanAdvanceDelivery(current, update.Status) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot change delivery status from %s to %s", current, update.Status))
	}

	info := *order.DeliveryInfo
	info.Status = update.Status
	if update.Location != nil {
		info.CurrentLocation = update.Location
	}
	if update.Notes != "" {
		info.Notes = update.Notes
	}

	set := bson.M{}
	now := s.now()
	switch update.Status {
	case model.DeliveryInfoPickedUp:
		info.PickedUpAt = &now
	case model.DeliveryInfoDelivered:
		info.DeliveredAt = &now
		set["status"] = model.OrderDelivered
	}
	set["delivery_info"] = info

	updated, err := s.repo.Update(ctx, id, order.Status, set)
	if err != nil {
		return nil, mapUpdateError(err)
	}

	s.cfg.Log.FromContext(ctx).Info("Order delivery status updated", "id", id, "from", current, "to", update.Status)
	return updated, nil
}

func (s *orderService) Edit(ctx context.Context, p *auth.Principal, id string, edit *model.OrderEdit) (*model.Order, error) {
	if err := access.Authorize(p, access.OrderEdit); err != nil {
		return nil, err
	}
	if edit.ShippingAddress != nil {
		normalizeAddress(edit.ShippingAddress)
	}
	if err := validation.Request(s.validator, edit); err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderDelivered || order.Status == model.OrderCancelled {
		return nil, apperrors.InvalidState("Cannot edit a " + order.Status + " order")
	}

	if edit.ShippingAddress != nil {
		order.ShippingAddress = *edit.ShippingAddress
	}
	if edit.ShippingPrice != nil {
		order.ShippingPrice = *edit.ShippingPrice
	}
	if edit.TaxPrice != nil {
		order.TaxPrice = *edit.TaxPrice
	}
	order.RecomputeTotals()

	updated, err := s.repo.Update(ctx, id, order.Status, bson.M{
		"shipping_address": order.ShippingAddress,
		"shipping_price":   order.ShippingPrice,
		"tax_price":        order.TaxPrice,
		"items_price":      order.ItemsPrice,
		"total_price":      order.TotalPrice,
	})
	if err != nil {
		return nil, mapUpdateError(err)
	}

	s.cfg.Log.FromContext(ctx).Info("Order edited", "id", id, "total_price", updated.TotalPrice.StringFixed(2), "by", p.UserID)
	return updated, nil
}

// OnDeliveryMarkedDelivered completes the order of a delivered shipment. It
// runs inside the delivery transaction, so a rejection here undoes the
// delivery update too.
func (s *orderService) OnDeliveryMarkedDelivered(ctx context.Context, evt events.Event) error {
	var payload events.DeliveryPayload
	if err := evt.Decode(&payload); err != nil {
		return apperrors.Internal("Invalid delivery event", err)
	}

	order, err := s.findOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case model.OrderCancelled:
		return apperrors.InvalidState("Cannot deliver a cancelled order")
	case model.OrderDelivered:
		return nil
	}

	info := model.DeliveryInfo{}
	if order.DeliveryInfo != nil {
		info = *order.DeliveryInfo
	}
	deliveredAt := payload.DeliveredAt
	info.Status = model.DeliveryInfoDelivered
	info.DeliveredAt = &deliveredAt

	if _, err := s.repo.Update(ctx, order.ID, order.Status, bson.M{
		"status":        model.OrderDelivered,
		"delivery_info": info,
	}); err != nil {
		return mapUpdateError(err)
	}

	s.cfg.Log.FromContext(ctx).Info("Order delivered", "id", order.ID, "delivery_id", payload.DeliveryID)
	return nil
}

// --- Helpers ---

func (s *orderService) list(
	ctx context.Context,
	find func(context.Context) ([]*model.Order, error),
	count func(context.Context) (int64, error),
) ([]*model.Order, int64, error) {
	var total int64
	var orders []*model.Order
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
	}()

	go func() {
		defer wg.Done()
		orders, errFind = find(ctx)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count orders", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve orders", errFind)
	}
	return orders, total, nil
}

func (s *orderService) findOrder(ctx context.Context, id string) (*model.Order, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Order ID cannot be empty")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Order", id)
		}
		if errors.Is(err, orderserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid order ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve order", err)
	}
	return order, nil
}

func (s *orderService) findProduct(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, productserrors.ErrNotFound) || errors.Is(err, productserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Product", id)
		}
		return nil, apperrors.Internal("Failed to retrieve product", err)
	}
	return product, nil
}

// requireSeller passes admins and sellers of at least one product in order.
func (s *orderService) requireSeller(ctx context.Context, p *auth.Principal, order *model.Order) error {
	if p.Role == model.RoleAdmin {
		return nil
	}
	for _, item := range order.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, productserrors.ErrNotFound) {
				continue
			}
			return apperrors.Internal("Failed to retrieve product", err)
		}
		if product.SellerID == p.UserID {
			return nil
		}
	}
	return apperrors.Forbidden("Not authorized to manage this order")
}

func mapUpdateError(err error) error {
	if errors.Is(err, orderserrors.ErrStaleStatus) {
		return apperrors.InvalidState("Order changed concurrently, retry the request")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to update order", err)
}

func normalizeAddress(a *model.ShippingAddress) {
	a.Street = sanitizer.NormalizeAddressLine(a.Street)
	a.City = sanitizer.NormalizeAddressLine(a.City)
	a.State = sanitizer.NormalizeAddressLine(a.State)
	a.Country = sanitizer.NormalizeAddressLine(a.Country)
	a.PostalCode = sanitizer.NormalizePostalCode(a.PostalCode)
}

func orderPayload(o *model.Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Items:      len(o.Items),
	}
}
