package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"teamup/internal/access"
	deliverieserrors "teamup/internal/deliveries/errors"
	"teamup/internal/deliveries/repository"
	orderserrors "teamup/internal/orders/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const trackingPrefix = "TRK-"

// OrderStore is the part of the order repository a shipment touches.
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, id, fromStatus string, set bson.M) (*model.Order, error)
}

type DeliveryService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.DeliveryRequest) (*model.Delivery, error)
	UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.DeliveryTrackerUpdate) (*model.Delivery, error)
	Track(ctx context.Context, trackingNumber string) (*model.Tracking, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Delivery, error)
	ListByOrder(ctx context.Context, p *auth.Principal, orderID string) ([]*model.Delivery, error)
	List(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Delivery, int64, error)
}

type deliveryService struct {
	repo      repository.DeliveryRepository
	orders    OrderStore
	tx        mongodb.TransactionManager
	bus       *events.Bus
	validator *validator.Validate
	cfg       *config.Config
	now       func() time.Time
}

func NewDeliveryService(
	repo repository.DeliveryRepository,
	orders OrderStore,
	tx mongodb.TransactionManager,
	bus *events.Bus,
	validator *validator.Validate,
	cfg *config.Config,
) DeliveryService {
	return &deliveryService{
		repo:      repo,
		orders:    orders,
		tx:        tx,
		bus:       bus,
		validator: validator,
		cfg:       cfg,
		now:       mongodb.Now,
	}
}

// Terminal reports whether a shipment in status accepts no further attempts.
func Terminal(status string) bool {
	return status == model.DeliveryDelivered || status == model.DeliveryReturned
}

func (s *deliveryService) Create(ctx context.Context, p *auth.Principal, req *model.DeliveryRequest) (*model.Delivery, error) {
	if err := access.Authorize(p, access.DeliveryCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.TrackingNumber = sanitizer.NormalizeTrackingNumber(req.TrackingNumber)
	if req.TrackingNumber == "" {
		req.TrackingNumber = sanitizer.NormalizeTrackingNumber(trackingPrefix + uuid.NewString())
	}
	req.Partner.Name = sanitizer.NormalizeName(req.Partner.Name)
	req.Partner.CompanyName = sanitizer.NormalizeName(req.Partner.CompanyName)
	if phone := sanitizer.NormalizePhone(req.Partner.ContactNumber); phone != "" {
		req.Partner.ContactNumber = phone
	}
	req.Notes = strings.TrimSpace(req.Notes)

	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Delivery validation failed", "error", err)
		return nil, err
	}

	order, err := s.findOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderCancelled || order.Status == model.OrderDelivered {
		return nil, apperrors.InvalidState("Cannot ship a " + order.Status + " order")
	}

	delivery := &model.Delivery{
		OrderID:              order.ID,
		Partner:              req.Partner,
		TrackingNumber:       req.TrackingNumber,
		Status:               model.DeliveryPending,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate.UTC(),
		Notes:                req.Notes,
	}

	err = s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		// A retried callback must insert under a fresh ID.
		delivery.ID = ""
		if err := s.repo.Create(ctx, delivery); err != nil {
			if errors.Is(err, deliverieserrors.ErrDuplicateTracking) {
				return apperrors.Duplicate("Tracking number " + delivery.TrackingNumber + " already exists")
			}
			return apperrors.Internal("Failed to create delivery", err)
		}
		if order.Status != model.OrderPending {
			return nil
		}
		if _, err := s.orders.Update(ctx, order.ID, model.OrderPending, bson.M{"status": model.OrderConfirmed}); err != nil {
			if errors.Is(err, orderserrors.ErrStaleStatus) {
				return apperrors.InvalidState("Order changed concurrently, retry the request")
			}
			return apperrors.Internal("Failed to confirm order", err)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create delivery", "order_id", order.ID, "error", err)
		return nil, err
	}

	log.Info("Delivery created successfully",
		"id", delivery.ID,
		"order_id", delivery.OrderID,
		"tracking_number", delivery.TrackingNumber,
		"partner", delivery.Partner.CompanyName,
	)
	return delivery, nil
}

// UpdateStatus records a delivery attempt. Reaching Delivered stamps the
// delivery date and completes the order in the same transaction.
func (s *deliveryService) UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.DeliveryTrackerUpdate) (*model.Delivery, error) {
	if err := access.Authorize(p, access.DeliveryUpdateStatus); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	update.Notes = strings.TrimSpace(update.Notes)
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	delivery, err := s.findDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(delivery.Status) {
		return nil, apperrors.InvalidState("Delivery is already " + strings.ToLower(delivery.Status))
	}

	now := s.now()
	attempt := model.DeliveryAttempt{
		AttemptDate: now,
		Status:      update.Status,
		Notes:       update.Notes,
	}
	var deliveredAt *time.Time
	if update.Status == model.DeliveryDelivered {
		deliveredAt = &now
	}

	var updated *model.Delivery
	var evt *events.Event
	err = s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.AppendAttempt(ctx, delivery.ID, delivery.Status, attempt, deliveredAt)
		if err != nil {
			if errors.Is(err, deliverieserrors.ErrStaleStatus) {
				return apperrors.InvalidState("Delivery changed concurrently, retry the request")
			}
			return apperrors.Internal("Failed to update delivery", err)
		}
		if deliveredAt == nil {
			return nil
		}

		order, err := s.findOrder(ctx, updated.OrderID)
		if err != nil {
			return err
		}
		delivered, err := events.New(events.DeliveryMarkedDelivered, updated.ID, p.UserID, events.DeliveryPayload{
			DeliveryID:     updated.ID,
			OrderID:        updated.OrderID,
			UserID:         order.UserID,
			TrackingNumber: updated.TrackingNumber,
			DeliveredAt:    now,
		})
		if err != nil {
			return apperrors.Internal("Failed to build delivery event", err)
		}
		if err := s.bus.Dispatch(ctx, delivered); err != nil {
			return err
		}
		evt = &delivered
		return nil
	})
	if err != nil {
		log.Error("Failed to update delivery status", "id", id, "status", update.Status, "error", err)
		return nil, err
	}

	log.Info("Delivery status updated", "id", id, "from", delivery.Status, "to", updated.Status, "attempts", len(updated.Attempts))
	if evt != nil {
		s.bus.Publish(ctx, *evt)
	}
	return updated, nil
}

func (s *deliveryService) Track(ctx context.Context, trackingNumber string) (*model.Tracking, error) {
	trackingNumber = sanitizer.NormalizeTrackingNumber(trackingNumber)
	if trackingNumber == "" {
		return nil, apperrors.InvalidInput("Tracking number cannot be empty")
	}

	delivery, err := s.repo.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, deliverieserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Delivery")
		}
		return nil, apperrors.Internal("Failed to retrieve delivery", err)
	}
	return delivery.Tracking(), nil
}

// GetByID returns a shipment to couriers, admins and the customer whose
// order it carries.
func (s *deliveryService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Delivery, error) {
	if err := access.Authorize(p, access.DeliveryRead); err != nil {
		return nil, err
	}

	delivery, err := s.findDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if !courier(p) {
		order, err := s.findOrder(ctx, delivery.OrderID)
		if err != nil {
			return nil, err
		}
		if err := access.RequireOwner(p, "delivery", order.UserID); err != nil {
			return nil, err
		}
	}
	return delivery, nil
}

func (s *deliveryService) ListByOrder(ctx context.Context, p *auth.Principal, orderID string) ([]*model.Delivery, error) {
	if err := access.Authorize(p, access.DeliveryRead); err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !courier(p) {
		if err := access.RequireOwner(p, "order deliveries", order.UserID); err != nil {
			return nil, err
		}
	}

	deliveries, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve deliveries", err)
	}
	return deliveries, nil
}

func (s *deliveryService) List(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Delivery, int64, error) {
	if err := access.Authorize(p, access.DeliveryList); err != nil {
		return nil, 0, err
	}
	if status != "" && !model.IsDeliveryStatus(status) {
		return nil, 0, apperrors.InvalidInput("Unknown delivery status: " + status)
	}

	var total int64
	var deliveries []*model.Delivery
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.CountAll(ctx, status)
	}()

	go func() {
		defer wg.Done()
		deliveries, errFind = s.repo.FindAll(ctx, status, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count deliveries", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve deliveries", errFind)
	}
	return deliveries, total, nil
}

// courier reports whether p handles shipments rather than receiving them.
func courier(p *auth.Principal) bool {
	return p.Role == model.RoleDelivery || p.Role == model.RoleAdmin
}

func (s *deliveryService) findDelivery(ctx context.Context, id string) (*model.Delivery, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Delivery ID cannot be empty")
	}

	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, deliverieserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Delivery", id)
		}
		if errors.Is(err, deliverieserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid delivery ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve delivery", err)
	}
	return delivery, nil
}

func (s *deliveryService) findOrder(ctx context.Context, id string) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
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
