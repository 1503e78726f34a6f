package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"teamup/internal/access"
	bookingserrors "teamup/internal/bookings/errors"
	"teamup/internal/bookings/repository"
	coacheserrors "teamup/internal/coaches/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/model"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// CoachFinder resolves the coach a booking targets or a coach user's own profile.
type CoachFinder interface {
	FindByID(ctx context.Context, id string) (*model.Coach, error)
	FindByUserID(ctx context.Context, userID string) (*model.Coach, error)
}

type BookingService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	ListMine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Booking, int64, error)
	ListForCoach(ctx context.Context, p *auth.Principal, coachID string, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.BookingStatusUpdate) (*model.Booking, error)
	Rate(ctx context.Context, p *auth.Principal, id string, rating *model.BookingRating) (*model.Booking, error)
}

// transitions lists the statuses each booking status may move to.
var transitions = map[string][]string{
	model.BookingPending:   {model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingCompleted, model.BookingCancelled},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	coaches   CoachFinder
	tx        mongodb.TransactionManager
	bus       *events.Bus
	matcher   *Matcher
	validator *validator.Validate
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	coaches CoachFinder,
	tx mongodb.TransactionManager,
	bus *events.Bus,
	matcher *Matcher,
	validator *validator.Validate,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		coaches:   coaches,
		tx:        tx,
		bus:       bus,
		matcher:   matcher,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, p *auth.Principal, req *model.BookingRequest) (*model.Booking, error) {
	if err := access.Authorize(p, access.BookingCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Sport = strings.ToLower(strings.TrimSpace(req.Sport))
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Booking request validation failed", "error", err)
		return nil, err
	}

	slot, err := s.matcher.Parse(req.Date, req.Slot)
	if err != nil {
		return nil, err
	}

	coach, err := s.findCoach(ctx, req.CoachID)
	if err != nil {
		return nil, err
	}

	if err := s.matcher.Check(coach, req.Sport, slot); err != nil {
		log.Info("Booking request rejected",
			"coach_id", coach.ID,
			"sport", req.Sport,
			"date", slot.Date,
			"slot", slot.Slot(),
			"error", err,
		)
		return nil, err
	}

	lockID, err := s.acquireSlotLock(ctx, coach.ID, slot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(context.WithoutCancel(ctx), lockID); releaseErr != nil {
			log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	booking := &model.Booking{
		UserID:        p.UserID,
		CoachID:       coach.ID,
		Sport:         req.Sport,
		Date:          slot.Date,
		Slot:          slot.Slot(),
		Status:        model.BookingPending,
		ActiveSlotKey: slot.ActiveSlotKey(coach.ID),
	}

	err = s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		dayStart, dayEnd := slot.DayBounds()
		taken, err := s.repo.CountActiveForSlot(ctx, coach.ID, dayStart, dayEnd, slot.Slot())
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if taken > 0 {
			return apperrors.SlotTaken(slot.Slot())
		}

		// A retried callback must insert under a fresh ID.
		booking.ID = ""
		if err := s.repo.Create(ctx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrSlotTaken) {
				return apperrors.SlotTaken(slot.Slot())
			}
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create booking", "coach_id", coach.ID, "slot", slot.Slot(), "error", err)
		return nil, err
	}

	log.Info("Booking created successfully",
		"id", booking.ID,
		"coach_id", booking.CoachID,
		"user_id", booking.UserID,
		"date", booking.Date,
		"slot", booking.Slot,
	)
	s.bus.Emit(ctx, events.BookingCreated, booking.ID, p.UserID, bookingPayload(booking, ""))
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	if err := access.Authorize(p, access.BookingRead); err != nil {
		return nil, err
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if access.CanActOn(p, booking.UserID) {
		return booking, nil
	}
	coach, err := s.findCoach(ctx, booking.CoachID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "booking", coach.UserID); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListMine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := access.Authorize(p, access.BookingRead); err != nil {
		return nil, 0, err
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByUser(ctx, p.UserID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByUser(ctx, p.UserID)
		},
	)
}

// ListForCoach lists a coach's bookings. Coaches see their own; admins may
// name any coach with coachID.
func (s *bookingService) ListForCoach(ctx context.Context, p *auth.Principal, coachID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := access.Authorize(p, access.BookingListForCoach); err != nil {
		return nil, 0, err
	}

	var coach *model.Coach
	var err error
	if coachID != "" && p.Role == model.RoleAdmin {
		coach, err = s.findCoach(ctx, coachID)
	} else {
		coach, err = s.coaches.FindByUserID(ctx, p.UserID)
		if errors.Is(err, coacheserrors.ErrNotFound) {
			return nil, 0, apperrors.NotFound("Coach profile")
		}
		if err != nil {
			err = apperrors.Internal("Failed to retrieve coach profile", err)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	return s.list(ctx,
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByCoach(ctx, coach.ID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByCoach(ctx, coach.ID)
		},
	)
}

func (s *bookingService) UpdateStatus(ctx context.Context, p *auth.Principal, id string, update *model.BookingStatusUpdate) (*model.Booking, error) {
	if err := access.Authorize(p, access.BookingUpdateStatus); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	coach, err := s.findCoach(ctx, booking.CoachID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "booking", coach.UserID); err != nil {
		return nil, err
	}

	previous := booking.Status
	if !CanTransition(previous, update.Status) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot change booking status from %s to %s", previous, update.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, previous, update.Status)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return nil, apperrors.InvalidState("Booking status changed concurrently, retry the request")
		}
		return nil, apperrors.Internal("Failed to update booking status", err)
	}

	log.Info("Booking status updated", "id", id, "from", previous, "to", updated.Status)
	s.bus.Emit(ctx, events.BookingStatusChanged, updated.ID, p.UserID, bookingPayload(updated, previous))
	return updated, nil
}

// Rate records the booking owner's rating of a completed session. The coach's
// aggregate rating is updated by subscribers in the same transaction.
func (s *bookingService) Rate(ctx context.Context, p *auth.Principal, id string, rating *model.BookingRating) (*model.Booking, error) {
	if err := access.Authorize(p, access.BookingRate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	if err := validation.Request(s.validator, rating); err != nil {
		return nil, err
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "booking", booking.UserID); err != nil {
		return nil, err
	}
	if booking.Status != model.BookingCompleted {
		return nil, apperrors.InvalidState("Only completed bookings can be rated")
	}
	if booking.Rating != nil {
		return nil, apperrors.Duplicate("Booking has already been rated")
	}

	var rated *model.Booking
	var evt events.Event
	err = s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		rated, err = s.repo.SetRating(ctx, id, rating.Rating, strings.TrimSpace(rating.Review))
		if err != nil {
			if errors.Is(err, bookingserrors.ErrStaleStatus) {
				return apperrors.Duplicate("Booking has already been rated")
			}
			return apperrors.Internal("Failed to rate booking", err)
		}

		evt, err = events.New(events.BookingRated, rated.ID, p.UserID, events.BookingRatedPayload{
			BookingID: rated.ID,
			UserID:    rated.UserID,
			CoachID:   rated.CoachID,
			Rating:    rating.Rating,
		})
		if err != nil {
			return apperrors.Internal("Failed to build rating event", err)
		}
		return s.bus.Dispatch(ctx, evt)
	})
	if err != nil {
		log.Error("Failed to rate booking", "id", id, "error", err)
		return nil, err
	}

	log.Info("Booking rated", "id", id, "coach_id", rated.CoachID, "rating", rating.Rating)
	s.bus.Publish(ctx, evt)
	return rated, nil
}

// --- Helpers ---

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) findCoach(ctx context.Context, id string) (*model.Coach, error) {
	coach, err := s.coaches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, coacheserrors.ErrNotFound) || errors.Is(err, coacheserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Coach", id)
		}
		return nil, apperrors.Internal("Failed to retrieve coach", err)
	}
	if !coach.IsActive {
		return nil, apperrors.NotFoundWithID("Coach", id)
	}
	return coach, nil
}

func (s *bookingService) list(
	ctx context.Context,
	find func(context.Context) ([]*model.Booking, error),
	count func(context.Context) (int64, error),
) ([]*model.Booking, int64, error) {
	var total int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = find(ctx)
	}()

	wg.Wait()
	if errCount != nil {
		s.cfg.Log.FromContext(ctx).Error("Failed to count bookings", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		s.cfg.Log.FromContext(ctx).Error("Failed to list bookings", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", errFind)
	}
	return bookings, total, nil
}

// acquireSlotLock takes the advisory lock guarding one coach slot. A held
// lock means another request is booking the same slot right now.
func (s *bookingService) acquireSlotLock(ctx context.Context, coachID string, slot SlotRequest) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s_%s_%s", coachID, slot.Date.Format(dateLayout), slot.Slot())

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: s.matcher.now().Add(s.cfg.SlotLockTTL),
	}

	if err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return "", apperrors.SlotTaken(slot.Slot())
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}
	return lockID, nil
}

func bookingPayload(b *model.Booking, previous string) events.BookingPayload {
	return events.BookingPayload{
		BookingID: b.ID,
		UserID:    b.UserID,
		CoachID:   b.CoachID,
		Sport:     b.Sport,
		Date:      b.Date,
		Slot:      b.Slot,
		Status:    b.Status,
		Previous:  previous,
	}
}
