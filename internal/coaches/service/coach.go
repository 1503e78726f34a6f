package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"teamup/internal/access"
	coacheserrors "teamup/internal/coaches/errors"
	"teamup/internal/coaches/repository"
	usererrors "teamup/internal/users/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	defaultNearbyRadiusKm = 10
	defaultNearbyLimit    = 20
)

// RatingSource aggregates the ratings left on a coach's bookings.
type RatingSource interface {
	RatingStats(ctx context.Context, coachID string) (float64, int, error)
}

type CoachService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.CoachRequest) (*model.Coach, error)
	GetByID(ctx context.Context, id string) (*model.Coach, error)
	List(ctx context.Context, filter model.CoachFilter, limit int, offset int64) ([]*model.Coach, int64, error)
	Nearby(ctx context.Context, req *model.NearbyCoachRequest) ([]*model.Coach, error)
	Update(ctx context.Context, p *auth.Principal, id string, update *model.CoachUpdate) (*model.Coach, error)
	GetSchedule(ctx context.Context, id string) (model.Availability, error)
	UpdateSchedule(ctx context.Context, p *auth.Principal, id string, update *model.AvailabilityUpdate) (*model.Coach, error)
	OnBookingRated(ctx context.Context, evt events.Event) error
}

type coachService struct {
	repo      repository.CoachRepository
	users     access.UserFinder
	ratings   RatingSource
	validator *validator.Validate
	cfg       *config.Config
}

func NewCoachService(
	repo repository.CoachRepository,
	users access.UserFinder,
	ratings RatingSource,
	validator *validator.Validate,
	cfg *config.Config,
) CoachService {
	return &coachService{
		repo:      repo,
		users:     users,
		ratings:   ratings,
		validator: validator,
		cfg:       cfg,
	}
}

// Subscribe registers the service's event handlers on bus.
func Subscribe(bus *events.Bus, s CoachService) {
	bus.Subscribe(events.BookingRated, s.OnBookingRated)
}

func (s *coachService) Create(ctx context.Context, p *auth.Principal, req *model.CoachRequest) (*model.Coach, error) {
	if err := access.Authorize(p, access.CoachCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Specialties = sanitizer.NormalizeLabels(req.Specialties)
	req.Certifications = sanitizer.NormalizeStringSlice(req.Certifications, sanitizer.TrimAndNormalize)
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Coach profile validation failed", "error", err)
		return nil, err
	}
	availability, err := normalizeAvailability(req.Availability)
	if err != nil {
		return nil, err
	}

	userID := p.UserID
	if req.UserID != "" && req.UserID != p.UserID {
		if p.Role != model.RoleAdmin {
			return nil, apperrors.Forbidden("Only admins can create a profile for another user")
		}
		userID = req.UserID
		if err := s.requireCoachUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	location := req.Location
	if location == nil {
		location = s.userLocation(ctx, userID)
	}

	coach := &model.Coach{
		UserID:         userID,
		Specialties:    req.Specialties,
		Experience:     req.Experience,
		Certifications: req.Certifications,
		HourlyRate:     req.HourlyRate,
		Availability:   availability,
		Location:       location,
		IsActive:       true,
	}

	if err := s.repo.Create(ctx, coach); err != nil {
		if errors.Is(err, coacheserrors.ErrDuplicateProfile) {
			return nil, apperrors.Duplicate("Coach profile already exists for this user")
		}
		log.Error("Failed to create coach", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to create coach profile", err)
	}

	log.Info("Coach profile created", "id", coach.ID, "user_id", coach.UserID, "specialties", coach.Specialties)
	return coach, nil
}

func (s *coachService) GetByID(ctx context.Context, id string) (*model.Coach, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Coach ID cannot be empty")
	}

	coach, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, coacheserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Coach", id)
		}
		if errors.Is(err, coacheserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid coach ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve coach", err)
	}
	return coach, nil
}

func (s *coachService) List(ctx context.Context, filter model.CoachFilter, limit int, offset int64) ([]*model.Coach, int64, error) {
	filter.Specialty = sanitizer.NormalizeLabel(filter.Specialty)
	if filter.MinExperience < 0 {
		return nil, 0, apperrors.InvalidInput("min_experience cannot be negative")
	}

	var total int64
	var coaches []*model.Coach
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		coaches, errFind = s.repo.Find(ctx, filter, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count coaches", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve coaches", errFind)
	}
	return coaches, total, nil
}

// Nearby lists active coaches within the requested radius of a point,
// nearest first.
func (s *coachService) Nearby(ctx context.Context, req *model.NearbyCoachRequest) ([]*model.Coach, error) {
	log := s.cfg.Log.FromContext(ctx)

	req.Specialty = sanitizer.NormalizeLabel(req.Specialty)
	if err := validation.Request(s.validator, req); err != nil {
		return nil, err
	}
	radius := req.RadiusKm
	if radius == 0 {
		radius = defaultNearbyRadiusKm
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultNearbyLimit
	}

	point := model.GeoPoint{Type: "Point", Coordinates: []float64{*req.Longitude, *req.Latitude}}
	filter := model.CoachFilter{Specialty: req.Specialty, MaxHourlyRate: req.MaxHourlyRate}

	coaches, err := s.repo.FindNear(ctx, point, radius*1000, filter, limit)
	if err != nil {
		log.Error("Failed to search nearby coaches", "error", err)
		return nil, apperrors.Internal("Failed to search nearby coaches", err)
	}

	log.Debug("Nearby coach search", "radius_km", radius, "results", len(coaches))
	return coaches, nil
}

// Update changes profile fields on the caller's own coach profile.
func (s *coachService) Update(ctx context.Context, p *auth.Principal, id string, update *model.CoachUpdate) (*model.Coach, error) {
	if err := access.Authorize(p, access.CoachUpdate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	if update.Specialties != nil {
		update.Specialties = sanitizer.NormalizeLabels(update.Specialties)
	}
	if update.Certifications != nil {
		update.Certifications = sanitizer.NormalizeStringSlice(update.Certifications, sanitizer.TrimAndNormalize)
	}
	if err := validation.Request(s.validator, update); err != nil {
		log.Warn("Coach update validation failed", "id", id, "error", err)
		return nil, err
	}

	set := bson.M{}
	if update.Specialties != nil {
		set["specialties"] = update.Specialties
	}
	if update.Experience != nil {
		set["experience"] = *update.Experience
	}
	if update.Certifications != nil {
		set["certifications"] = update.Certifications
	}
	if update.HourlyRate != nil {
		if update.HourlyRate.IsNegative() {
			return nil, apperrors.Validation("Invalid hourly rate", map[string]any{"hourlyRate": "cannot be negative"})
		}
		set["hourly_rate"] = *update.HourlyRate
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No fields to update")
	}

	coach, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "coach profile", coach.UserID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, coacheserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Coach", id)
		}
		log.Error("Failed to update coach", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update coach profile", err)
	}

	log.Info("Coach profile updated", "id", id, "fields", len(set), "by", p.UserID)
	return updated, nil
}

func (s *coachService) GetSchedule(ctx context.Context, id string) (model.Availability, error) {
	coach, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if coach.Availability == nil {
		return model.Availability{}, nil
	}
	return coach.Availability, nil
}

func (s *coachService) UpdateSchedule(ctx context.Context, p *auth.Principal, id string, update *model.AvailabilityUpdate) (*model.Coach, error) {
	if err := access.Authorize(p, access.CoachUpdateSchedule); err != nil {
		return nil, err
	}

	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}
	availability, err := normalizeAvailability(update.Availability)
	if err != nil {
		return nil, err
	}

	coach, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "coach profile", coach.UserID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAvailability(ctx, id, availability)
	if err != nil {
		if errors.Is(err, coacheserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Coach", id)
		}
		return nil, apperrors.Internal("Failed to update coach schedule", err)
	}

	s.cfg.Log.FromContext(ctx).Info("Coach schedule updated", "id", id, "days", len(availability))
	return updated, nil
}

// OnBookingRated recomputes the coach's mean rating. It runs inside the
// rating transaction, so the new rating is already visible to RatingStats.
func (s *coachService) OnBookingRated(ctx context.Context, evt events.Event) error {
	var payload events.BookingRatedPayload
	if err := evt.Decode(&payload); err != nil {
		return apperrors.Internal("Invalid booking rated event", err)
	}

	avg, total, err := s.ratings.RatingStats(ctx, payload.CoachID)
	if err != nil {
		return apperrors.Internal("Failed to aggregate coach rating", err)
	}

	if err := s.repo.UpdateRating(ctx, payload.CoachID, avg, total); err != nil {
		if errors.Is(err, coacheserrors.ErrNotFound) || errors.Is(err, coacheserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Coach", payload.CoachID)
		}
		return apperrors.Internal("Failed to update coach rating", err)
	}

	s.cfg.Log.FromContext(ctx).Debug("Coach rating recomputed", "coach_id", payload.CoachID, "rating", avg, "total_reviews", total)
	return nil
}

func (s *coachService) requireCoachUser(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) || errors.Is(err, usererrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("User", userID)
		}
		return apperrors.Internal("Failed to retrieve user", err)
	}
	if user.Role != model.RoleCoach {
		return apperrors.InvalidState("User " + userID + " does not have the coach role")
	}
	return nil
}

// userLocation returns the stored location of userID, or nil when the user
// has none or cannot be read.
func (s *coachService) userLocation(ctx context.Context, userID string) *model.GeoPoint {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.cfg.Log.FromContext(ctx).Warn("Could not read coach user location", "user_id", userID, "error", err)
		return nil
	}
	return user.Location
}

// normalizeAvailability lowercases day names, orders each day's windows and
// rejects windows that are empty, inverted or overlapping.
func normalizeAvailability(in model.Availability) (model.Availability, error) {
	out := make(model.Availability, len(in))
	for day, windows := range in {
		day = strings.ToLower(strings.TrimSpace(day))
		if len(windows) == 0 {
			continue
		}
		sorted := append([]model.TimeWindow(nil), windows...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

		for i, w := range sorted {
			if w.StartTime >= w.EndTime {
				return nil, apperrors.Validation("Invalid availability", map[string]any{
					"availability." + day: fmt.Sprintf("window %s must start before it ends", w.Slot()),
				})
			}
			if i > 0 && sorted[i-1].EndTime > w.StartTime {
				return nil, apperrors.Validation("Invalid availability", map[string]any{
					"availability." + day: fmt.Sprintf("windows %s and %s overlap", sorted[i-1].Slot(), w.Slot()),
				})
			}
		}
		out[day] = sorted
	}
	return out, nil
}
