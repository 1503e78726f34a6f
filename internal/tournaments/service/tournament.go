package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"teamup/internal/access"
	teamserrors "teamup/internal/teams/errors"
	tournamentserrors "teamup/internal/tournaments/errors"
	"teamup/internal/tournaments/repository"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
)

// TeamFinder resolves the team asking to register.
type TeamFinder interface {
	FindByID(ctx context.Context, id string) (*model.Team, error)
}

type TournamentService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.TournamentRequest) (*model.Tournament, error)
	GetByID(ctx context.Context, id string) (*model.Tournament, error)
	RegisterTeam(ctx context.Context, p *auth.Principal, id string, req *model.TournamentRegistrationRequest) (*model.Tournament, error)
	UpdateTeamStatus(ctx context.Context, p *auth.Principal, id, teamID string, update *model.RegistrationStatusUpdate) (*model.Tournament, error)
	List(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, int64, error)
	Search(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, update *model.TournamentUpdate) (*model.Tournament, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type tournamentService struct {
	repo      repository.TournamentRepository
	teams     TeamFinder
	validator *validator.Validate
	cfg       *config.Config
	now       func() time.Time
}

func NewTournamentService(repo repository.TournamentRepository, teams TeamFinder, validator *validator.Validate, cfg *config.Config) TournamentService {
	return &tournamentService{
		repo:      repo,
		teams:     teams,
		validator: validator,
		cfg:       cfg,
		now:       mongodb.Now,
	}
}

func (s *tournamentService) Create(ctx context.Context, p *auth.Principal, req *model.TournamentRequest) (*model.Tournament, error) {
	if err := access.Authorize(p, access.TournamentCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Name = sanitizer.NormalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Sport = sanitizer.NormalizeLabel(req.Sport)
	req.Format = sanitizer.NormalizeLabel(req.Format)
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Tournament validation failed", "error", err)
		return nil, err
	}
	if err := s.checkSchedule(req); err != nil {
		log.Warn("Tournament schedule rejected", "error", err)
		return nil, err
	}

	tournament := &model.Tournament{
		Name:                 req.Name,
		Description:          req.Description,
		Sport:                req.Sport,
		Format:               req.Format,
		OrganizerID:          p.UserID,
		StartDate:            req.StartDate.UTC(),
		EndDate:              req.EndDate.UTC(),
		RegistrationDeadline: req.RegistrationDeadline.UTC(),
		MaxTeams:             req.MaxTeams,
		EntryFee:             req.EntryFee,
		Teams:                []model.TeamRegistration{},
	}
	if err := s.repo.Create(ctx, tournament); err != nil {
		log.Error("Failed to create tournament", "error", err)
		return nil, apperrors.Internal("Failed to create tournament", err)
	}

	log.Info("Tournament created successfully",
		"id", tournament.ID,
		"name", tournament.Name,
		"sport", tournament.Sport,
		"start_date", tournament.StartDate,
		"max_teams", tournament.MaxTeams,
	)
	return tournament, nil
}

func (s *tournamentService) checkSchedule(req *model.TournamentRequest) error {
	return s.checkDates(req.RegistrationDeadline, req.StartDate, req.EndDate, true)
}

// checkDates requires a deadline strictly before the start, and a start no
// later than the end. A newly set deadline must also be in the future.
func (s *tournamentService) checkDates(deadline, start, end time.Time, newDeadline bool) error {
	details := map[string]any{}
	if newDeadline && !deadline.After(s.now()) {
		details["registrationDeadline"] = "must be in the future"
	}
	if !deadline.Before(start) {
		details["registrationDeadline"] = "must be before startDate"
	}
	if end.Before(start) {
		details["endDate"] = "must not be before startDate"
	}
	if len(details) > 0 {
		return apperrors.Validation("Invalid tournament schedule", details)
	}
	return nil
}

func (s *tournamentService) GetByID(ctx context.Context, id string) (*model.Tournament, error) {
	return s.findTournament(ctx, id)
}

func (s *tournamentService) RegisterTeam(ctx context.Context, p *auth.Principal, id string, req *model.TournamentRegistrationRequest) (*model.Tournament, error) {
	if err := access.Authorize(p, access.TournamentRegister); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, req); err != nil {
		return nil, err
	}

	tournament, err := s.findTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	team, err := s.teams.FindByID(ctx, req.TeamID)
	if err != nil {
		if errors.Is(err, teamserrors.ErrNotFound) || errors.Is(err, teamserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Team", req.TeamID)
		}
		return nil, apperrors.Internal("Failed to retrieve team", err)
	}
	if err := access.RequireOwner(p, "team", team.CaptainID); err != nil {
		return nil, err
	}
	if !team.IsActive {
		return nil, apperrors.InvalidState("Team is not active")
	}
	if team.Sport != tournament.Sport {
		return nil, apperrors.InvalidInput("Team plays " + team.Sport + " but the tournament is " + tournament.Sport)
	}

	now := s.now()
	if !now.Before(tournament.RegistrationDeadline) {
		return nil, apperrors.InvalidState("Registration deadline has passed")
	}

	updated, err := s.repo.RegisterTeam(ctx, tournament.ID, model.TeamRegistration{
		TeamID:       team.ID,
		Status:       model.RegistrationPending,
		RegisteredAt: now,
	}, now)
	if err != nil {
		return nil, s.mapRepoError(err, tournament.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Team registered for tournament",
		"tournament_id", tournament.ID,
		"team_id", team.ID,
		"teams", len(updated.Teams),
	)
	return updated, nil
}

func (s *tournamentService) UpdateTeamStatus(ctx context.Context, p *auth.Principal, id, teamID string, update *model.RegistrationStatusUpdate) (*model.Tournament, error) {
	if err := access.Authorize(p, access.TournamentManage); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	tournament, err := s.findTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "tournament", tournament.OrganizerID); err != nil {
		return nil, err
	}

	updated, err := s.repo.SetRegistrationStatus(ctx, tournament.ID, teamID, update.Status)
	if err != nil {
		return nil, s.mapRepoError(err, tournament.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Tournament registration updated", "tournament_id", id, "team_id", teamID, "status", update.Status)
	return updated, nil
}

func (s *tournamentService) List(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, int64, error) {
	filter.Query = ""
	return s.list(ctx, filter, limit, offset)
}

func (s *tournamentService) Search(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, int64, error) {
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	if filter.Query == "" {
		return nil, 0, apperrors.InvalidInput("'q' query parameter is required")
	}
	return s.list(ctx, filter, limit, offset)
}

// Update lets the organizer or an admin edit details and the schedule. The
// merged schedule is checked as a whole.
func (s *tournamentService) Update(ctx context.Context, p *auth.Principal, id string, update *model.TournamentUpdate) (*model.Tournament, error) {
	if err := access.Authorize(p, access.TournamentManage); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	if err := validation.Request(s.validator, update); err != nil {
		log.Warn("Tournament update validation failed", "id", id, "error", err)
		return nil, err
	}

	tournament, err := s.findTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "tournament", tournament.OrganizerID); err != nil {
		return nil, err
	}

	set := bson.M{}
	if update.Name != nil {
		set["name"] = sanitizer.NormalizeName(*update.Name)
	}
	if update.Description != nil {
		set["description"] = strings.TrimSpace(*update.Description)
	}
	if update.MaxTeams != nil {
		set["max_teams"] = *update.MaxTeams
	}
	if update.EntryFee != nil {
		if update.EntryFee.IsNegative() {
			return nil, apperrors.Validation("Invalid entry fee", map[string]any{"entryFee": "cannot be negative"})
		}
		set["entry_fee"] = *update.EntryFee
	}

	deadline, start, end := tournament.RegistrationDeadline, tournament.StartDate, tournament.EndDate
	if update.RegistrationDeadline != nil {
		deadline = update.RegistrationDeadline.UTC()
		set["registration_deadline"] = deadline
	}
	if update.StartDate != nil {
		start = update.StartDate.UTC()
		set["start_date"] = start
	}
	if update.EndDate != nil {
		end = update.EndDate.UTC()
		set["end_date"] = end
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No fields to update")
	}
	if update.RegistrationDeadline != nil || update.StartDate != nil || update.EndDate != nil {
		if err := s.checkDates(deadline, start, end, update.RegistrationDeadline != nil); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, tournament.ID, set)
	if err != nil {
		if errors.Is(err, tournamentserrors.ErrFull) {
			return nil, apperrors.InvalidState("Tournament already has more teams than the new maximum")
		}
		return nil, s.mapRepoError(err, tournament.ID)
	}

	log.Info("Tournament updated", "id", tournament.ID, "fields", len(set), "by", p.UserID)
	return updated, nil
}

func (s *tournamentService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := access.Authorize(p, access.TournamentManage); err != nil {
		return err
	}

	tournament, err := s.findTournament(ctx, id)
	if err != nil {
		return err
	}
	if err := access.RequireOwner(p, "tournament", tournament.OrganizerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, tournament.ID); err != nil {
		return s.mapRepoError(err, tournament.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Tournament deleted", "id", tournament.ID, "registrations", len(tournament.Teams), "by", p.UserID)
	return nil
}

func (s *tournamentService) list(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, int64, error) {
	filter.Sport = sanitizer.NormalizeLabel(filter.Sport)
	filter.Phase = sanitizer.NormalizeLabel(filter.Phase)
	if filter.Phase != "" && !slices.Contains(model.TournamentPhases, filter.Phase) {
		return nil, 0, apperrors.InvalidInput("status must be one of: " + strings.Join(model.TournamentPhases, ", "))
	}
	filter.Now = s.now()

	var total int64
	var tournaments []*model.Tournament
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		tournaments, errFind = s.repo.Find(ctx, filter, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count tournaments", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve tournaments", errFind)
	}
	return tournaments, total, nil
}

func (s *tournamentService) findTournament(ctx context.Context, id string) (*model.Tournament, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Tournament ID cannot be empty")
	}

	tournament, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return tournament, nil
}

func (s *tournamentService) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, tournamentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Tournament", id)
	case errors.Is(err, tournamentserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid tournament ID format")
	case errors.Is(err, tournamentserrors.ErrAlreadyRegistered):
		return apperrors.Duplicate("Team is already registered for this tournament")
	case errors.Is(err, tournamentserrors.ErrFull):
		return apperrors.InvalidState("Tournament is full")
	case errors.Is(err, tournamentserrors.ErrRegistrationClosed):
		return apperrors.InvalidState("Registration deadline has passed")
	case errors.Is(err, tournamentserrors.ErrNotRegistered):
		return apperrors.NotFound("Team registration")
	}
	return apperrors.Internal("Failed to update tournament", err)
}
