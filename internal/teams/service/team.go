package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"teamup/internal/access"
	teamserrors "teamup/internal/teams/errors"
	"teamup/internal/teams/repository"
	usererrors "teamup/internal/users/errors"
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

type TeamService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.TeamRequest) (*model.Team, error)
	GetByID(ctx context.Context, id string) (*model.Team, error)
	AddPlayer(ctx context.Context, p *auth.Principal, teamID string, req *model.TeamPlayerRequest) (*model.Team, error)
	RemovePlayer(ctx context.Context, p *auth.Principal, teamID, userID string) (*model.Team, error)
	UpdatePlayerRole(ctx context.Context, p *auth.Principal, teamID, userID string, update *model.TeamRoleUpdate) (*model.Team, error)
	List(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, int64, error)
	Search(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, update *model.TeamUpdate) (*model.Team, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type teamService struct {
	repo      repository.TeamRepository
	users     access.UserFinder
	validator *validator.Validate
	cfg       *config.Config
}

func NewTeamService(repo repository.TeamRepository, users access.UserFinder, validator *validator.Validate, cfg *config.Config) TeamService {
	return &teamService{
		repo:      repo,
		users:     users,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *teamService) Create(ctx context.Context, p *auth.Principal, req *model.TeamRequest) (*model.Team, error) {
	if err := access.Authorize(p, access.TeamCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Name = sanitizer.NormalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Sport = sanitizer.NormalizeLabel(req.Sport)
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Team validation failed", "error", err)
		return nil, err
	}

	team := &model.Team{
		Name:        req.Name,
		Description: req.Description,
		Sport:       req.Sport,
		CaptainID:   p.UserID,
		MaxPlayers:  req.MaxPlayers,
		IsActive:    true,
		Players: []model.TeamMember{{
			UserID:   p.UserID,
			Role:     model.TeamRoleCaptain,
			JoinedAt: mongodb.Now(),
		}},
	}
	if err := s.repo.Create(ctx, team); err != nil {
		log.Error("Failed to create team", "error", err)
		return nil, apperrors.Internal("Failed to create team", err)
	}

	log.Info("Team created successfully", "id", team.ID, "name", team.Name, "sport", team.Sport, "captain_id", team.CaptainID)
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id string) (*model.Team, error) {
	return s.findTeam(ctx, id)
}

func (s *teamService) AddPlayer(ctx context.Context, p *auth.Principal, teamID string, req *model.TeamPlayerRequest) (*model.Team, error) {
	if err := access.Authorize(p, access.TeamManage); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, req); err != nil {
		return nil, err
	}

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "team", team.CaptainID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) || errors.Is(err, usererrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("User", req.UserID)
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	if !user.IsActive {
		return nil, apperrors.InvalidInput("User account is disabled")
	}

	role := req.Role
	if role == "" {
		role = model.TeamRolePlayer
	}

	updated, err := s.repo.AddPlayer(ctx, team.ID, model.TeamMember{
		UserID:   user.ID,
		Role:     role,
		JoinedAt: mongodb.Now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, teamserrors.ErrAlreadyMember):
			return nil, apperrors.Duplicate("User is already on the team")
		case errors.Is(err, teamserrors.ErrTeamFull):
			return nil, apperrors.InvalidState("Team is full")
		}
		return nil, s.mapRepoError(err, team.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Player added to team", "team_id", team.ID, "user_id", user.ID, "role", role, "players", len(updated.Players))
	return updated, nil
}

// RemovePlayer lets the captain or an admin drop a member, and any member
// leave on their own. The captain is never removed.
func (s *teamService) RemovePlayer(ctx context.Context, p *auth.Principal, teamID, userID string) (*model.Team, error) {
	if err := access.Authorize(p, access.TeamManage); err != nil {
		return nil, err
	}

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "team", team.CaptainID, userID); err != nil {
		return nil, err
	}
	if userID == team.CaptainID {
		return nil, apperrors.InvalidState("The captain cannot be removed from the team")
	}

	updated, err := s.repo.RemovePlayer(ctx, team.ID, userID)
	if err != nil {
		return nil, s.mapRepoError(err, team.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Player removed from team", "team_id", team.ID, "user_id", userID, "by", p.UserID)
	return updated, nil
}

func (s *teamService) UpdatePlayerRole(ctx context.Context, p *auth.Principal, teamID, userID string, update *model.TeamRoleUpdate) (*model.Team, error) {
	if err := access.Authorize(p, access.TeamManage); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "team", team.CaptainID); err != nil {
		return nil, err
	}
	if userID == team.CaptainID {
		return nil, apperrors.InvalidState("The captain's role cannot be changed")
	}

	updated, err := s.repo.SetPlayerRole(ctx, team.ID, userID, update.Role)
	if err != nil {
		return nil, s.mapRepoError(err, team.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Team player role updated", "team_id", team.ID, "user_id", userID, "role", update.Role)
	return updated, nil
}

func (s *teamService) List(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, int64, error) {
	filter.Query = ""
	return s.list(ctx, filter, limit, offset)
}

func (s *teamService) Search(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, int64, error) {
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	if filter.Query == "" {
		return nil, 0, apperrors.InvalidInput("'q' query parameter is required")
	}
	return s.list(ctx, filter, limit, offset)
}

// Update lets the captain or an admin change team details. Lowering
// max_players below the current roster is refused.
func (s *teamService) Update(ctx context.Context, p *auth.Principal, id string, update *model.TeamUpdate) (*model.Team, error) {
	if err := access.Authorize(p, access.TeamManage); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	set := bson.M{}
	if update.Name != nil {
		name := sanitizer.NormalizeName(*update.Name)
		update.Name = &name
		set["name"] = name
	}
	if update.Description != nil {
		description := strings.TrimSpace(*update.Description)
		update.Description = &description
		set["description"] = description
	}
	if update.MaxPlayers != nil {
		set["max_players"] = *update.MaxPlayers
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}
	if err := validation.Request(s.validator, update); err != nil {
		log.Warn("Team update validation failed", "id", id, "error", err)
		return nil, err
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No fields to update")
	}

	team, err := s.findTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "team", team.CaptainID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, team.ID, set)
	if err != nil {
		if errors.Is(err, teamserrors.ErrTeamFull) {
			return nil, apperrors.InvalidState("Team already has more players than the new maximum")
		}
		return nil, s.mapRepoError(err, team.ID)
	}

	log.Info("Team updated", "id", team.ID, "fields", len(set), "by", p.UserID)
	return updated, nil
}

func (s *teamService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := access.Authorize(p, access.TeamManage); err != nil {
		return err
	}

	team, err := s.findTeam(ctx, id)
	if err != nil {
		return err
	}
	if err := access.RequireOwner(p, "team", team.CaptainID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, team.ID); err != nil {
		return s.mapRepoError(err, team.ID)
	}

	s.cfg.Log.FromContext(ctx).Info("Team deleted", "id", team.ID, "by", p.UserID)
	return nil
}

func (s *teamService) list(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, int64, error) {
	filter.Sport = sanitizer.NormalizeLabel(filter.Sport)

	var total int64
	var teams []*model.Team
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		teams, errFind = s.repo.Find(ctx, filter, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count teams", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve teams", errFind)
	}
	return teams, total, nil
}

func (s *teamService) findTeam(ctx context.Context, id string) (*model.Team, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Team ID cannot be empty")
	}

	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return team, nil
}

func (s *teamService) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, teamserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Team", id)
	case errors.Is(err, teamserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid team ID format")
	case errors.Is(err, teamserrors.ErrNotMember):
		return apperrors.NotFound("Team member")
	}
	return apperrors.Internal("Failed to update team", err)
}
