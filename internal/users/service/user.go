package service

import (
	"context"
	"errors"

	"teamup/internal/access"
	usererrors "teamup/internal/users/errors"
	"teamup/internal/users/repository"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
)

type UserService interface {
	Me(ctx context.Context, p *auth.Principal) (*model.User, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.User, error)
	Provision(ctx context.Context, p *auth.Principal, req *model.UserProvisionRequest) (*model.User, error)
	UpdateRole(ctx context.Context, p *auth.Principal, id string, update *model.UserRoleUpdate) (*model.User, error)
	SetActive(ctx context.Context, p *auth.Principal, id string, update *model.UserActiveUpdate) (*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	cfg       *config.Config
}

func NewUserService(repo repository.UserRepository, validator *validator.Validate, cfg *config.Config) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) Me(ctx context.Context, p *auth.Principal) (*model.User, error) {
	if err := access.Authorize(p, access.UserReadSelf); err != nil {
		return nil, err
	}
	return s.find(ctx, p.UserID)
}

func (s *userService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.User, error) {
	if err := access.Authorize(p, access.UserManage); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Provision creates an account record for an identity issued elsewhere.
// New accounts are active and default to the user role.
func (s *userService) Provision(ctx context.Context, p *auth.Principal, req *model.UserProvisionRequest) (*model.User, error) {
	if err := access.Authorize(p, access.UserProvision); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if phone := sanitizer.NormalizePhone(req.Phone); phone != "" {
		req.Phone = phone
	}
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("User provisioning validation failed", "error", err)
		return nil, err
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     req.Role,
		Location: req.Location,
		IsActive: true,
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, usererrors.ErrDuplicateEmail) {
			return nil, apperrors.Duplicate("Email is already registered")
		}
		log.Error("Failed to provision user", "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	log.Info("User provisioned", "id", user.ID, "role", user.Role)
	return user, nil
}

func (s *userService) UpdateRole(ctx context.Context, p *auth.Principal, id string, update *model.UserRoleUpdate) (*model.User, error) {
	if err := access.Authorize(p, access.UserManage); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}
	if id == p.UserID && update.Role != model.RoleAdmin {
		return nil, apperrors.InvalidState("Admins cannot revoke their own admin role")
	}

	user, err := s.update(ctx, id, bson.M{"role": update.Role})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.FromContext(ctx).Info("User role updated", "id", id, "role", update.Role, "by", p.UserID)
	return user, nil
}

// SetActive enables or soft-disables an account. Disabled users fail
// authentication on their next request.
func (s *userService) SetActive(ctx context.Context, p *auth.Principal, id string, update *model.UserActiveUpdate) (*model.User, error) {
	if err := access.Authorize(p, access.UserManage); err != nil {
		return nil, err
	}
	if err := validation.Request(s.validator, update); err != nil {
		return nil, err
	}
	if id == p.UserID && !*update.IsActive {
		return nil, apperrors.InvalidState("Admins cannot disable their own account")
	}

	user, err := s.update(ctx, id, bson.M{"is_active": *update.IsActive})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.FromContext(ctx).Info("User activation changed", "id", id, "is_active", user.IsActive, "by", p.UserID)
	return user, nil
}

func (s *userService) find(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return user, nil
}

func (s *userService) update(ctx context.Context, id string, fields bson.M) (*model.User, error) {
	user, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return user, nil
}

func mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, usererrors.ErrNotFound):
		return apperrors.NotFoundWithID("User", id)
	case errors.Is(err, usererrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid user ID format")
	default:
		return apperrors.Internal("Failed to access user", err)
	}
}
