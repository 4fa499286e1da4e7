package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type UserService interface {
	Register(ctx context.Context, name, email, password string, prefs models.UserPreferences) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs models.UserPreferences) error
	Retire(ctx context.Context, userID string) error
}

type userService struct {
	users pgrepo.UserRepository
}

func NewUserService(users pgrepo.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Register(ctx context.Context, name, email, password string, prefs models.UserPreferences) (*models.User, error) {
	const op = "UserService.Register"

	if name == "" || email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "name, email, and password are required", nil)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	prefsJSON, _ := json.Marshal(prefs)
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Preferences:  datatypes.JSON(prefsJSON),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if utils.IsCode(err, utils.CodeConflict) {
			return nil, err
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "UserService.Authenticate"

	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to look up user", err)
	}
	if u.Retired {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Get"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}

func (s *userService) UpdatePreferences(ctx context.Context, userID string, prefs models.UserPreferences) error {
	const op = "UserService.UpdatePreferences"

	if userID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	prefsJSON, _ := json.Marshal(prefs)
	if err := s.users.UpdatePreferences(ctx, userID, prefsJSON); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to update preferences", err)
	}
	return nil
}

func (s *userService) Retire(ctx context.Context, userID string) error {
	const op = "UserService.Retire"

	if userID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := s.users.Retire(ctx, userID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to retire user", err)
	}
	return nil
}
