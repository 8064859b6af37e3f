package service

import (
	"context"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
)

// UserService handles the caller's own profile
type UserService struct {
	userRepo domain.UserRepository
	auth     *AuthService
}

// NewUserService creates a new UserService
func NewUserService(userRepo domain.UserRepository, auth *AuthService) *UserService {
	return &UserService{
		userRepo: userRepo,
		auth:     auth,
	}
}

// UpdateUserInput holds optional profile changes. Nil fields are left as-is.
type UpdateUserInput struct {
	Email    *string
	Username *string
	Password *string
}

// GetMe returns the user with the given ID
func (s *UserService) GetMe(ctx context.Context, userID int32) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateMe applies the supplied profile fields. A new password is re-hashed.
func (s *UserService) UpdateMe(ctx context.Context, userID int32, input UpdateUserInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		if err := s.auth.ensureEmailAvailable(ctx, email, userID); err != nil {
			return nil, err
		}
		user.Email = email
	}

	if input.Username != nil {
		username, err := normalizeUsername(*input.Username)
		if err != nil {
			return nil, err
		}
		if err := s.auth.ensureUsernameAvailable(ctx, username, userID); err != nil {
			return nil, err
		}
		user.Username = username
	}

	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hashed, err := s.auth.credentials.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hashed
	}

	return s.userRepo.Update(ctx, user)
}
