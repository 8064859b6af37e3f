package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
)

// AuthService handles registration, login and token resolution
type AuthService struct {
	userRepo    domain.UserRepository
	credentials *CredentialService
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo domain.UserRepository, credentials *CredentialService) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		credentials: credentials,
	}
}

// RegisterInput holds the input for registering a user
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates a new user. Email and username are checked independently so
// the caller learns which one is taken.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	username, err := normalizeUsername(input.Username)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.ensureEmailAvailable(ctx, email, 0); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameAvailable(ctx, username, 0); err != nil {
		return nil, err
	}

	hashed, err := s.credentials.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, &domain.User{
		Email:          email,
		Username:       username,
		HashedPassword: hashed,
		IsActive:       true,
	})
}

// Authenticate verifies a username/password pair. Unknown users, wrong
// passwords and inactive users all return ErrInvalidLogin.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidLogin
		}
		return nil, err
	}

	if !s.credentials.VerifyPassword(user.HashedPassword, password) || !user.IsActive {
		return nil, domain.ErrInvalidLogin
	}

	return user, nil
}

// Login authenticates and issues an access token
func (s *AuthService) Login(ctx context.Context, username, password string) (*AccessToken, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.credentials.IssueToken(user.Username)
}

// ResolveUser validates a bearer token and loads the active user it names
func (s *AuthService) ResolveUser(ctx context.Context, token string) (*domain.User, error) {
	username, err := s.credentials.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// ensureEmailAvailable fails with ErrEmailTaken if email belongs to a user
// other than exceptUserID
func (s *AuthService) ensureEmailAvailable(ctx context.Context, email string, exceptUserID int32) error {
	return ensureAvailable(ctx, s.userRepo.GetByEmail, email, exceptUserID, domain.ErrEmailTaken)
}

func (s *AuthService) ensureUsernameAvailable(ctx context.Context, username string, exceptUserID int32) error {
	return ensureAvailable(ctx, s.userRepo.GetByUsername, username, exceptUserID, domain.ErrUsernameTaken)
}

func ensureAvailable(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value string, exceptUserID int32, taken error) error {
	existing, err := lookup(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == exceptUserID {
		return nil
	}
	return taken
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || len(email) > domain.MaxNameLength {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < domain.MinUsernameLength || len(username) > domain.MaxUsernameLength {
		return "", domain.ErrInvalidUsername
	}
	if strings.ContainsAny(username, " \t\n@") {
		return "", domain.ErrInvalidUsername
	}
	return username, nil
}

func validatePassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.ErrPasswordTooShort
	}
	return nil
}
