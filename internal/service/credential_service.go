package service

import (
	"context"
	"fmt"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenTypeBearer is the OAuth2 token_type returned with access tokens
const TokenTypeBearer = "bearer"

// CredentialConfig holds token signing and password hashing settings.
// It is built once at startup and passed to NewCredentialService.
type CredentialConfig struct {
	SecretKey         string
	Issuer            string
	Audience          string
	AccessTokenExpiry time.Duration
	BcryptCost        int
}

// AccessToken is a signed bearer token and its expiry
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
}

// CredentialService hashes passwords and issues/validates access tokens
type CredentialService struct {
	cfg       CredentialConfig
	validator *validator.Validator
	now       func() time.Time
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(cfg CredentialConfig) (*CredentialService, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	secret := []byte(cfg.SecretKey)
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token validator: %w", err)
	}

	return &CredentialService{
		cfg:       cfg,
		validator: jwtValidator,
		now:       time.Now,
	}, nil
}

// SetClock overrides the clock used when issuing tokens
func (s *CredentialService) SetClock(now func() time.Time) {
	s.now = now
}

// HashPassword returns the bcrypt hash of password
func (s *CredentialService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the bcrypt hash
func (s *CredentialService) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs an HS256 access token whose subject is username
func (s *CredentialService) IssueToken(username string) (*AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTokenExpiry)

	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   username,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		TokenType: TokenTypeBearer,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken checks signature, issuer, audience and expiry and returns the
// subject username. Every failure is reported as domain.ErrInvalidCredentials.
func (s *CredentialService) ValidateToken(ctx context.Context, token string) (string, error) {
	claims, err := s.validator.ValidateToken(ctx, token)
	if err != nil {
		return "", domain.ErrInvalidCredentials
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	username := validatedClaims.RegisteredClaims.Subject
	if username == "" {
		return "", domain.ErrInvalidCredentials
	}

	return username, nil
}
