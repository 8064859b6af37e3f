package service

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-at-least-32-bytes"

func testCredentialConfig() CredentialConfig {
	return CredentialConfig{
		SecretKey:         testSecret,
		Issuer:            "ledgerly",
		Audience:          "ledgerly-api",
		AccessTokenExpiry: 30 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
	}
}

func newTestCredentialService(t *testing.T) *CredentialService {
	t.Helper()
	svc, err := NewCredentialService(testCredentialConfig())
	require.NoError(t, err)
	return svc
}

func TestCredentialService_RequiresSecret(t *testing.T) {
	cfg := testCredentialConfig()
	cfg.SecretKey = ""

	_, err := NewCredentialService(cfg)
	assert.Error(t, err)
}

func TestCredentialService_HashAndVerify(t *testing.T) {
	svc := newTestCredentialService(t)

	hash, err := svc.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, svc.VerifyPassword(hash, "correct horse"))
	assert.False(t, svc.VerifyPassword(hash, "wrong horse"))
	assert.False(t, svc.VerifyPassword("not-a-hash", "correct horse"))
}

func TestCredentialService_HashIsSalted(t *testing.T) {
	svc := newTestCredentialService(t)

	first, err := svc.HashPassword("password123")
	require.NoError(t, err)
	second, err := svc.HashPassword("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCredentialService_IssueAndValidate(t *testing.T) {
	svc := newTestCredentialService(t)
	now := time.Now()
	svc.SetClock(func() time.Time { return now })

	token, err := svc.IssueToken("alice")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, token.TokenType)
	assert.Equal(t, now.Add(30*time.Minute), token.ExpiresAt)

	username, err := svc.ValidateToken(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestCredentialService_ValidateToken_Rejects(t *testing.T) {
	svc := newTestCredentialService(t)

	expired := newTestCredentialService(t)
	expired.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expiredToken, err := expired.IssueToken("alice")
	require.NoError(t, err)

	otherSecretCfg := testCredentialConfig()
	otherSecretCfg.SecretKey = "another-secret-key-that-is-32-bytes-long"
	otherSecret, err := NewCredentialService(otherSecretCfg)
	require.NoError(t, err)
	otherSecretToken, err := otherSecret.IssueToken("alice")
	require.NoError(t, err)

	otherIssuerCfg := testCredentialConfig()
	otherIssuerCfg.Issuer = "someone-else"
	otherIssuer, err := NewCredentialService(otherIssuerCfg)
	require.NoError(t, err)
	otherIssuerToken, err := otherIssuer.IssueToken("alice")
	require.NoError(t, err)

	otherAudienceCfg := testCredentialConfig()
	otherAudienceCfg.Audience = "another-api"
	otherAudience, err := NewCredentialService(otherAudienceCfg)
	require.NoError(t, err)
	otherAudienceToken, err := otherAudience.IssueToken("alice")
	require.NoError(t, err)

	noSubject, err := svc.IssueToken("")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "malformed", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "expired", token: expiredToken.Token},
		{name: "wrong signature", token: otherSecretToken.Token},
		{name: "wrong issuer", token: otherIssuerToken.Token},
		{name: "wrong audience", token: otherAudienceToken.Token},
		{name: "empty subject", token: noSubject.Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, err := svc.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
			assert.Empty(t, username)
		})
	}
}
