package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTokenService(t *testing.T, expiry time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService(&config.AdminConfig{JWTSecret: testSecret, TokenExpiry: expiry}, store.NewMemoryStore(), testLogger())
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService(&config.AdminConfig{JWTSecret: "short"}, nil, testLogger())
	assert.Error(t, err)
}

func TestTokenService_IssueVerifyRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newTokenService(t, time.Hour)

	token, expiresAt, err := svc.Issue("ops@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	require.NoError(t, svc.Revoke(ctx, claims))
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	svc := newTokenService(t, time.Hour)

	expired := newTokenService(t, -time.Minute)
	token, _, err := expired.Issue("ops")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, token)
	assert.Error(t, err)

	other, err := NewTokenService(&config.AdminConfig{JWTSecret: strings.Repeat("x", 32), TokenExpiry: time.Hour}, nil, testLogger())
	require.NoError(t, err)
	token, _, err = other.Issue("ops")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, token)
	assert.Error(t, err)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, &AdminClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := wrongType.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, signed)
	assert.Error(t, err)

	_, err = svc.Verify(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestGenerateSecretKey(t *testing.T) {
	key, err := GenerateSecretKey()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(key), 32)
}
