package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/store"
	"github.com/sirupsen/logrus"
)

const adminTokenType = "admin"

var ErrTokenRevoked = errors.New("token has been revoked")

type AdminClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and checks the HS256 tokens guarding operator endpoints.
type TokenService struct {
	secretKey []byte
	expiry    time.Duration
	revoked   store.KV
	logger    *logrus.Logger
}

// NewTokenService requires a secret of at least 32 bytes. revoked may be nil,
// in which case tokens cannot be revoked before they expire.
func NewTokenService(cfg *config.AdminConfig, revoked store.KV, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.JWTSecret)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey: secretKey,
		expiry:    cfg.TokenExpiry,
		revoked:   revoked,
		logger:    logger,
	}, nil
}

func revokedKey(jti string) string {
	return fmt.Sprintf("revoked_token:%s", jti)
}

// Issue signs a token for subject.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)
	claims := &AdminClaims{
		Type: adminTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign admin token")
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses tokenString and rejects expired, foreign or revoked tokens.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != adminTokenType {
		return nil, fmt.Errorf("invalid token type %q", claims.Type)
	}

	if s.revoked != nil {
		_, err := s.revoked.Get(ctx, revokedKey(claims.ID))
		switch {
		case err == nil:
			return nil, ErrTokenRevoked
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
	}

	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *TokenService) Revoke(ctx context.Context, claims *AdminClaims) error {
	if s.revoked == nil {
		return fmt.Errorf("token revocation is not configured")
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.revoked.Put(ctx, revokedKey(claims.ID), []byte(claims.Subject), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"subject": claims.Subject,
		"jti":     claims.ID,
	}).Info("Admin token revoked")
	return nil
}

// GenerateSecretKey returns a random 256-bit key suitable for ADMIN_JWT_SECRET.
func GenerateSecretKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}
