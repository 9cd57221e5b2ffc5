package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/models"
	"github.com/qcom/callflow/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// E.164: +[country code][number], at most 15 digits after the plus.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NormalizePhone trims phone and checks it is in E.164 form.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhoneFormat
	}
	return phone, nil
}

// CodeSender delivers a verification code to a phone number.
type CodeSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type VerificationService struct {
	repo     *repository.VerificationRepository
	sender   CodeSender
	cfg      *config.VerificationConfig
	logger   *logrus.Logger
	now      func() time.Time
	generate func(length int) (string, error)
}

func NewVerificationService(repo *repository.VerificationRepository, sender CodeSender, cfg *config.VerificationConfig, logger *logrus.Logger) *VerificationService {
	return &VerificationService{
		repo:     repo,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		generate: generateRandomCode,
	}
}

// WithClock replaces the time source.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// WithCodeGenerator replaces the random code generator.
func (s *VerificationService) WithCodeGenerator(generate func(length int) (string, error)) *VerificationService {
	s.generate = generate
	return s
}

// IssueCode creates a fresh code for phone, replacing any live one, and sends
// it by SMS. When delivery fails the entry is kept and the code is returned
// together with an error wrapping ErrDeliveryFailed.
func (s *VerificationService) IssueCode(ctx context.Context, phone string) (string, time.Time, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return "", time.Time{}, err
	}

	code, err := s.generate(s.cfg.CodeLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.now()
	entry := models.VerificationEntry{
		CodeHash:  string(hash),
		Phone:     phone,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}
	if err := s.repo.Store(ctx, entry); err != nil {
		return "", time.Time{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"phone":      phone,
		"expires_at": entry.ExpiresAt,
	}).Info("Verification code issued")

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.cfg.Expiry.Minutes()))
	if _, err := s.sender.SendSMS(ctx, phone, body); err != nil {
		s.logger.WithError(err).WithField("phone", phone).Error("Failed to deliver verification code")
		return code, entry.ExpiresAt, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return code, entry.ExpiresAt, nil
}

// VerifyCode checks code against the live entry for phone. The whole check
// runs as one atomic step on that entry. On success the phone joins the
// verified set and the verification time is returned.
func (s *VerificationService) VerifyCode(ctx context.Context, phone, code string) (time.Time, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return time.Time{}, err
	}
	code = strings.TrimSpace(code)
	now := s.now()

	err = s.repo.Mutate(ctx, phone, func(entry *models.VerificationEntry) (*models.VerificationEntry, bool, error) {
		if entry == nil {
			return nil, false, ErrNotFound
		}
		if entry.Expired(now) {
			return nil, true, ErrExpired
		}
		// Exhaustion is detected on the lookup after the last wrong code.
		if entry.Attempts >= s.cfg.MaxAttempts {
			return nil, true, ErrAttemptsExhausted
		}
		if bcrypt.CompareHashAndPassword([]byte(entry.CodeHash), []byte(code)) != nil {
			entry.Attempts++
			return entry, true, &CodeMismatchError{Remaining: s.cfg.MaxAttempts - entry.Attempts}
		}
		return nil, true, nil
	})

	logger := s.logger.WithField("phone", phone)
	var mismatch *CodeMismatchError
	switch {
	case err == nil:
	case errors.As(err, &mismatch):
		logger.WithField("remaining", mismatch.Remaining).Info("Verification code mismatch")
		return time.Time{}, err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired), errors.Is(err, ErrAttemptsExhausted):
		logger.WithError(err).Info("Verification rejected")
		return time.Time{}, err
	default:
		logger.WithError(err).Error("Verification failed")
		return time.Time{}, fmt.Errorf("failed to verify code: %w", err)
	}

	if err := s.repo.MarkVerified(ctx, phone); err != nil {
		logger.WithError(err).Error("Failed to mark phone as verified")
		return time.Time{}, fmt.Errorf("failed to mark phone as verified: %w", err)
	}

	logger.Info("Phone number verified")
	return now, nil
}

func (s *VerificationService) IsVerified(ctx context.Context, phone string) (bool, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	return s.repo.IsVerified(ctx, phone)
}

// ListVerified returns the verified numbers in sorted order.
func (s *VerificationService) ListVerified(ctx context.Context) ([]string, error) {
	return s.repo.ListVerified(ctx)
}

// Reset removes phone from the verified set and drops any live code. It is
// idempotent.
func (s *VerificationService) Reset(ctx context.Context, phone string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	if err := s.repo.UnmarkVerified(ctx, phone); err != nil {
		return fmt.Errorf("failed to reset verification: %w", err)
	}
	if err := s.repo.Delete(ctx, phone); err != nil {
		return fmt.Errorf("failed to reset verification: %w", err)
	}
	s.logger.WithField("phone", phone).Info("Verification reset")
	return nil
}

func generateRandomCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(num.String())
	}
	return b.String(), nil
}
