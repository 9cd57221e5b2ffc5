package repository

import (
	"context"
	"fmt"

	"github.com/qcom/callflow/internal/store"
	"github.com/sirupsen/logrus"
)

// ConsentRepository records per-number consent decisions for a consent type
// such as "outbound_call".
type ConsentRepository struct {
	backend store.Backend
	logger  *logrus.Logger
}

func NewConsentRepository(backend store.Backend, logger *logrus.Logger) *ConsentRepository {
	return &ConsentRepository{
		backend: backend,
		logger:  logger,
	}
}

func grantedSet(consentType string) string { return "consent:" + consentType + ":granted" }
func refusedSet(consentType string) string { return "consent:" + consentType + ":refused" }

func (r *ConsentRepository) HasConsent(ctx context.Context, phoneNumber, consentType string) (bool, error) {
	return r.backend.IsMember(ctx, grantedSet(consentType), phoneNumber)
}

// Record stores the latest decision, replacing the opposite one.
func (r *ConsentRepository) Record(ctx context.Context, phoneNumber, consentType string, granted bool) error {
	add, remove := grantedSet(consentType), refusedSet(consentType)
	if !granted {
		add, remove = remove, add
	}
	if err := r.backend.AddMember(ctx, add, phoneNumber); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}
	if err := r.backend.RemoveMember(ctx, remove, phoneNumber); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"phone":        phoneNumber,
		"consent_type": consentType,
		"granted":      granted,
	}).Info("Consent recorded")
	return nil
}

func (r *ConsentRepository) Refused(ctx context.Context, consentType string) ([]string, error) {
	return r.backend.Members(ctx, refusedSet(consentType))
}
