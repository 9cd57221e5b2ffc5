package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qcom/callflow/internal/models"
	"github.com/qcom/callflow/internal/store"
	"github.com/sirupsen/logrus"
)

const verifiedSet = "verified_numbers"

// EntryMutation is applied atomically to the live entry of one phone number.
// entry is nil when no entry exists. Returning a nil entry deletes it; keep
// reports whether anything should be written at all.
type EntryMutation func(entry *models.VerificationEntry) (next *models.VerificationEntry, keep bool, err error)

type VerificationRepository struct {
	backend store.Backend
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewVerificationRepository stores entries with the given retention. The
// retention must outlive the code expiry so an expired entry is still found
// and reported as expired rather than missing.
func NewVerificationRepository(backend store.Backend, retention time.Duration, logger *logrus.Logger) *VerificationRepository {
	return &VerificationRepository{
		backend: backend,
		ttl:     retention,
		logger:  logger,
	}
}

func entryKey(phoneNumber string) string {
	return fmt.Sprintf("verification:%s", phoneNumber)
}

// Store overwrites any entry for the phone number.
func (r *VerificationRepository) Store(ctx context.Context, entry models.VerificationEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal verification entry: %w", err)
	}
	if err := r.backend.Put(ctx, entryKey(entry.Phone), data, r.ttl); err != nil {
		r.logger.WithError(err).Error("Failed to store verification entry")
		return fmt.Errorf("failed to store verification entry: %w", err)
	}
	return nil
}

// Get returns nil when no entry exists.
func (r *VerificationRepository) Get(ctx context.Context, phoneNumber string) (*models.VerificationEntry, error) {
	data, err := r.backend.Get(ctx, entryKey(phoneNumber))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification entry: %w", err)
	}

	var entry models.VerificationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification entry: %w", err)
	}
	return &entry, nil
}

// Mutate runs fn as one atomic step on the entry for phoneNumber. The error
// returned by fn is passed through after its write commits.
func (r *VerificationRepository) Mutate(ctx context.Context, phoneNumber string, fn EntryMutation) error {
	return store.Update(ctx, r.backend, entryKey(phoneNumber), r.ttl, func(current []byte, found bool) ([]byte, store.Op, error) {
		var entry *models.VerificationEntry
		if found {
			entry = &models.VerificationEntry{}
			if err := json.Unmarshal(current, entry); err != nil {
				return nil, store.OpNone, fmt.Errorf("failed to unmarshal verification entry: %w", err)
			}
		}

		next, keep, result := fn(entry)
		if !keep {
			return nil, store.OpNone, result
		}
		if next == nil {
			return nil, store.OpDelete, result
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, store.OpNone, fmt.Errorf("failed to marshal verification entry: %w", err)
		}
		return data, store.OpPut, result
	})
}

func (r *VerificationRepository) Delete(ctx context.Context, phoneNumber string) error {
	return r.backend.Delete(ctx, entryKey(phoneNumber))
}

func (r *VerificationRepository) MarkVerified(ctx context.Context, phoneNumber string) error {
	return r.backend.AddMember(ctx, verifiedSet, phoneNumber)
}

func (r *VerificationRepository) UnmarkVerified(ctx context.Context, phoneNumber string) error {
	return r.backend.RemoveMember(ctx, verifiedSet, phoneNumber)
}

func (r *VerificationRepository) IsVerified(ctx context.Context, phoneNumber string) (bool, error) {
	return r.backend.IsMember(ctx, verifiedSet, phoneNumber)
}

func (r *VerificationRepository) ListVerified(ctx context.Context) ([]string, error) {
	return r.backend.Members(ctx, verifiedSet)
}
