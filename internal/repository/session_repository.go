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

var errSessionExists = errors.New("call session already exists")

type SessionRepository struct {
	backend store.Backend
	ttl     time.Duration
	logger  *logrus.Logger
}

func NewSessionRepository(backend store.Backend, ttl time.Duration, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("call_session:%s", id)
}

// Create stores a new session. It fails if the ID is already taken.
func (r *SessionRepository) Create(ctx context.Context, session *models.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal call session: %w", err)
	}

	ok, err := r.backend.CompareAndSwap(ctx, sessionKey(session.ID), nil, data, r.ttl)
	if err != nil {
		r.logger.WithError(err).Error("Failed to create call session")
		return fmt.Errorf("failed to create call session: %w", err)
	}
	if !ok {
		return errSessionExists
	}
	return nil
}

// Get returns nil when the session does not exist.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.CallSession, error) {
	data, err := r.backend.Get(ctx, sessionKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call session: %w", err)
	}

	var session models.CallSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call session: %w", err)
	}
	return &session, nil
}

// Update applies fn to the stored session atomically and returns the result.
// It returns nil without calling fn when the session does not exist. An error
// from fn aborts the write.
func (r *SessionRepository) Update(ctx context.Context, id string, fn func(session *models.CallSession) error) (*models.CallSession, error) {
	var updated *models.CallSession
	err := store.Update(ctx, r.backend, sessionKey(id), r.ttl, func(current []byte, found bool) ([]byte, store.Op, error) {
		updated = nil
		if !found {
			return nil, store.OpNone, nil
		}

		var session models.CallSession
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, store.OpNone, fmt.Errorf("failed to unmarshal call session: %w", err)
		}
		if err := fn(&session); err != nil {
			return nil, store.OpNone, err
		}

		data, err := json.Marshal(&session)
		if err != nil {
			return nil, store.OpNone, fmt.Errorf("failed to marshal call session: %w", err)
		}
		updated = &session
		return data, store.OpPut, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
