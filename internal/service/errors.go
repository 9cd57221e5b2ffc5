package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPhoneFormat   = errors.New("invalid phone number format")
	ErrNotFound             = errors.New("verification code not found")
	ErrExpired              = errors.New("verification code expired")
	ErrAttemptsExhausted    = errors.New("maximum verification attempts exceeded")
	ErrCodeMismatch         = errors.New("invalid verification code")
	ErrDeliveryFailed       = errors.New("failed to deliver verification code")
	ErrCallInitiationFailed = errors.New("failed to initiate call")
	ErrSessionNotFound      = errors.New("call session not found")
	ErrAudioNotAvailable    = errors.New("audio not available")
	ErrInvalidOutcome       = errors.New("invalid call outcome")
)

// CodeMismatchError is returned for a wrong code while attempts remain.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("Invalid verification code. %d attempts remaining.", e.Remaining)
}

func (e *CodeMismatchError) Is(target error) bool {
	return target == ErrCodeMismatch
}
