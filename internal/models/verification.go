package models

import "time"

// VerificationEntry is the live one-time code for a phone number.
type VerificationEntry struct {
	CodeHash  string    `json:"code_hash"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code can no longer be accepted at now.
// A code is valid strictly before ExpiresAt.
func (e *VerificationEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
