package models

import "time"

// Purpose selects the greeting template for an outbound call.
type Purpose string

const (
	PurposeEMIReminder    Purpose = "emi_reminder"
	PurposePolicyRenewal  Purpose = "policy_renewal"
	PurposeLoanOffer      Purpose = "loan_offer"
	PurposeClaimUpdate    Purpose = "claim_update"
	PurposeDebtRecovery   Purpose = "debt_recovery"
	PurposeLeadGeneration Purpose = "lead_generation"
	PurposeCreditRepair   Purpose = "credit_repair"
)

// Purposes lists every known call purpose.
var Purposes = []Purpose{
	PurposeEMIReminder,
	PurposePolicyRenewal,
	PurposeLoanOffer,
	PurposeClaimUpdate,
	PurposeDebtRecovery,
	PurposeLeadGeneration,
	PurposeCreditRepair,
}

// CallStatus is the session status. Provider callbacks may set values outside
// the constants below; they are stored verbatim.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

// Outcome is the terminal classification recorded by an explicit completion.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeNoAnswer  Outcome = "no_answer"
	OutcomeBusy      Outcome = "busy"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeNoAnswer, OutcomeBusy, OutcomeFailed:
		return true
	}
	return false
}

// MinPlayableAudioBytes is the size below which stored audio is treated as the
// synthesis-failure sentinel rather than playable audio.
const MinPlayableAudioBytes = 100

// SentinelAudio is an empty WAV header stored when speech synthesis fails.
var SentinelAudio = []byte("RIFF$\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00D\xac\x00\x00\x88X\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

// CallSession tracks one outbound call attempt end to end.
type CallSession struct {
	ID               string         `json:"call_id"`
	PhoneNumber      string         `json:"phone_number"`
	Purpose          Purpose        `json:"purpose"`
	Sector           string         `json:"sector"`
	Language         string         `json:"language"`
	CustomerData     map[string]any `json:"customer_data,omitempty"`
	PublicURL        string         `json:"public_url,omitempty"`
	Status           CallStatus     `json:"status"`
	Greeting         string         `json:"greeting"`
	Audio            []byte         `json:"audio,omitempty"`
	AudioDegraded    bool           `json:"audio_degraded"`
	ProviderCallID   string         `json:"provider_call_id,omitempty"`
	Outcome          Outcome        `json:"outcome,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastStatusUpdate *time.Time     `json:"last_status_update,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// HasPlayableAudio reports whether the stored audio is large enough to be real audio.
func (s *CallSession) HasPlayableAudio() bool {
	return len(s.Audio) >= MinPlayableAudioBytes
}
