package model

import "github.com/google/uuid"

type ScanOutcome string

const (
	ScanSuccess        ScanOutcome = "success"
	ScanDuplicate      ScanOutcome = "duplicate"
	ScanNotFound       ScanOutcome = "not_found"
	ScanWrongEvent     ScanOutcome = "wrong_event"
	ScanInvalidPayload ScanOutcome = "invalid_payload"
)

// IsError reports outcomes that play the error cue and arm the frame cooldown.
func (o ScanOutcome) IsError() bool {
	switch o {
	case ScanNotFound, ScanWrongEvent, ScanInvalidPayload:
		return true
	}
	return false
}

type ScanRequest struct {
	EventID   uuid.UUID  `json:"eventId" binding:"required"`
	Payload   string     `json:"payload" binding:"required"`
	SessionID *uuid.UUID `json:"sessionId"`
}

type ScanResult struct {
	Outcome ScanOutcome `json:"outcome"`
	Message string      `json:"message"`
	Guest   *Guest      `json:"guest,omitempty"`
}

type CommitOutcome string

const (
	CommitCheckedIn CommitOutcome = "checked_in"
	CommitAlready   CommitOutcome = "already"
)

type CommitResult struct {
	Outcome CommitOutcome `json:"outcome"`
	Guest   *Guest        `json:"guest"`
}

type ToggleCheckinRequest struct {
	CheckedIn bool `json:"checkedIn"`
}
