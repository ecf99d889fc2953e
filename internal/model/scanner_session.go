package model

import (
	"time"

	"github.com/google/uuid"
)

type ScannerSession struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       string     `json:"userId" db:"user_id"`
	EventID      uuid.UUID  `json:"eventId" db:"event_id"`
	UsherName    string     `json:"usherName" db:"usher_name"`
	UsherEmail   string     `json:"usherEmail" db:"usher_email"`
	SessionStart time.Time  `json:"sessionStart" db:"session_start"`
	LastActivity time.Time  `json:"lastActivity" db:"last_activity"`
	SessionEnd   *time.Time `json:"sessionEnd,omitempty" db:"session_end"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	ScanCount    int        `json:"scanCount" db:"scan_count"`
}

type StartSessionRequest struct {
	EventID uuid.UUID `json:"eventId" binding:"required"`
}
