package model

import (
	"time"

	"github.com/google/uuid"
)

type ScanEventKind string

const (
	ScanEventIncrement ScanEventKind = "increment"
	ScanEventTouch     ScanEventKind = "touch"
	ScanEventEnd       ScanEventKind = "end"
)

// ScanEvent is a scanner-session bookkeeping update. Delivery is best-effort.
type ScanEvent struct {
	Kind      ScanEventKind `json:"kind"`
	SessionID uuid.UUID     `json:"sessionId"`
	At        time.Time     `json:"at"`
}
