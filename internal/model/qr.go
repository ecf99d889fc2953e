package model

import (
	"fmt"
	"strings"

	apperrors "event-checkin/pkg/app_errors"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	qrDelimiter = ":"

	// UniqueCodeAlphabet leaves out the delimiter and glyphs that are easy to misread on print.
	UniqueCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	UniqueCodeLength   = 8
	maxUniqueCodeLen   = 64
)

// QRPayload is the wire format printed into guest QR codes: "<eventId>:<uniqueCode>".
type QRPayload struct {
	EventID    string
	UniqueCode string
}

func (p QRPayload) String() string {
	return p.EventID + qrDelimiter + p.UniqueCode
}

// ParseQRPayload splits a decoded QR string. Anything other than exactly one
// delimiter with non-empty halves is rejected.
func ParseQRPayload(raw string) (QRPayload, error) {
	if strings.Count(raw, qrDelimiter) != 1 {
		return QRPayload{}, fmt.Errorf("%w: expected exactly one %q", apperrors.ErrInvalidPayload, qrDelimiter)
	}
	eventID, code, _ := strings.Cut(raw, qrDelimiter)
	if eventID == "" || code == "" {
		return QRPayload{}, fmt.Errorf("%w: empty event id or code", apperrors.ErrInvalidPayload)
	}
	return QRPayload{EventID: eventID, UniqueCode: code}, nil
}

func NewUniqueCode() (string, error) {
	return gonanoid.Generate(UniqueCodeAlphabet, UniqueCodeLength)
}

// ValidateUniqueCode checks codes supplied from outside, e.g. an imported guest list.
func ValidateUniqueCode(code string) error {
	switch {
	case code == "":
		return fmt.Errorf("%w: unique code is empty", apperrors.ErrInvalidInput)
	case strings.Contains(code, qrDelimiter):
		return fmt.Errorf("%w: unique code must not contain %q", apperrors.ErrInvalidInput, qrDelimiter)
	case len(code) > maxUniqueCodeLen:
		return fmt.Errorf("%w: unique code longer than %d", apperrors.ErrInvalidInput, maxUniqueCodeLen)
	case strings.TrimSpace(code) != code:
		return fmt.Errorf("%w: unique code has surrounding whitespace", apperrors.ErrInvalidInput)
	}
	return nil
}
