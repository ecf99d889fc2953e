package apperrors

import "errors"

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrGuestNotFound         = errors.New("guest not found")
	ErrSessionNotFound       = errors.New("scanner session not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateCode         = errors.New("unique code already exists for this event")
	ErrInvalidPayload        = errors.New("invalid qr payload")
	ErrWrongEvent            = errors.New("qr code belongs to a different event")
	ErrAlreadyCheckedIn      = errors.New("guest already checked in")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotEventOwner         = errors.New("not the event owner")
	ErrBundleTooLarge        = errors.New("bundle exceeds the 1000 guest limit")
	ErrMessagingUnavailable  = errors.New("messaging provider not configured")
	ErrNoPhoneNumber         = errors.New("no phone number")
	ErrScannerBusy           = errors.New("scan already in progress")
	ErrScanCooldown          = errors.New("payload was rejected moments ago")
	ErrScannerInactive       = errors.New("scanner is not active")
	ErrCapabilityUnavailable = errors.New("device capability unavailable")
	ErrStorageUnavailable    = errors.New("object storage not configured")
	ErrInternalServerError   = errors.New("internal server error")
)
