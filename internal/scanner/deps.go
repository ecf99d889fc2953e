package scanner

import (
	"context"
	"io"
	"time"

	"event-checkin/internal/model"

	"github.com/google/uuid"
)

// Camera is the exclusively owned capture device.
type Camera interface {
	Start(ctx context.Context) error
	Stop()
	// SetTorch and SwitchFacing return apperrors.ErrCapabilityUnavailable when the device lacks the feature.
	SetTorch(on bool) error
	SwitchFacing() error
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Cue int

const (
	CueSuccess Cue = iota
	CueDuplicate
	CueError
)

type NoticeKind string

const (
	NoticeInactivityWarning     NoticeKind = "inactivity_warning"
	NoticePaused                NoticeKind = "paused"
	NoticeCapabilityUnavailable NoticeKind = "capability_unavailable"
	NoticeCommitFailed          NoticeKind = "commit_failed"
	NoticeCheckedIn             NoticeKind = "checked_in"
	NoticeScanError             NoticeKind = "scan_error"
	NoticeIdentified            NoticeKind = "identified"
	NoticeDuplicate             NoticeKind = "duplicate"
)

type Notice struct {
	Kind    NoticeKind
	Message string
	Guest   *model.Guest
}

// Notifier receives user-facing feedback. Calls are made while the machine holds
// its lock, so implementations must not call back into the Machine.
type Notifier interface {
	Cue(c Cue)
	Notice(n Notice)
	StateChanged(s State)
}

// Backend is the server API the scanner talks to.
type Backend interface {
	AllCheckedIn(ctx context.Context, eventID uuid.UUID) (bool, error)
	StartSession(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) error
	Scan(ctx context.Context, req model.ScanRequest) (*model.ScanResult, error)
	Commit(ctx context.Context, guestID uuid.UUID, sessionID *uuid.UUID, photo io.Reader) (*model.CommitResult, error)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}
