package scanner

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"event-checkin/config"
	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("scanner: action not valid in current state")
	// ErrDiscarded is returned for results that arrive after the scanner was closed or reopened.
	ErrDiscarded = errors.New("scanner: result discarded after close")
)

type Options struct {
	InactivityWarn  time.Duration
	InactivityPause time.Duration
	IdentifiedDelay time.Duration
	ErrorCooldown   time.Duration
}

func OptionsFromConfig(cfg config.ScannerConfig) Options {
	return Options{
		InactivityWarn:  cfg.InactivityWarn,
		InactivityPause: cfg.InactivityPause,
		IdentifiedDelay: cfg.IdentifiedDelay,
		ErrorCooldown:   cfg.ErrorCooldown,
	}
}

// Machine drives one scanner instance for one event. All methods are safe for
// concurrent use; backend calls are made without holding the lock and their
// results are dropped if the generation moved on in the meantime.
type Machine struct {
	eventID  uuid.UUID
	camera   Camera
	backend  Backend
	notifier Notifier
	clock    Clock
	opts     Options
	log      *zap.Logger

	mu            sync.Mutex
	state         State
	generation    uint64
	inFlight      bool
	cameraOn      bool
	torchOn       bool
	cooldownUntil time.Time
	sessionID     *uuid.UUID
	current       *model.Guest

	warnTimer       Timer
	pauseTimer      Timer
	identifiedTimer Timer
}

func NewMachine(eventID uuid.UUID, camera Camera, backend Backend, notifier Notifier, clock Clock, opts Options) *Machine {
	if clock == nil {
		clock = SystemClock
	}
	return &Machine{
		eventID:  eventID,
		camera:   camera,
		backend:  backend,
		notifier: notifier,
		clock:    clock,
		opts:     opts,
		log:      logger.WithComponent("scanner").With(zap.String("event_id", eventID.String())),
		state:    StateIdle,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current is the guest being identified, awaiting photo, or shown as duplicate.
func (m *Machine) Current() *model.Guest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) SessionID() *uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *Machine) apply(in Input) bool {
	next, ok := Transition(m.state, in)
	if !ok {
		return false
	}
	if next != m.state {
		m.state = next
		m.notifier.StateChanged(next)
	}
	return true
}

// Open starts scanning, or enters all-checked-in when every guest is already in.
func (m *Machine) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle || m.inFlight {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.generation++
	gen := m.generation
	m.inFlight = true
	m.mu.Unlock()

	all, err := m.backend.AllCheckedIn(ctx, m.eventID)
	if err != nil {
		m.log.Warn("check all checked in failed", zap.Error(err))
		all = false
	}

	if all {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation {
			return ErrDiscarded
		}
		m.inFlight = false
		m.apply(InputOpenAllCheckedIn)
		return nil
	}
	return m.enterScanning(ctx, gen, InputOpen)
}

// ForceContinue scans anyway after the all-checked-in prompt.
func (m *Machine) ForceContinue(ctx context.Context) error {
	return m.restart(ctx, StateAllCheckedIn, InputForceContinue)
}

// Resume restarts the camera and a new session after an inactivity pause.
func (m *Machine) Resume(ctx context.Context) error {
	return m.restart(ctx, StatePaused, InputResume)
}

func (m *Machine) restart(ctx context.Context, from State, in Input) error {
	m.mu.Lock()
	if m.state != from || m.inFlight {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	gen := m.generation
	m.inFlight = true
	m.mu.Unlock()

	return m.enterScanning(ctx, gen, in)
}

// Decline closes the all-checked-in prompt without scanning.
func (m *Machine) Decline() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAllCheckedIn {
		return ErrInvalidTransition
	}
	m.apply(InputDecline)
	return nil
}

// enterScanning opens a session, starts the camera and arms the inactivity timers.
// The caller must have set inFlight.
func (m *Machine) enterScanning(ctx context.Context, gen uint64, in Input) error {
	sessionID := m.startSession(ctx)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.endSession(ctx, sessionID)
		return ErrDiscarded
	}
	m.inFlight = false

	if err := m.startCamera(ctx); err != nil {
		m.mu.Unlock()
		m.endSession(ctx, sessionID)
		return err
	}
	m.sessionID = sessionID
	m.cooldownUntil = time.Time{}
	m.apply(in)
	m.armInactivity(gen)
	m.mu.Unlock()
	return nil
}

// startSession is best-effort: scanning proceeds without a session on failure.
func (m *Machine) startSession(ctx context.Context) *uuid.UUID {
	id, err := m.backend.StartSession(ctx, m.eventID)
	if err != nil {
		m.log.Warn("start scanner session failed", zap.Error(err))
		return nil
	}
	return &id
}

func (m *Machine) endSession(ctx context.Context, id *uuid.UUID) {
	if id == nil {
		return
	}
	if err := m.backend.EndSession(ctx, *id); err != nil {
		m.log.Warn("end scanner session failed", zap.String("session_id", id.String()), zap.Error(err))
	}
}

func (m *Machine) startCamera(ctx context.Context) error {
	if m.cameraOn {
		return nil
	}
	if err := m.camera.Start(ctx); err != nil {
		m.notifier.Notice(Notice{Kind: NoticeCapabilityUnavailable, Message: "Camera unavailable: " + err.Error()})
		return err
	}
	m.cameraOn = true
	return nil
}

func (m *Machine) stopCamera() {
	if !m.cameraOn {
		return
	}
	m.camera.Stop()
	m.cameraOn = false
	m.torchOn = false
}

func (m *Machine) armInactivity(gen uint64) {
	stopTimer(m.warnTimer)
	stopTimer(m.pauseTimer)
	m.warnTimer = m.clock.AfterFunc(m.opts.InactivityWarn, func() { m.onInactivityWarn(gen) })
	m.pauseTimer = m.clock.AfterFunc(m.opts.InactivityPause, func() { m.onInactivityPause(gen) })
}

func (m *Machine) stopTimers() {
	stopTimer(m.warnTimer)
	stopTimer(m.pauseTimer)
	stopTimer(m.identifiedTimer)
	m.warnTimer, m.pauseTimer, m.identifiedTimer = nil, nil, nil
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}

func (m *Machine) onInactivityWarn(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || !m.cameraOn {
		return
	}
	m.notifier.Notice(Notice{Kind: NoticeInactivityWarning, Message: "Scanner will pause soon due to inactivity"})
}

func (m *Machine) onInactivityPause(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.apply(InputInactivity) {
		m.mu.Unlock()
		return
	}
	m.stopCamera()
	m.stopTimers()
	m.current = nil
	sessionID := m.sessionID
	m.sessionID = nil
	m.notifier.Notice(Notice{Kind: NoticePaused, Message: "Scanner paused due to inactivity"})
	m.mu.Unlock()

	m.endSession(context.Background(), sessionID)
}

// HandlePayload processes one decoded frame. Frames arriving while another is
// being classified, or during the error cooldown, are rejected without a cue.
func (m *Machine) HandlePayload(ctx context.Context, payload string) (*model.ScanResult, error) {
	m.mu.Lock()
	if m.state != StateScanning {
		m.mu.Unlock()
		return nil, apperrors.ErrScannerInactive
	}
	if m.inFlight {
		m.mu.Unlock()
		return nil, apperrors.ErrScannerBusy
	}
	if m.clock.Now().Before(m.cooldownUntil) {
		m.mu.Unlock()
		return nil, apperrors.ErrScanCooldown
	}
	m.inFlight = true
	gen := m.generation
	req := model.ScanRequest{EventID: m.eventID, Payload: payload, SessionID: m.sessionID}
	m.mu.Unlock()

	result, err := m.backend.Scan(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, ErrDiscarded
	}
	m.inFlight = false

	if err != nil {
		if errors.Is(err, apperrors.ErrScannerBusy) || errors.Is(err, apperrors.ErrScanCooldown) {
			return nil, err
		}
		m.scanFailed("Scan failed, please try again")
		return nil, err
	}

	switch result.Outcome {
	case model.ScanSuccess:
		m.notifier.Cue(CueSuccess)
		m.current = result.Guest
		m.apply(InputScanSuccess)
		m.notifier.Notice(Notice{Kind: NoticeIdentified, Message: result.Message, Guest: result.Guest})
		m.armInactivity(gen)
		m.identifiedTimer = m.clock.AfterFunc(m.opts.IdentifiedDelay, func() { m.onIdentifiedElapsed(gen) })
	case model.ScanDuplicate:
		m.notifier.Cue(CueDuplicate)
		m.current = result.Guest
		m.apply(InputScanDuplicate)
		m.notifier.Notice(Notice{Kind: NoticeDuplicate, Message: result.Message, Guest: result.Guest})
	default:
		m.scanFailed(result.Message)
	}
	return result, nil
}

func (m *Machine) scanFailed(message string) {
	m.notifier.Cue(CueError)
	m.cooldownUntil = m.clock.Now().Add(m.opts.ErrorCooldown)
	m.apply(InputScanError)
	m.notifier.Notice(Notice{Kind: NoticeScanError, Message: message})
}

func (m *Machine) onIdentifiedElapsed(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	m.identifiedTimer = nil
	m.apply(InputIdentifiedElapsed)
}

// Commit checks in the identified guest with an optional photo. On failure the
// machine stays in awaiting_photo so the usher can retry.
func (m *Machine) Commit(ctx context.Context, photo io.Reader) (*model.CommitResult, error) {
	m.mu.Lock()
	if m.state != StateAwaitingPhoto || m.current == nil {
		m.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if m.inFlight {
		m.mu.Unlock()
		return nil, apperrors.ErrScannerBusy
	}
	m.inFlight = true
	gen := m.generation
	guestID := m.current.ID
	sessionID := m.sessionID
	m.mu.Unlock()

	result, err := m.backend.Commit(ctx, guestID, sessionID, photo)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, ErrDiscarded
	}
	m.inFlight = false

	// the pause timer may have fired during the photo step, when it cannot apply
	m.armInactivity(gen)

	if err != nil {
		m.notifier.Cue(CueError)
		m.notifier.Notice(Notice{Kind: NoticeCommitFailed, Message: "Check-in failed, please retry", Guest: m.current})
		m.apply(InputCommitFailed)
		return nil, err
	}

	m.current = nil
	m.notifier.Notice(Notice{Kind: NoticeCheckedIn, Message: string(result.Outcome), Guest: result.Guest})
	m.apply(InputCommitDone)
	return result, nil
}

// Skip commits without a photo.
func (m *Machine) Skip(ctx context.Context) (*model.CommitResult, error) {
	return m.Commit(ctx, nil)
}

func (m *Machine) DismissDuplicate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDuplicate {
		return ErrInvalidTransition
	}
	m.current = nil
	m.apply(InputDismiss)
	m.armInactivity(m.generation)
	return nil
}

func (m *Machine) ToggleTorch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cameraOn {
		return apperrors.ErrScannerInactive
	}
	if err := m.camera.SetTorch(!m.torchOn); err != nil {
		return m.capabilityError("Torch", err)
	}
	m.torchOn = !m.torchOn
	return nil
}

func (m *Machine) SwitchCamera() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cameraOn {
		return apperrors.ErrScannerInactive
	}
	if err := m.camera.SwitchFacing(); err != nil {
		return m.capabilityError("Camera switching", err)
	}
	return nil
}

// capabilityError turns a missing device feature into a notice.
func (m *Machine) capabilityError(feature string, err error) error {
	if errors.Is(err, apperrors.ErrCapabilityUnavailable) {
		m.notifier.Notice(Notice{Kind: NoticeCapabilityUnavailable, Message: feature + " is not supported on this device"})
		return nil
	}
	return err
}

// Close stops the camera, ends the session best-effort and clears transient
// state. In-flight requests are not cancelled; their results are discarded.
func (m *Machine) Close(ctx context.Context) {
	m.mu.Lock()
	m.generation++
	m.stopTimers()
	m.stopCamera()
	sessionID := m.sessionID
	m.sessionID = nil
	m.current = nil
	m.inFlight = false
	m.cooldownUntil = time.Time{}
	m.apply(InputClose)
	m.mu.Unlock()

	m.endSession(ctx, sessionID)
}
