package scanner

import (
	"context"
	"io"
	"sync"
	"time"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, firing due timers in order outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

type fakeCamera struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	torch    bool
	hasTorch bool
	startErr error
}

func (c *fakeCamera) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	c.starts++
	return nil
}

func (c *fakeCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.stops++
}

func (c *fakeCamera) SetTorch(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasTorch {
		return apperrors.ErrCapabilityUnavailable
	}
	c.torch = on
	return nil
}

func (c *fakeCamera) SwitchFacing() error {
	return apperrors.ErrCapabilityUnavailable
}

func (c *fakeCamera) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

type recordingNotifier struct {
	mu      sync.Mutex
	cues    []Cue
	notices []Notice
	states  []State
}

func (n *recordingNotifier) Cue(c Cue) {
	n.mu.Lock()
	n.cues = append(n.cues, c)
	n.mu.Unlock()
}

func (n *recordingNotifier) Notice(notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) StateChanged(s State) {
	n.mu.Lock()
	n.states = append(n.states, s)
	n.mu.Unlock()
}

func (n *recordingNotifier) Cues() []Cue {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Cue(nil), n.cues...)
}

func (n *recordingNotifier) HasNotice(kind NoticeKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.Kind == kind {
			return true
		}
	}
	return false
}

// fakeBackend answers scans from an in-memory guest list for a single event.
type fakeBackend struct {
	mu           sync.Mutex
	eventID      uuid.UUID
	guests       map[string]*model.Guest
	allCheckedIn bool

	sessions     []uuid.UUID
	ended        []uuid.UUID
	scans        []model.ScanRequest
	commits      int
	commitPhotos []bool
	commitErr    error

	// scanGate, when set, blocks Scan until it is closed; scanEntered is signalled first.
	scanGate    chan struct{}
	scanEntered chan struct{}
}

func newFakeBackend(eventID uuid.UUID, guests ...*model.Guest) *fakeBackend {
	b := &fakeBackend{eventID: eventID, guests: make(map[string]*model.Guest)}
	for _, g := range guests {
		b.guests[g.UniqueCode] = g
	}
	return b
}

func (b *fakeBackend) AllCheckedIn(context.Context, uuid.UUID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allCheckedIn, nil
}

func (b *fakeBackend) StartSession(context.Context, uuid.UUID) (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	b.sessions = append(b.sessions, id)
	return id, nil
}

func (b *fakeBackend) EndSession(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, id)
	return nil
}

func (b *fakeBackend) Scan(_ context.Context, req model.ScanRequest) (*model.ScanResult, error) {
	if b.scanGate != nil {
		b.scanEntered <- struct{}{}
		<-b.scanGate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.scans = append(b.scans, req)

	payload, err := model.ParseQRPayload(req.Payload)
	if err != nil {
		return &model.ScanResult{Outcome: model.ScanInvalidPayload}, nil
	}
	if payload.EventID != b.eventID.String() {
		return &model.ScanResult{Outcome: model.ScanWrongEvent}, nil
	}
	g, ok := b.guests[payload.UniqueCode]
	if !ok {
		return &model.ScanResult{Outcome: model.ScanNotFound}, nil
	}
	cp := *g
	if g.CheckedIn {
		return &model.ScanResult{Outcome: model.ScanDuplicate, Guest: &cp}, nil
	}
	return &model.ScanResult{Outcome: model.ScanSuccess, Guest: &cp}, nil
}

func (b *fakeBackend) Commit(_ context.Context, guestID uuid.UUID, _ *uuid.UUID, photo io.Reader) (*model.CommitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commits++
	b.commitPhotos = append(b.commitPhotos, photo != nil)
	if b.commitErr != nil {
		return nil, b.commitErr
	}
	for _, g := range b.guests {
		if g.ID != guestID {
			continue
		}
		if g.CheckedIn {
			cp := *g
			return &model.CommitResult{Outcome: model.CommitAlready, Guest: &cp}, nil
		}
		now := time.Now()
		g.CheckedIn = true
		g.CheckedInAt = &now
		g.FirstCheckinAt = &now
		cp := *g
		return &model.CommitResult{Outcome: model.CommitCheckedIn, Guest: &cp}, nil
	}
	return nil, apperrors.ErrGuestNotFound
}

func (b *fakeBackend) guest(code string) model.Guest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.guests[code]
}

func (b *fakeBackend) counts() (sessions, ended, scans int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions), len(b.ended), len(b.scans)
}
