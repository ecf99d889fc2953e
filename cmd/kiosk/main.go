// Command kiosk drives the scanner from a keyboard-wedge or serial QR reader that
// emits one decoded payload per line on stdin. There is no camera, so the photo
// step is always skipped.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"event-checkin/config"
	"event-checkin/internal/scanner"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lineReader stands in for the camera: the reader is always on and has no torch.
type lineReader struct{}

func (lineReader) Start(context.Context) error { return nil }
func (lineReader) Stop()                       {}
func (lineReader) SetTorch(bool) error         { return apperrors.ErrCapabilityUnavailable }
func (lineReader) SwitchFacing() error         { return apperrors.ErrCapabilityUnavailable }

type console struct {
	ctx     context.Context
	machine *scanner.Machine
	delay   time.Duration
}

func (c *console) Cue(cue scanner.Cue) {
	switch cue {
	case scanner.CueSuccess:
		fmt.Print("\a")
	case scanner.CueDuplicate, scanner.CueError:
		fmt.Print("\a\a")
	}
}

func (c *console) Notice(n scanner.Notice) {
	switch n.Kind {
	case scanner.NoticeIdentified:
		fmt.Printf("OK   %s (%s)\n", n.Guest.Name, n.Guest.UniqueCode)
	case scanner.NoticeDuplicate:
		by, at := "unknown", "unknown time"
		if n.Guest.UsherName != nil {
			by = *n.Guest.UsherName
		}
		if n.Guest.CheckedInAt != nil {
			at = n.Guest.CheckedInAt.Local().Format("15:04")
		}
		fmt.Printf("DUP  %s already checked in by %s at %s\n", n.Guest.Name, by, at)
		time.AfterFunc(c.delay, func() { _ = c.machine.DismissDuplicate() })
	case scanner.NoticeCheckedIn:
		fmt.Printf("IN   %s\n", n.Guest.Name)
	default:
		fmt.Printf("---  %s\n", n.Message)
	}
}

func (c *console) StateChanged(s scanner.State) {
	if s == scanner.StateAwaitingPhoto {
		// no camera on the kiosk; must run outside the machine's lock
		go func() {
			if _, err := c.machine.Skip(c.ctx); err != nil && !errors.Is(err, scanner.ErrDiscarded) {
				logger.WithComponent("scanner").Warn("commit failed", zap.Error(err))
			}
		}()
	}
	if s == scanner.StatePaused {
		fmt.Println("Paused. Type 'resume' to continue.")
	}
}

func main() {
	cfg := config.LoadKioskConfig()
	log := logger.WithComponent("main")

	eventID, err := uuid.Parse(cfg.EventID)
	if err != nil {
		log.Fatal("KIOSK_EVENT_ID must be a uuid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := &console{ctx: ctx, delay: cfg.Scanner.IdentifiedDelay}
	machine := scanner.NewMachine(
		eventID,
		lineReader{},
		scanner.NewHTTPBackend(cfg.APIURL, cfg.Token, nil),
		ui,
		scanner.SystemClock,
		scanner.OptionsFromConfig(cfg.Scanner),
	)
	ui.machine = machine
	defer machine.Close(context.Background())

	if err := machine.Open(ctx); err != nil {
		log.Fatal("Failed to open scanner", zap.Error(err))
	}
	if machine.State() == scanner.StateAllCheckedIn {
		fmt.Println("Every guest is already checked in. Type 'continue' to scan anyway or 'quit'.")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			lines <- strings.TrimSpace(in.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, machine, line); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, m *scanner.Machine, line string) bool {
	var err error
	switch line {
	case "":
		return false
	case "quit":
		return true
	case "continue":
		err = m.ForceContinue(ctx)
	case "resume":
		err = m.Resume(ctx)
	case "dismiss":
		err = m.DismissDuplicate()
	case "torch":
		err = m.ToggleTorch()
	case "flip":
		err = m.SwitchCamera()
	default:
		_, err = m.HandlePayload(ctx, line)
		if errors.Is(err, apperrors.ErrScannerBusy) || errors.Is(err, apperrors.ErrScanCooldown) {
			return false
		}
	}
	if err != nil {
		fmt.Printf("ERR  %v\n", err)
	}
	return false
}
