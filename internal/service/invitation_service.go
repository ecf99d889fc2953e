package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"event-checkin/internal/export"
	"event-checkin/internal/messaging"
	"event-checkin/internal/metrics"
	"event-checkin/internal/model"
	"event-checkin/internal/storage"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SendStatus string

const (
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
	SendSkipped SendStatus = "skipped"
)

const noPhoneReason = "No phone number"

type SendDetail struct {
	GuestID    uuid.UUID  `json:"guestId"`
	GuestName  string     `json:"guestName"`
	Status     SendStatus `json:"status"`
	MessageIDs []string   `json:"messageIds,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

type BulkSendResult struct {
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Details []SendDetail `json:"details"`
}

type InvitationService interface {
	SendWhatsApp(ctx context.Context, user *model.AuthUser, eventID, guestID uuid.UUID) (*SendDetail, error)
	// SendWhatsAppBulk sends to every guest with a phone number, spaced by the send interval.
	// Per-guest failures are reported in the result and never abort the batch.
	SendWhatsAppBulk(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, guestIDs []uuid.UUID) (*BulkSendResult, error)
	EnqueueEmail(ctx context.Context, user *model.AuthUser, eventID, guestID uuid.UUID) (string, error)
	// DeliverEmail renders and sends a queued invitation email.
	DeliverEmail(ctx context.Context, eventID, guestID uuid.UUID) error
}

type InvitationServiceImpl struct {
	events       EventService
	guests       *store.GuestStore
	whatsapp     messaging.WhatsAppClient
	emailQueue   messaging.EmailQueue
	mailer       messaging.Mailer
	objects      storage.ObjectStore
	sendInterval time.Duration
	now          func() time.Time
}

type InvitationDeps struct {
	WhatsApp     messaging.WhatsAppClient
	EmailQueue   messaging.EmailQueue // nil when email is not configured
	Mailer       messaging.Mailer
	Objects      storage.ObjectStore
	SendInterval time.Duration
}

func NewInvitationService(events EventService, guests *store.GuestStore, deps InvitationDeps) InvitationService {
	return &InvitationServiceImpl{
		events:       events,
		guests:       guests,
		whatsapp:     deps.WhatsApp,
		emailQueue:   deps.EmailQueue,
		mailer:       deps.Mailer,
		objects:      deps.Objects,
		sendInterval: deps.SendInterval,
		now:          time.Now,
	}
}

func (s *InvitationServiceImpl) eventGuest(ctx context.Context, event *model.Event, guestID uuid.UUID) (*model.Guest, error) {
	guest, err := s.guests.Fetch(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if guest.EventID != event.ID {
		return nil, apperrors.ErrGuestNotFound
	}
	return guest, nil
}

func (s *InvitationServiceImpl) SendWhatsApp(ctx context.Context, user *model.AuthUser, eventID, guestID uuid.UUID) (*SendDetail, error) {
	if s.whatsapp == nil || !s.whatsapp.Enabled() {
		return nil, apperrors.ErrMessagingUnavailable
	}
	event, err := s.events.Authorize(ctx, user, eventID)
	if err != nil {
		return nil, err
	}
	guest, err := s.eventGuest(ctx, event, guestID)
	if err != nil {
		return nil, err
	}
	if !guest.HasPhone() {
		return nil, apperrors.ErrNoPhoneNumber
	}

	ids, err := s.sendWhatsApp(ctx, event, guest)
	if err != nil {
		return nil, err
	}
	return &SendDetail{GuestID: guest.ID, GuestName: guest.Name, Status: SendSent, MessageIDs: ids}, nil
}

func (s *InvitationServiceImpl) SendWhatsAppBulk(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, guestIDs []uuid.UUID) (*BulkSendResult, error) {
	if s.whatsapp == nil || !s.whatsapp.Enabled() {
		return nil, apperrors.ErrMessagingUnavailable
	}
	event, err := s.events.Authorize(ctx, user, eventID)
	if err != nil {
		return nil, err
	}
	if len(guestIDs) == 0 {
		return nil, fmt.Errorf("%w: no guests selected", apperrors.ErrInvalidInput)
	}

	limiter := rate.NewLimiter(rate.Every(s.sendInterval), 1)
	result := &BulkSendResult{Details: make([]SendDetail, 0, len(guestIDs))}

	for _, id := range guestIDs {
		detail := SendDetail{GuestID: id}

		guest, err := s.eventGuest(ctx, event, id)
		if err != nil {
			detail.Status = SendFailed
			detail.Reason = err.Error()
			result.add(detail)
			continue
		}
		detail.GuestName = guest.Name

		if !guest.HasPhone() {
			detail.Status = SendSkipped
			detail.Reason = noPhoneReason
			metrics.TrackMessage("whatsapp", string(SendSkipped))
			result.add(detail)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		ids, err := s.sendWhatsApp(ctx, event, guest)
		if err != nil {
			detail.Status = SendFailed
			detail.Reason = err.Error()
		} else {
			detail.Status = SendSent
			detail.MessageIDs = ids
		}
		result.add(detail)
	}
	return result, nil
}

func (r *BulkSendResult) add(d SendDetail) {
	switch d.Status {
	case SendSent:
		r.Sent++
	case SendFailed:
		r.Failed++
	case SendSkipped:
		r.Skipped++
	}
	r.Details = append(r.Details, d)
}

// sendWhatsApp sends the invitation text followed by the QR image, then marks the
// invitation as sent.
func (s *InvitationServiceImpl) sendWhatsApp(ctx context.Context, event *model.Event, guest *model.Guest) ([]string, error) {
	log := logger.WithComponent("messaging").With(zap.String("guest_id", guest.ID.String()))

	qrURL, err := s.uploadQR(ctx, guest)
	if err != nil {
		metrics.TrackMessage("whatsapp", string(SendFailed))
		return nil, err
	}

	textID, err := s.whatsapp.SendText(ctx, *guest.Phone, InvitationText(event, guest))
	if err != nil {
		metrics.TrackMessage("whatsapp", string(SendFailed))
		log.Warn("whatsapp text failed", zap.Error(err))
		return nil, err
	}
	imageID, err := s.whatsapp.SendImage(ctx, *guest.Phone, qrURL, "Your check-in code: "+guest.UniqueCode)
	if err != nil {
		metrics.TrackMessage("whatsapp", string(SendFailed))
		log.Warn("whatsapp image failed", zap.Error(err))
		return []string{textID}, err
	}

	metrics.TrackMessage("whatsapp", string(SendSent))
	if err := s.guests.MarkInvitationSent(ctx, guest.ID, s.now()); err != nil {
		log.Warn("mark invitation sent failed", zap.Error(err))
	}
	return []string{textID, imageID}, nil
}

func (s *InvitationServiceImpl) uploadQR(ctx context.Context, guest *model.Guest) (string, error) {
	png, err := export.QRPNG(guest.QRPayload(), export.QRSize)
	if err != nil {
		return "", err
	}
	return s.objects.Put(ctx, storage.QRKey(guest.EventID, guest.ID), png, "image/png")
}

func InvitationText(event *model.Event, guest *model.Guest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", guest.Name)
	fmt.Fprintf(&b, "You are invited to %s on %s", event.Title, event.StartsAt.Format("Monday, 2 January 2006 at 15:04"))
	if event.Venue != nil && *event.Venue != "" {
		fmt.Fprintf(&b, " at %s", *event.Venue)
	}
	b.WriteString(".\n\n")
	b.WriteString("Please show the QR code we are sending next at the entrance.\n")
	fmt.Fprintf(&b, "Your code: %s", guest.UniqueCode)
	return b.String()
}

func (s *InvitationServiceImpl) EnqueueEmail(ctx context.Context, user *model.AuthUser, eventID, guestID uuid.UUID) (string, error) {
	if s.emailQueue == nil {
		return "", apperrors.ErrMessagingUnavailable
	}
	event, err := s.events.Authorize(ctx, user, eventID)
	if err != nil {
		return "", err
	}
	guest, err := s.eventGuest(ctx, event, guestID)
	if err != nil {
		return "", err
	}
	if guest.Email == nil || *guest.Email == "" {
		return "", fmt.Errorf("%w: guest has no email address", apperrors.ErrInvalidInput)
	}
	return s.emailQueue.EnqueueInvitation(ctx, guest.ID, event.ID)
}

var invitationEmailTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
<p>Hello {{.Guest.Name}},</p>
<p>You are invited to <strong>{{.Event.Title}}</strong> on {{.When}}{{if .Venue}} at {{.Venue}}{{end}}.</p>
<p>Please present this QR code at the entrance:</p>
<p><img src="cid:qr.png" alt="QR code" width="256" height="256"></p>
<p>Your code: <code>{{.Guest.UniqueCode}}</code></p>
</body>
</html>`))

func (s *InvitationServiceImpl) DeliverEmail(ctx context.Context, eventID, guestID uuid.UUID) error {
	if s.mailer == nil {
		return apperrors.ErrMessagingUnavailable
	}
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	guest, err := s.eventGuest(ctx, event, guestID)
	if err != nil {
		return err
	}
	if guest.Email == nil || *guest.Email == "" {
		return fmt.Errorf("%w: guest has no email address", apperrors.ErrInvalidInput)
	}

	png, err := export.QRPNG(guest.QRPayload(), export.QRSize)
	if err != nil {
		return err
	}

	var html strings.Builder
	err = invitationEmailTemplate.Execute(&html, map[string]interface{}{
		"Guest": guest,
		"Event": event,
		"When":  event.StartsAt.Format("Monday, 2 January 2006 at 15:04"),
		"Venue": deref(event.Venue),
	})
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, messaging.Email{
		To:      *guest.Email,
		ToName:  guest.Name,
		Subject: "Your invitation to " + event.Title,
		HTML:    html.String(),
		Text:    InvitationText(event, guest),
		Attachments: []messaging.Attachment{
			{Name: "qr.png", Body: png, Inline: true},
		},
	})
	if err != nil {
		metrics.TrackMessage("email", string(SendFailed))
		return err
	}
	metrics.TrackMessage("email", string(SendSent))

	if err := s.guests.MarkInvitationSent(ctx, guest.ID, s.now()); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithComponent("messaging").Warn("mark invitation sent failed",
			zap.String("guest_id", guest.ID.String()), zap.Error(err))
	}
	return nil
}
