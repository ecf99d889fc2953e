package messaging

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"

	"event-checkin/config"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/domodwyer/mailyak/v3"
)

type Attachment struct {
	Name   string
	Body   []byte
	Inline bool
}

type Email struct {
	To          string
	ToName      string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type SMTPMailerImpl struct {
	addr     string
	auth     smtp.Auth
	from     string
	fromName string
}

func NewSMTPMailer(cfg config.EmailConfig) Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	return &SMTPMailerImpl{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		auth:     auth,
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

func (m *SMTPMailerImpl) Send(ctx context.Context, email Email) error {
	if m.from == "" {
		return apperrors.ErrMessagingUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := mailyak.New(m.addr, m.auth)
	mail.To(email.To)
	mail.From(m.from)
	mail.FromName(m.fromName)
	mail.Subject(email.Subject)
	mail.HTML().Set(email.HTML)
	mail.Plain().Set(email.Text)

	for _, a := range email.Attachments {
		if a.Inline {
			mail.AttachInline(a.Name, bytes.NewReader(a.Body))
		} else {
			mail.Attach(a.Name, bytes.NewReader(a.Body))
		}
	}

	if err := mail.Send(); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.To, err)
	}
	return nil
}
