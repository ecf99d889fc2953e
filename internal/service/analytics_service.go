package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"event-checkin/internal/export"
	"event-checkin/internal/model"
	"event-checkin/internal/repository"
	"event-checkin/internal/store"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type AnalyticsFormat string

const (
	AnalyticsJSON AnalyticsFormat = "json"
	AnalyticsCSV  AnalyticsFormat = "csv"
	AnalyticsXLSX AnalyticsFormat = "xlsx"
	AnalyticsPDF  AnalyticsFormat = "pdf"
)

func (f AnalyticsFormat) ContentType() string {
	switch f {
	case AnalyticsCSV:
		return "text/csv; charset=utf-8"
	case AnalyticsXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case AnalyticsPDF:
		return "application/pdf"
	}
	return "application/json"
}

func AnalyticsFilename(event *model.Event, f AnalyticsFormat) string {
	name := slug.Make(event.Title)
	if name == "" {
		name = "event"
	}
	return fmt.Sprintf("%s-analytics.%s", name, f)
}

type AnalyticsService interface {
	Report(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) (*model.Analytics, *model.Event, error)
	Export(w io.Writer, a *model.Analytics, format AnalyticsFormat) error
}

type AnalyticsServiceImpl struct {
	events   EventService
	guests   *store.GuestStore
	sessions repository.ScannerSessionRepository
	now      func() time.Time
}

func NewAnalyticsService(events EventService, guests *store.GuestStore, sessions repository.ScannerSessionRepository) AnalyticsService {
	return &AnalyticsServiceImpl{events: events, guests: guests, sessions: sessions, now: time.Now}
}

func (s *AnalyticsServiceImpl) Report(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) (*model.Analytics, *model.Event, error) {
	event, err := s.events.Authorize(ctx, user, eventID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.guests.EnsureEvent(ctx, eventID); err != nil {
		return nil, nil, err
	}
	sessions, err := s.sessions.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return BuildAnalytics(event, s.guests.ListByEvent(eventID), sessions, s.now()), event, nil
}

func (s *AnalyticsServiceImpl) Export(w io.Writer, a *model.Analytics, format AnalyticsFormat) error {
	switch format {
	case AnalyticsCSV:
		return export.WriteAnalyticsCSV(w, a)
	case AnalyticsXLSX:
		return export.WriteAnalyticsXLSX(w, a)
	case AnalyticsPDF:
		return export.WriteAnalyticsPDF(w, a)
	}
	return fmt.Errorf("%w: unsupported export format %q", apperrors.ErrInvalidInput, format)
}

// BuildAnalytics summarizes check-ins, buckets first check-ins by hour (UTC) and
// totals check-ins and scans per usher.
func BuildAnalytics(event *model.Event, guests []*model.Guest, sessions []*model.ScannerSession, now time.Time) *model.Analytics {
	summary := model.AnalyticsSummary{
		EventID:     event.ID,
		EventTitle:  event.Title,
		StartsAt:    event.StartsAt,
		TotalGuests: len(guests),
		CheckInRate: decimal.Zero,
	}

	hourly := make(map[time.Time]int)
	ushers := make(map[string]*model.UsherStat)
	usher := func(name, email string) *model.UsherStat {
		key := strings.ToLower(email)
		if key == "" {
			key = "name:" + name
		}
		u, ok := ushers[key]
		if !ok {
			u = &model.UsherStat{UsherName: name, UsherEmail: email}
			ushers[key] = u
		}
		if u.UsherName == "" {
			u.UsherName = name
		}
		return u
	}

	for _, g := range guests {
		if g.InvitationSent {
			summary.InvitationsSent++
		}
		if g.PhotoURL != nil {
			summary.PhotosTaken++
		}
		if !g.CheckedIn {
			continue
		}
		summary.CheckedIn++

		at := g.FirstCheckinAt
		if at == nil {
			at = g.CheckedInAt
		}
		if at != nil {
			hourly[at.UTC().Truncate(time.Hour)]++
		}

		usher(deref(g.UsherName), deref(g.UsherEmail)).CheckIns++
	}
	summary.NotCheckedIn = summary.TotalGuests - summary.CheckedIn
	if summary.TotalGuests > 0 {
		summary.CheckInRate = decimal.NewFromInt(int64(summary.CheckedIn)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(summary.TotalGuests))).
			Round(2)
	}

	for _, sess := range sessions {
		u := usher(sess.UsherName, sess.UsherEmail)
		u.Scans += sess.ScanCount
		u.Sessions++
	}

	a := &model.Analytics{
		Summary:     summary,
		Hourly:      make([]model.HourlyBucket, 0, len(hourly)),
		Ushers:      make([]model.UsherStat, 0, len(ushers)),
		GeneratedAt: now,
	}
	for hour, n := range hourly {
		a.Hourly = append(a.Hourly, model.HourlyBucket{Hour: hour, Count: n})
	}
	sort.Slice(a.Hourly, func(i, j int) bool { return a.Hourly[i].Hour.Before(a.Hourly[j].Hour) })

	for _, u := range ushers {
		a.Ushers = append(a.Ushers, *u)
	}
	sort.Slice(a.Ushers, func(i, j int) bool {
		if a.Ushers[i].CheckIns != a.Ushers[j].CheckIns {
			return a.Ushers[i].CheckIns > a.Ushers[j].CheckIns
		}
		return a.Ushers[i].UsherName < a.Ushers[j].UsherName
	})
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
