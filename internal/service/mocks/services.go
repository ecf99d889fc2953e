package mocks

import (
	"context"
	"io"

	"event-checkin/internal/model"
	"event-checkin/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type EventServiceMock struct {
	mock.Mock
}

func NewEventServiceMock() *EventServiceMock {
	return &EventServiceMock{}
}

func (m *EventServiceMock) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Event), args.Error(1)
}

func (m *EventServiceMock) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *EventServiceMock) Create(ctx context.Context, user *model.AuthUser, req model.CreateEventRequest) (*model.Event, error) {
	args := m.Called(ctx, user, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *EventServiceMock) Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	args := m.Called(ctx, user, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *EventServiceMock) Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	args := m.Called(ctx, user, id)
	return args.Error(0)
}

func (m *EventServiceMock) Authorize(ctx context.Context, user *model.AuthUser, id uuid.UUID) (*model.Event, error) {
	args := m.Called(ctx, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

type GuestServiceMock struct {
	mock.Mock
}

func NewGuestServiceMock() *GuestServiceMock {
	return &GuestServiceMock{}
}

func (m *GuestServiceMock) List(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) ([]*model.Guest, error) {
	args := m.Called(ctx, user, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Guest), args.Error(1)
}

func (m *GuestServiceMock) Get(ctx context.Context, id uuid.UUID) (*model.Guest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Guest), args.Error(1)
}

func (m *GuestServiceMock) Create(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, req model.CreateGuestRequest) (*model.Guest, error) {
	args := m.Called(ctx, user, eventID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Guest), args.Error(1)
}

func (m *GuestServiceMock) Import(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, r io.Reader) ([]*model.Guest, error) {
	args := m.Called(ctx, user, eventID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Guest), args.Error(1)
}

func (m *GuestServiceMock) Update(ctx context.Context, user *model.AuthUser, id uuid.UUID, params model.UpdateGuestParams) (*model.Guest, error) {
	args := m.Called(ctx, user, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Guest), args.Error(1)
}

func (m *GuestServiceMock) Delete(ctx context.Context, user *model.AuthUser, id uuid.UUID) error {
	args := m.Called(ctx, user, id)
	return args.Error(0)
}

func (m *GuestServiceMock) DeleteBulk(ctx context.Context, user *model.AuthUser, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, user, eventID, ids)
	return args.Get(0).(int64), args.Error(1)
}

type CheckinServiceMock struct {
	mock.Mock
}

func NewCheckinServiceMock() *CheckinServiceMock {
	return &CheckinServiceMock{}
}

func (m *CheckinServiceMock) Classify(ctx context.Context, activeEventID uuid.UUID, payload string) (*model.ScanResult, error) {
	args := m.Called(ctx, activeEventID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanResult), args.Error(1)
}

func (m *CheckinServiceMock) Scan(ctx context.Context, user *model.AuthUser, req model.ScanRequest) (*model.ScanResult, error) {
	args := m.Called(ctx, user, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanResult), args.Error(1)
}

func (m *CheckinServiceMock) Commit(ctx context.Context, req service.CommitRequest) (*model.CommitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommitResult), args.Error(1)
}

func (m *CheckinServiceMock) Toggle(ctx context.Context, user *model.AuthUser, guestID uuid.UUID, checkedIn bool) (*model.Guest, error) {
	args := m.Called(ctx, user, guestID, checkedIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Guest), args.Error(1)
}

func (m *CheckinServiceMock) AllCheckedIn(ctx context.Context, eventID uuid.UUID) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

type BundleServiceMock struct {
	mock.Mock
}

func NewBundleServiceMock() *BundleServiceMock {
	return &BundleServiceMock{}
}

func (m *BundleServiceMock) Prepare(ctx context.Context, user *model.AuthUser, req service.BundleRequest) (*service.BundlePlan, error) {
	args := m.Called(ctx, user, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BundlePlan), args.Error(1)
}

func (m *BundleServiceMock) Write(ctx context.Context, w io.Writer, plan *service.BundlePlan) error {
	args := m.Called(ctx, w, plan)
	return args.Error(0)
}

type AnalyticsServiceMock struct {
	mock.Mock
}

func NewAnalyticsServiceMock() *AnalyticsServiceMock {
	return &AnalyticsServiceMock{}
}

func (m *AnalyticsServiceMock) Report(ctx context.Context, user *model.AuthUser, eventID uuid.UUID) (*model.Analytics, *model.Event, error) {
	args := m.Called(ctx, user, eventID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Analytics), args.Get(1).(*model.Event), args.Error(2)
}

func (m *AnalyticsServiceMock) Export(w io.Writer, a *model.Analytics, format service.AnalyticsFormat) error {
	args := m.Called(w, a, format)
	return args.Error(0)
}
