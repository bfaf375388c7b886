package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) CancelReservation(ctx context.Context, input application.CancelReservationInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetUserReservations(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, requesterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetUpcomingReservations(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, requesterID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetResourceReservations(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, resourceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) ApplyResourceStatusChange(ctx context.Context, resourceID string, status resource.Status) (*application.StatusChangeResult, error) {
	args := m.Called(ctx, resourceID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.StatusChangeResult), args.Error(1)
}

// MockResourceService はResourceServiceInterfaceのモック
type MockResourceService struct {
	mock.Mock
}

func (m *MockResourceService) CreateResource(ctx context.Context, input application.CreateResourceInput) (*resource.Resource, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resource.Resource), args.Error(1)
}

func (m *MockResourceService) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resource.Resource), args.Error(1)
}

func (m *MockResourceService) ListResources(ctx context.Context, limit, offset int) ([]*resource.Resource, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*resource.Resource), args.Error(1)
}

func (m *MockResourceService) CountAvailable(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}
