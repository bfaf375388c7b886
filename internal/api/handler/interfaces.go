package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

// ResourceServiceInterface はリソースサービスのインターフェース
type ResourceServiceInterface interface {
	CreateResource(ctx context.Context, input application.CreateResourceInput) (*resource.Resource, error)
	GetResource(ctx context.Context, id string) (*resource.Resource, error)
	ListResources(ctx context.Context, limit, offset int) ([]*resource.Resource, error)
	CountAvailable(ctx context.Context, id string) (int, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error)
	CancelReservation(ctx context.Context, input application.CancelReservationInput) (*reservation.Reservation, error)
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	GetUserReservations(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error)
	GetUpcomingReservations(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error)
	GetResourceReservations(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error)
	ApplyResourceStatusChange(ctx context.Context, resourceID string, status resource.Status) (*application.StatusChangeResult, error)
}
