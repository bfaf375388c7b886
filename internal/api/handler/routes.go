package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health      *HealthHandler
	Resource    *ResourceHandler
	Reservation *ReservationHandler
}

// RegisterRoutes は /health と /api/v1 配下のルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	v1.POST("/resources", h.Resource.Create)
	v1.GET("/resources", h.Resource.List)
	v1.GET("/resources/:id", h.Resource.GetByID)
	v1.GET("/resources/:id/availability", h.Resource.Availability)
	v1.GET("/resources/:id/reservations", h.Resource.Reservations)
	v1.PUT("/resources/:id/status", h.Resource.UpdateStatus)

	v1.POST("/reservations", h.Reservation.Create)
	v1.GET("/reservations", h.Reservation.GetUserReservations)
	v1.GET("/reservations/upcoming", h.Reservation.GetUpcoming)
	v1.GET("/reservations/:id", h.Reservation.GetByID)
	v1.DELETE("/reservations/:id", h.Reservation.Cancel)
}
