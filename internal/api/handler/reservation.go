package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

// CreateReservationRequest は時間枠（start_at / end_at）か数量（quantity）のどちらか一方を指定する
type CreateReservationRequest struct {
	ResourceID string     `json:"resource_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	StartAt    *time.Time `json:"start_at,omitempty" validate:"required_with=EndAt"`
	EndAt      *time.Time `json:"end_at,omitempty" validate:"required_with=StartAt"`
	Quantity   int        `json:"quantity,omitempty" validate:"omitempty,min=1,max=10000" example:"3"`
	Purpose    string     `json:"purpose,omitempty" validate:"max=500" example:"ゼミの打ち合わせ"`
}

func (r CreateReservationRequest) allocation() reservation.Allocation {
	if r.StartAt == nil {
		return reservation.NewQuantityAllocation(r.Quantity)
	}
	alloc := reservation.NewIntervalAllocation(*r.StartAt, *r.EndAt)
	// 両方指定された場合はドメインの検証で弾く
	alloc.Quantity = r.Quantity
	return alloc
}

type ReservationResponse struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resource_id"`
	RequesterID string     `json:"requester_id"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	Status      string     `json:"status" example:"confirmed"`
	Reason      string     `json:"reason,omitempty"`
	Purpose     string     `json:"purpose,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID: r.ID, ResourceID: r.ResourceID, RequesterID: r.RequesterID,
		Quantity: r.Quantity, Status: string(r.Status), Reason: r.Reason, Purpose: r.Purpose,
		Version: r.Version, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.Interval != nil {
		start, end := r.Interval.Start, r.Interval.End
		resp.StartAt, resp.EndAt = &start, &end
	}
	return resp
}

func toReservationResponses(rs []*reservation.Reservation) []ReservationResponse {
	resp := make([]ReservationResponse, len(rs))
	for i, r := range rs {
		resp[i] = toReservationResponse(r)
	}
	return resp
}

// Create godoc
// @Summary 予約を作成
// @Description 時間枠または数量を確保し、確定済みの予約を返します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "競合・同時更新・受付停止中"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, _, err := requester(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		ResourceID:  req.ResourceID,
		RequesterID: userID,
		Allocation:  req.allocation(),
		Purpose:     req.Purpose,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約者本人または管理者が予約を取り消し、容量を解放します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param X-User-Role header string false "admin の場合は他人の予約も取り消せる"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "終了済みの予約"
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, admin, err := requester(c)
	if err != nil {
		return err
	}
	r, err := h.service.CancelReservation(c.Request().Context(), application.CancelReservationInput{
		ReservationID: c.Param("id"),
		RequesterID:   userID,
		Admin:         admin,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	userID, admin, err := requester(c)
	if err != nil {
		return err
	}
	r, err := h.service.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if !admin && !r.IsOwnedBy(userID) {
		return mapError(reservation.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// GetUserReservations godoc
// @Summary ユーザーの予約一覧を取得
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) GetUserReservations(c echo.Context) error {
	userID, _, err := requester(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	rs, err := h.service.GetUserReservations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

// GetUpcoming godoc
// @Summary 開始前の予約一覧を取得
// @Description 有効な時間枠予約のうち、まだ開始していないものを開始時刻の早い順に返します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations/upcoming [get]
func (h *ReservationHandler) GetUpcoming(c echo.Context) error {
	userID, _, err := requester(c)
	if err != nil {
		return err
	}
	limit, _ := pagination(c)
	rs, err := h.service.GetUpcomingReservations(c.Request().Context(), userID, time.Now(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}
