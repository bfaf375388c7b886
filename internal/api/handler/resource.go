package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

type ResourceHandler struct {
	resources    ResourceServiceInterface
	reservations ReservationServiceInterface
}

func NewResourceHandler(rs ResourceServiceInterface, res ReservationServiceInterface) *ResourceHandler {
	return &ResourceHandler{resources: rs, reservations: res}
}

type CreateResourceRequest struct {
	Name     string `json:"name" validate:"required,max=200" example:"第3会議室"`
	Kind     string `json:"kind" validate:"required,oneof=interval counter" example:"interval"`
	Capacity int    `json:"capacity" validate:"omitempty,min=1" example:"1"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required" example:"unavailable"`
}

type ResourceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Capacity  int       `json:"capacity"`
	Available int       `json:"available"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	ResourceID string `json:"resource_id"`
	Available  int    `json:"available"`
}

type StatusChangeResponse struct {
	Resource      ResourceResponse `json:"resource"`
	Changed       bool             `json:"changed"`
	RejectedCount int              `json:"rejected_count"`
}

func toResourceResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID: r.ID, Name: r.Name, Kind: string(r.Kind),
		Capacity: r.Capacity, Available: r.Available, Status: string(r.Status),
		Version: r.Version, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// Create godoc
// @Summary リソースを登録
// @Tags resources
// @Accept json
// @Produce json
// @Param X-User-Role header string true "admin"
// @Param request body CreateResourceRequest true "リソース情報"
// @Success 201 {object} ResourceResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /resources [post]
func (h *ResourceHandler) Create(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	var req CreateResourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.resources.CreateResource(c.Request().Context(), application.CreateResourceInput{
		Name: req.Name, Kind: resource.Kind(req.Kind), Capacity: req.Capacity,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toResourceResponse(r))
}

// List godoc
// @Summary リソース一覧を取得
// @Tags resources
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ResourceResponse
// @Router /resources [get]
func (h *ResourceHandler) List(c echo.Context) error {
	limit, offset := pagination(c)
	rs, err := h.resources.ListResources(c.Request().Context(), limit, offset)
	if err != nil {
		return mapError(err)
	}
	resp := make([]ResourceResponse, len(rs))
	for i, r := range rs {
		resp[i] = toResourceResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary リソースを取得
// @Tags resources
// @Produce json
// @Param id path string true "リソースID"
// @Success 200 {object} ResourceResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /resources/{id} [get]
func (h *ResourceHandler) GetByID(c echo.Context) error {
	r, err := h.resources.GetResource(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResourceResponse(r))
}

// Availability godoc
// @Summary 予約可能な残数を取得
// @Description キャッシュ経由で返すため、直前の予約が反映されていない場合がある
// @Tags resources
// @Produce json
// @Param id path string true "リソースID"
// @Success 200 {object} AvailabilityResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /resources/{id}/availability [get]
func (h *ResourceHandler) Availability(c echo.Context) error {
	id := c.Param("id")
	n, err := h.resources.CountAvailable(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{ResourceID: id, Available: n})
}

// Reservations godoc
// @Summary リソースの予約一覧を取得（管理者のみ）
// @Tags resources
// @Produce json
// @Param X-User-Role header string true "admin"
// @Param id path string true "リソースID"
// @Success 200 {array} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /resources/{id}/reservations [get]
func (h *ResourceHandler) Reservations(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	limit, offset := pagination(c)
	rs, err := h.reservations.GetResourceReservations(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

// UpdateStatus godoc
// @Summary リソースの状態を変更（管理者のみ）
// @Description 予約を受け付けない状態にすると、有効な予約はすべて却下されます
// @Tags resources
// @Accept json
// @Produce json
// @Param X-User-Role header string true "admin"
// @Param id path string true "リソースID"
// @Param request body UpdateStatusRequest true "新しい状態"
// @Success 200 {object} StatusChangeResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /resources/{id}/status [put]
func (h *ResourceHandler) UpdateStatus(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	status, err := resource.ParseStatus(req.Status)
	if err != nil {
		return mapError(err)
	}
	result, err := h.reservations.ApplyResourceStatusChange(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, StatusChangeResponse{
		Resource:      toResourceResponse(result.Resource),
		Changed:       result.Changed,
		RejectedCount: len(result.Rejected),
	})
}
