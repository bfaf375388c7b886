package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campus-reservation/internal/api"
	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// 認証はゲートウェイで済んでおり、利用者はヘッダーで渡される
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	RoleAdmin      = "admin"
)

// 409 や 400 の内訳を呼び出し側が判別するための理由コード
const (
	ReasonValidation             = "validation"
	ReasonKindMismatch           = "kind_mismatch"
	ReasonUnauthorized           = "unauthorized"
	ReasonNotFound               = "not_found"
	ReasonConflict               = "conflict"
	ReasonConcurrentModification = "concurrent_modification"
	ReasonUnavailable            = "resource_unavailable"
	ReasonInvalidState           = "invalid_state"
	ReasonPublicationFailure     = "publication_failure"
)

var errRequesterRequired = echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")

var errAdminRequired = echo.NewHTTPError(http.StatusForbidden, api.ErrorResponse{
	Error:  "管理者権限が必要です",
	Reason: ReasonUnauthorized,
})

type mapping struct {
	target error
	status int
	reason string
}

// 先頭から順に照合する
var mappings = []mapping{
	{reservation.ErrValidation, http.StatusBadRequest, ReasonValidation},
	{resource.ErrValidation, http.StatusBadRequest, ReasonValidation},
	{resource.ErrKindMismatch, http.StatusBadRequest, ReasonKindMismatch},
	{reservation.ErrUnauthorized, http.StatusForbidden, ReasonUnauthorized},
	{reservation.ErrReservationNotFound, http.StatusNotFound, ReasonNotFound},
	{resource.ErrResourceNotFound, http.StatusNotFound, ReasonNotFound},
	{reservation.ErrConflict, http.StatusConflict, ReasonConflict},
	{resource.ErrInsufficientCapacity, http.StatusConflict, ReasonConflict},
	{transaction.ErrConcurrentModification, http.StatusConflict, ReasonConcurrentModification},
	{resource.ErrResourceUnavailable, http.StatusConflict, ReasonUnavailable},
	{reservation.ErrInvalidState, http.StatusConflict, ReasonInvalidState},
	{event.ErrPublicationFailure, http.StatusServiceUnavailable, ReasonPublicationFailure},
}

// mapError はサービス層のエラーを HTTP エラーに変換する
func mapError(err error) error {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return echo.NewHTTPError(m.status, api.ErrorResponse{
				Error:  err.Error(),
				Reason: m.reason,
			}).SetInternal(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "処理がタイムアウトしました").SetInternal(err)
	}
	if errors.Is(err, application.ErrCompensationFailure) {
		return echo.NewHTTPError(http.StatusInternalServerError, "補償処理に失敗しました").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
}

// requester はヘッダーから利用者IDと管理者かどうかを取り出す
func requester(c echo.Context) (string, bool, error) {
	id := c.Request().Header.Get(HeaderUserID)
	if id == "" {
		return "", false, errRequesterRequired
	}
	return id, c.Request().Header.Get(HeaderUserRole) == RoleAdmin, nil
}

// requireAdmin は管理者以外を拒否する
func requireAdmin(c echo.Context) error {
	_, admin, err := requester(c)
	if err != nil {
		return err
	}
	if !admin {
		return errAdminRequired
	}
	return nil
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
