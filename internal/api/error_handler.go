package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// ハンドラーが返した echo.HTTPError をそのまま JSON にする。それ以外は 500 として扱う
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := ErrorResponse{
		Error:     "内部サーバーエラー",
		Code:      http.StatusInternalServerError,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}

	if he, ok := err.(*echo.HTTPError); ok {
		resp.Code = he.Code
		switch m := he.Message.(type) {
		case string:
			resp.Error = m
		case ErrorResponse:
			resp.Error = m.Error
			resp.Reason = m.Reason
			resp.Details = m.Details
		default:
			resp.Error = http.StatusText(he.Code)
		}
	}

	if resp.Code >= 500 {
		logger.Ctx(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", resp.RequestID),
			zap.Error(err),
		)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(resp.Code)
	} else {
		sendErr = c.JSON(resp.Code, resp)
	}
	if sendErr != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(sendErr))
	}
}
