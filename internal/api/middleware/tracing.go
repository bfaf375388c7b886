package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext は traceparent ヘッダーのトレースをリクエストのコンテキストに取り込む
// 予約時に積まれるイベントはこのトレースを引き継ぐ
func TraceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
