package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// SetupMiddleware は共通ミドルウェアを設定する
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	// リクエストID
	e.Use(middleware.RequestID())

	// 上流から受け取ったトレースをリクエストのコンテキストに載せる
	e.Use(TraceContext())

	// 構造化リクエストログ（zap）
	e.Use(RequestLogger())

	// パニックリカバリー
	e.Use(middleware.Recover())

	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE},
		AllowHeaders: []string{echo.HeaderContentType, "X-User-ID", "X-User-Role", "traceparent"},
	}))
}
