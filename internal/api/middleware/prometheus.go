package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// ルート未定義のパスでラベルが増えないよう、テンプレートのパスを使う
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(responseStatus(c, err))).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// responseStatus はエラーハンドラーが書き込む前のステータスを推定する
func responseStatus(c echo.Context, err error) int {
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		return 500
	}
	return c.Response().Status
}
