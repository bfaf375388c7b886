package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-campus-reservation/internal/config"
)

// MetricsBasicAuth は /metrics エンドポイント用の Basic 認証ミドルウェア
// ユーザーとパスワードの両方が設定されている場合のみ認証を要求する
// 設定されていない場合は認証をスキップ（ローカル開発用）
func MetricsBasicAuth(cfg config.MetricsConfig) echo.MiddlewareFunc {
	if !cfg.Enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		// タイミング攻撃を防ぐため ConstantTimeCompare を使用
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.User)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1

		return userMatch && passMatch, nil
	})
}
