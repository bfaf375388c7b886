package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
)

// Dependency はヘルスチェック対象の依存先
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	deps    []Dependency
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerを作成する
func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 2 * time.Second}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description データベースと Redis への疎通を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	code := http.StatusOK
	if len(h.deps) > 0 {
		resp.Checks = make(map[string]string, len(h.deps))
	}
	for _, d := range h.deps {
		if err := d.Ping(ctx); err != nil {
			logger.Warn("ヘルスチェック失敗", zap.String("dependency", d.Name), zap.Error(err))
			resp.Checks[d.Name] = "down"
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[d.Name] = "up"
	}
	resp.Timestamp = time.Now().Format(time.RFC3339)
	return c.JSON(code, resp)
}
