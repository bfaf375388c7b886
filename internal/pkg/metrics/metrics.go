package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
// nil レシーバでも記録メソッドを呼べるため、テストでは nil を渡してよい
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の結果（status: confirmed, conflict, concurrent_modification, unavailable, error）
	ReservationsTotal *prometheus.CounterVec

	// 楽観的ロック競合による再試行回数（operation）
	OptimisticRetriesTotal *prometheus.CounterVec

	// イベント配信の結果（type, status: published, failed, dead）
	EventsPublishedTotal *prometheus.CounterVec

	// 補償処理の結果（type, result: applied, noop, failed）
	CompensationsTotal *prometheus.CounterVec

	// サーキットブレーカーの状態（name）0: closed, 1: half-open, 2: open
	CircuitBreakerState *prometheus.GaugeVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation attempts by outcome",
			},
			[]string{"status"},
		),
		OptimisticRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimistic_retries_total",
				Help: "Retries caused by version conflicts on the resource ledger",
			},
			[]string{"operation"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Outbox events handed to the broker by outcome",
			},
			[]string{"type", "status"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compensations_total",
				Help: "Saga compensation messages handled by outcome",
			},
			[]string{"type", "result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.OptimisticRetriesTotal,
		m.EventsPublishedTotal,
		m.CompensationsTotal,
		m.CircuitBreakerState,
		m.DistributedLockDuration,
	)

	return m
}

// ObserveReservation は予約操作の結果を記録する
func (m *Metrics) ObserveReservation(status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

// ObserveRetry は楽観的ロック競合による再試行を記録する
func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.OptimisticRetriesTotal.WithLabelValues(operation).Inc()
}

// ObservePublish はイベント配信の結果を記録する
func (m *Metrics) ObservePublish(eventType, status string) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// ObserveCompensation は補償処理の結果を記録する
func (m *Metrics) ObserveCompensation(eventType, result string) {
	if m == nil {
		return
	}
	m.CompensationsTotal.WithLabelValues(eventType, result).Inc()
}

// SetBreakerState はサーキットブレーカーの状態を記録する
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(state)
}

// ObserveLock は分散ロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}
