package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	// 各テストで新しいレジストリを使用
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.ReservationsTotal)
	assert.NotNil(t, m.OptimisticRetriesTotal)
	assert.NotNil(t, m.EventsPublishedTotal)
	assert.NotNil(t, m.CompensationsTotal)
	assert.NotNil(t, m.CircuitBreakerState)
	assert.NotNil(t, m.DistributedLockDuration)
}

func TestObserveReservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveReservation("confirmed")
	m.ObserveReservation("confirmed")
	m.ObserveReservation("conflict")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("conflict")))
}

func TestObserveRetryAndPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveRetry("create_reservation")
	m.ObservePublish("Confirmed", "published")
	m.ObservePublish("Confirmed", "dead")
	m.ObserveCompensation("OutcomeFailed", "noop")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OptimisticRetriesTotal.WithLabelValues("create_reservation")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EventsPublishedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompensationsTotal.WithLabelValues("OutcomeFailed", "noop")))
}

func TestSetBreakerState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.SetBreakerState("kafka-producer", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("kafka-producer")))

	m.SetBreakerState("kafka-producer", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("kafka-producer")))
}

func TestObserveLock(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveLock("acquire", "success", 0.015)
	m.ObserveLock("release", "success", 0.002)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "distributed_lock_duration_seconds" {
			found = true
			assert.Equal(t, 2, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "distributed_lock_duration_seconds metric not found")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReservation("confirmed")
		m.ObserveRetry("cancel_reservation")
		m.ObservePublish("Cancelled", "failed")
		m.ObserveCompensation("OutcomeSucceeded", "applied")
		m.SetBreakerState("kafka-producer", 1)
		m.ObserveLock("acquire", "failed", 0.1)
	})
}
