package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockResourceRepository implements resource.Repository
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) Create(ctx context.Context, r *resource.Resource) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockResourceRepository) GetByID(ctx context.Context, id string) (*resource.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// 呼び出しごとに新しい値を返す（リポジトリは毎回読み直す）
	r := *args.Get(0).(*resource.Resource)
	return &r, args.Error(1)
}

func (m *MockResourceRepository) List(ctx context.Context, limit, offset int) ([]*resource.Resource, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*resource.Resource), args.Error(1)
}

func (m *MockResourceRepository) Update(ctx context.Context, tx transaction.Tx, r *resource.Resource) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	r := *args.Get(0).(*reservation.Reservation)
	return &r, args.Error(1)
}

func (m *MockReservationRepository) GetByRequesterID(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, requesterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetByResourceID(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, resourceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetUpcomingByRequesterID(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, requesterID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetActiveByResourceID(ctx context.Context, resourceID string) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Update(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) GetElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

// MockOutboxRepository implements event.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Save(ctx context.Context, tx transaction.Tx, ev *event.Event) error {
	args := m.Called(ctx, tx, ev)
	return args.Error(0)
}

func (m *MockOutboxRepository) LockBatch(ctx context.Context, relayID string, limit int, lease time.Duration) ([]*event.OutboxRecord, error) {
	args := m.Called(ctx, relayID, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.OutboxRecord), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, seqs []int64) error {
	args := m.Called(ctx, seqs)
	return args.Error(0)
}

func (m *MockOutboxRepository) Release(ctx context.Context, seqs []int64) error {
	args := m.Called(ctx, seqs)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, seq int64, errMsg string, maxAttempts int) (event.OutboxStatus, error) {
	args := m.Called(ctx, seq, errMsg, maxAttempts)
	return args.Get(0).(event.OutboxStatus), args.Error(1)
}

// MockAvailabilityCache implements AvailabilityCache
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) GetAvailable(ctx context.Context, resourceID string) (int, bool, error) {
	args := m.Called(ctx, resourceID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockAvailabilityCache) SetAvailable(ctx context.Context, resourceID string, count int, ttl time.Duration) error {
	args := m.Called(ctx, resourceID, count, ttl)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	args := m.Called(ctx, resourceID)
	return args.Error(0)
}

// MockCompensator implements Compensator
type MockCompensator struct {
	mock.Mock
}

func (m *MockCompensator) RejectReservation(ctx context.Context, id, reason string) (bool, error) {
	args := m.Called(ctx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockCompensator) CompleteReservation(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCompensator) ApplyResourceStatusChange(ctx context.Context, resourceID string, status resource.Status) (*StatusChangeResult, error) {
	args := m.Called(ctx, resourceID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StatusChangeResult), args.Error(1)
}
