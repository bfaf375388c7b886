package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// memStore は楽観的ロックの振る舞いだけを再現したインメモリの台帳
// 書き込みはトランザクションに溜め、コミット時にバージョンを再検証してから一括で反映する
type memStore struct {
	mu           sync.Mutex
	resources    map[string]resource.Resource
	reservations map[string]reservation.Reservation
	outbox       []*event.Event
	// resourceVersions はコミットされたリソースのバージョン履歴
	resourceVersions map[string][]int
	commits          int
}

func newMemStore() *memStore {
	return &memStore{
		resources:        make(map[string]resource.Resource),
		reservations:     make(map[string]reservation.Reservation),
		resourceVersions: make(map[string][]int),
	}
}

type stagedResource struct {
	expected int
	value    resource.Resource
}

type stagedReservation struct {
	expected int // -1 は新規作成
	value    reservation.Reservation
}

type memTx struct {
	store        *memStore
	resources    []stagedResource
	reservations []stagedReservation
	events       []*event.Event
	done         bool
}

func (s *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	return &memTx{store: s}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range t.resources {
		if cur, ok := s.resources[w.value.ID]; !ok || cur.Version != w.expected {
			return transaction.ErrConcurrentModification
		}
	}
	for _, w := range t.reservations {
		cur, ok := s.reservations[w.value.ID]
		if w.expected < 0 {
			if ok {
				return errors.New("duplicate reservation id")
			}
			continue
		}
		if !ok || cur.Version != w.expected {
			return transaction.ErrConcurrentModification
		}
	}

	for _, w := range t.resources {
		s.resources[w.value.ID] = w.value
		s.resourceVersions[w.value.ID] = append(s.resourceVersions[w.value.ID], w.value.Version)
	}
	for _, w := range t.reservations {
		s.reservations[w.value.ID] = w.value
	}
	s.outbox = append(s.outbox, t.events...)
	s.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func asMemTx(tx transaction.Tx) *memTx {
	return tx.(*memTx)
}

// === resource.Repository ===

type memResourceRepo struct{ s *memStore }

func (r memResourceRepo) Create(ctx context.Context, res *resource.Resource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resources[res.ID] = *res
	r.s.resourceVersions[res.ID] = []int{res.Version}
	return nil
}

func (r memResourceRepo) GetByID(ctx context.Context, id string) (*resource.Resource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.resources[id]
	if !ok {
		return nil, resource.ErrResourceNotFound
	}
	return &res, nil
}

func (r memResourceRepo) List(ctx context.Context, limit, offset int) ([]*resource.Resource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*resource.Resource
	for _, res := range r.s.resources {
		res := res
		out = append(out, &res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r memResourceRepo) Update(ctx context.Context, tx transaction.Tx, res *resource.Resource) error {
	r.s.mu.Lock()
	cur, ok := r.s.resources[res.ID]
	r.s.mu.Unlock()
	if !ok {
		return resource.ErrResourceNotFound
	}
	if cur.Version != res.Version {
		return transaction.ErrConcurrentModification
	}
	if res.Available < 0 {
		return resource.ErrInsufficientCapacity
	}
	next := *res
	next.Version++
	t := asMemTx(tx)
	t.resources = append(t.resources, stagedResource{expected: res.Version, value: next})
	res.Version++
	return nil
}

// === reservation.Repository ===

type memReservationRepo struct{ s *memStore }

func (r memReservationRepo) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	t := asMemTx(tx)
	t.reservations = append(t.reservations, stagedReservation{expected: -1, value: *res})
	return nil
}

func (r memReservationRepo) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return &res, nil
}

func (r memReservationRepo) filter(pred func(reservation.Reservation) bool) []*reservation.Reservation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*reservation.Reservation
	for _, res := range r.s.reservations {
		if pred(res) {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r memReservationRepo) GetByRequesterID(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error) {
	out := r.filter(func(res reservation.Reservation) bool { return res.RequesterID == requesterID })
	return page(out, limit, offset), nil
}

func (r memReservationRepo) GetByResourceID(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error) {
	out := r.filter(func(res reservation.Reservation) bool { return res.ResourceID == resourceID })
	return page(out, limit, offset), nil
}

func (r memReservationRepo) GetUpcomingByRequesterID(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error) {
	out := r.filter(func(res reservation.Reservation) bool {
		return res.RequesterID == requesterID && res.IsUpcoming(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return page(out, limit, 0), nil
}

func (r memReservationRepo) GetActiveByResourceID(ctx context.Context, resourceID string) ([]*reservation.Reservation, error) {
	return r.filter(func(res reservation.Reservation) bool {
		return res.ResourceID == resourceID && res.IsActive()
	}), nil
}

func (r memReservationRepo) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	r.s.mu.Lock()
	cur, ok := r.s.reservations[res.ID]
	r.s.mu.Unlock()
	if !ok {
		return reservation.ErrReservationNotFound
	}
	if cur.Version != res.Version {
		return transaction.ErrConcurrentModification
	}
	next := *res
	next.Version++
	t := asMemTx(tx)
	t.reservations = append(t.reservations, stagedReservation{expected: res.Version, value: next})
	res.Version++
	return nil
}

func (r memReservationRepo) GetElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	out := r.filter(func(res reservation.Reservation) bool {
		return res.Status == reservation.StatusConfirmed && res.HasElapsed(now)
	})
	return page(out, limit, 0), nil
}

// === event.OutboxRepository ===

type memOutboxRepo struct{ s *memStore }

func (r memOutboxRepo) Save(ctx context.Context, tx transaction.Tx, ev *event.Event) error {
	t := asMemTx(tx)
	t.events = append(t.events, ev)
	return nil
}

func (r memOutboxRepo) LockBatch(ctx context.Context, relayID string, limit int, lease time.Duration) ([]*event.OutboxRecord, error) {
	return nil, nil
}

func (r memOutboxRepo) MarkPublished(ctx context.Context, seqs []int64) error {
	return nil
}

func (r memOutboxRepo) Release(ctx context.Context, seqs []int64) error {
	return nil
}

func (r memOutboxRepo) MarkFailed(ctx context.Context, seq int64, errMsg string, maxAttempts int) (event.OutboxStatus, error) {
	return event.OutboxPending, nil
}

// === helpers ===

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *memStore) events() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.Event, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *memStore) eventsFor(reservationID string, t event.Type) []*event.Event {
	var out []*event.Event
	for _, ev := range s.events() {
		if ev.ReservationID == reservationID && ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *memStore) resource(id string) resource.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[id]
}

func (s *memStore) versions(id string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.resourceVersions[id]...)
}

func (s *memStore) activeFor(resourceID string) []reservation.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reservation.Reservation
	for _, r := range s.reservations {
		if r.ResourceID == resourceID && r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// seed はリソースを台帳に直接登録する
func (s *memStore) seed(id, name string, kind resource.Kind, capacity int) *resource.Resource {
	res := resource.NewResource(name, kind, capacity)
	res.ID = id
	_ = memResourceRepo{s}.Create(context.Background(), res)
	return res
}

// newMemService は memStore を使う ReservationService を作成する
// 再試行の待ち時間はテストを速くするために短くしている
func newMemService(s *memStore) *ReservationService {
	cc := NewConcurrencyController(RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond, Jitter: 0.5}, nil)
	return NewReservationService(s, memResourceRepo{s}, memReservationRepo{s}, memOutboxRepo{s}, cc, nil, nil)
}
