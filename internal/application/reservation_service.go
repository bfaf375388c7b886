package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/conflict"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// ReservationService は予約の作成・取消・補償を調停する
// 予約行を書き込むのはこのサービスだけで、すべての書き込みは ConcurrencyController を通る
type ReservationService struct {
	txManager       transaction.Manager
	resourceRepo    resource.Repository
	reservationRepo reservation.Repository
	outbox          event.OutboxRepository
	controller      *ConcurrencyController
	cache           AvailabilityCache
	metrics         *metrics.Metrics
}

func NewReservationService(
	tm transaction.Manager,
	rr resource.Repository,
	vr reservation.Repository,
	ob event.OutboxRepository,
	cc *ConcurrencyController,
	cache AvailabilityCache,
	m *metrics.Metrics,
) *ReservationService {
	return &ReservationService{
		txManager:       tm,
		resourceRepo:    rr,
		reservationRepo: vr,
		outbox:          ob,
		controller:      cc,
		cache:           cache,
		metrics:         m,
	}
}

type CreateReservationInput struct {
	ResourceID  string
	RequesterID string
	Allocation  reservation.Allocation
	Purpose     string
}

// CreateReservation は衝突判定・台帳の条件付き更新・Confirmed イベントの追記をひとつのトランザクションで行う
// 成功時の予約は CONFIRMED で、イベントはコミット済みのアウトボックスに載っている
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	draft := reservation.NewReservation(input.ResourceID, input.RequesterID, input.Allocation)
	draft.Purpose = input.Purpose
	if err := draft.Validate(); err != nil {
		s.metrics.ObserveReservation(outcomeLabel(err))
		return nil, err
	}

	var created *reservation.Reservation
	err := s.controller.Execute(ctx, "create_reservation", func(ctx context.Context) error {
		res, err := s.resourceRepo.GetByID(ctx, input.ResourceID)
		if err != nil {
			return err
		}
		if !res.IsBookable() {
			return resource.ErrResourceUnavailable
		}

		active, err := s.reservationRepo.GetActiveByResourceID(ctx, res.ID)
		if err != nil {
			return err
		}
		result, err := conflict.Detect(res, active, input.Allocation)
		if err != nil {
			return err
		}
		if result.HasConflict() {
			return conflictError(result)
		}

		r := reservation.NewReservation(res.ID, input.RequesterID, input.Allocation)
		r.ID = uuid.NewString()
		r.Purpose = input.Purpose
		if err := r.Confirm(); err != nil {
			return err
		}
		if err := res.Occupy(input.Allocation.Units()); err != nil {
			if errors.Is(err, resource.ErrInsufficientCapacity) {
				return fmt.Errorf("%w: %v", reservation.ErrConflict, err)
			}
			return err
		}
		ev, err := event.NewReservationEvent(event.TypeReservationConfirmed, r)
		if err != nil {
			return err
		}

		err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
			if err := s.reservationRepo.Create(ctx, tx, r); err != nil {
				return err
			}
			if err := s.resourceRepo.Update(ctx, tx, res); err != nil {
				return err
			}
			return s.outbox.Save(ctx, tx, ev)
		})
		if err != nil {
			return err
		}
		created = r
		return nil
	})
	s.metrics.ObserveReservation(outcomeLabel(err))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, created.ResourceID)
	logger.Ctx(ctx).Info("予約を確定しました",
		zap.String("reservation_id", created.ID),
		zap.String("resource_id", created.ResourceID),
		zap.String("requester_id", created.RequesterID),
	)
	return created, nil
}

type CancelReservationInput struct {
	ReservationID string
	RequesterID   string
	// Admin は所有者以外による取消を許可する
	Admin bool
}

// CancelReservation は予約自身のバージョンに対する条件付き更新で取り消す
// 同時に却下された場合はどちらか一方だけがコミットされ、負けた側は ErrInvalidState を受け取る
func (s *ReservationService) CancelReservation(ctx context.Context, input CancelReservationInput) (*reservation.Reservation, error) {
	var cancelled *reservation.Reservation
	err := s.controller.Execute(ctx, "cancel_reservation", func(ctx context.Context) error {
		r, err := s.reservationRepo.GetByID(ctx, input.ReservationID)
		if err != nil {
			return err
		}
		if !input.Admin && !r.IsOwnedBy(input.RequesterID) {
			return reservation.ErrUnauthorized
		}
		if err := r.Cancel(); err != nil {
			return err
		}
		if err := s.releaseAndRecord(ctx, r, event.TypeReservationCancelled); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cancelled.ResourceID)
	logger.Ctx(ctx).Info("予約をキャンセルしました",
		zap.String("reservation_id", cancelled.ID),
		zap.String("requester_id", input.RequesterID),
		zap.Bool("admin", input.Admin),
	)
	return cancelled, nil
}

// RejectReservation はシステム都合で予約を却下し、容量を戻す
// すでに終端状態なら何もせず false を返す
func (s *ReservationService) RejectReservation(ctx context.Context, id, reason string) (bool, error) {
	var applied bool
	var resourceID string
	err := s.controller.Execute(ctx, "reject_reservation", func(ctx context.Context) error {
		applied = false
		r, err := s.reservationRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status.IsTerminal() {
			return nil
		}
		if err := r.Reject(reason); err != nil {
			return err
		}
		if err := s.releaseAndRecord(ctx, r, event.TypeReservationRejected); err != nil {
			return err
		}
		applied, resourceID = true, r.ResourceID
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.invalidate(ctx, resourceID)
		logger.Ctx(ctx).Info("予約を却下しました", zap.String("reservation_id", id), zap.String("reason", reason))
	}
	return applied, nil
}

// CompleteReservation は確定済みの予約を完了にする（容量は戻さない）
// すでに終端状態なら何もせず false を返す
func (s *ReservationService) CompleteReservation(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := s.controller.Execute(ctx, "complete_reservation", func(ctx context.Context) error {
		applied = false
		r, err := s.reservationRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status.IsTerminal() {
			return nil
		}
		if err := r.Complete(); err != nil {
			return err
		}
		if err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
			return s.reservationRepo.Update(ctx, tx, r)
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// StatusChangeResult はリソース状態変更の適用結果
type StatusChangeResult struct {
	Resource *resource.Resource
	Changed  bool
	Rejected []*reservation.Reservation
}

// ApplyResourceStatusChange はリソースの状態を変更し、予約を受け付けない状態になった場合は
// 有効な予約をすべて却下する。状態変更・却下・イベント追記はひとつのトランザクションで行う
// 同じ状態への再適用は何もしない
func (s *ReservationService) ApplyResourceStatusChange(ctx context.Context, resourceID string, status resource.Status) (*StatusChangeResult, error) {
	if _, err := resource.ParseStatus(string(status)); err != nil {
		return nil, err
	}

	var result *StatusChangeResult
	err := s.controller.Execute(ctx, "apply_status_change", func(ctx context.Context) error {
		res, err := s.resourceRepo.GetByID(ctx, resourceID)
		if err != nil {
			return err
		}
		previous := res.Status
		changed, err := res.ChangeStatus(status)
		if err != nil {
			return err
		}

		var rejected []*reservation.Reservation
		var events []*event.Event
		if !status.Bookable() {
			active, err := s.reservationRepo.GetActiveByResourceID(ctx, res.ID)
			if err != nil {
				return err
			}
			for _, r := range active {
				if err := r.Reject(reservation.ReasonResourceUnavailable); err != nil {
					return err
				}
				res.Release(r.Allocation().Units())
				ev, err := event.NewReservationEvent(event.TypeReservationRejected, r)
				if err != nil {
					return err
				}
				rejected = append(rejected, r)
				events = append(events, ev)
			}
		}
		if changed {
			ev, err := event.NewResourceStatusChanged(res, previous)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}

		result = &StatusChangeResult{Resource: res, Changed: changed, Rejected: rejected}
		if !changed && len(rejected) == 0 {
			return nil
		}

		return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
			for _, r := range rejected {
				if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
					return err
				}
			}
			if err := s.resourceRepo.Update(ctx, tx, res); err != nil {
				return err
			}
			for _, ev := range events {
				if err := s.outbox.Save(ctx, tx, ev); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Changed || len(result.Rejected) > 0 {
		s.invalidate(ctx, resourceID)
		logger.Ctx(ctx).Info("リソース状態の変更を適用しました",
			zap.String("resource_id", resourceID),
			zap.String("status", string(status)),
			zap.Bool("changed", result.Changed),
			zap.Int("rejected", len(result.Rejected)),
		)
	}
	return result, nil
}

// CompleteElapsedReservations は終了時刻を過ぎた確定済み予約を完了にし、件数を返す
// 個別の失敗はログに残して次の予約に進む
func (s *ReservationService) CompleteElapsedReservations(ctx context.Context, now time.Time, limit int) (int, error) {
	elapsed, err := s.reservationRepo.GetElapsedConfirmed(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("終了済み予約の取得に失敗: %w", err)
	}

	completed := 0
	for _, r := range elapsed {
		applied, err := s.CompleteReservation(ctx, r.ID)
		if err != nil {
			logger.Ctx(ctx).Error("予約の完了処理に失敗", zap.String("reservation_id", r.ID), zap.Error(err))
			continue
		}
		if applied {
			completed++
		}
	}
	return completed, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.reservationRepo.GetByID(ctx, id)
}

func (s *ReservationService) GetUserReservations(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error) {
	limit, offset = pageBounds(limit, offset)
	return s.reservationRepo.GetByRequesterID(ctx, requesterID, limit, offset)
}

// GetUpcomingReservations は予約者の開始前の時間枠予約を開始時刻の早い順に返す
func (s *ReservationService) GetUpcomingReservations(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error) {
	limit, _ = pageBounds(limit, 0)
	return s.reservationRepo.GetUpcomingByRequesterID(ctx, requesterID, now, limit)
}

func (s *ReservationService) GetResourceReservations(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error) {
	if _, err := s.resourceRepo.GetByID(ctx, resourceID); err != nil {
		return nil, err
	}
	limit, offset = pageBounds(limit, offset)
	return s.reservationRepo.GetByResourceID(ctx, resourceID, limit, offset)
}

// releaseAndRecord は予約の状態遷移・容量の返却・イベント追記をひとつのトランザクションで行う
func (s *ReservationService) releaseAndRecord(ctx context.Context, r *reservation.Reservation, t event.Type) error {
	res, err := s.resourceRepo.GetByID(ctx, r.ResourceID)
	if err != nil {
		return err
	}
	res.Release(r.Allocation().Units())
	ev, err := event.NewReservationEvent(t, r)
	if err != nil {
		return err
	}
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
			return err
		}
		if err := s.resourceRepo.Update(ctx, tx, res); err != nil {
			return err
		}
		return s.outbox.Save(ctx, tx, ev)
	})
}

func (s *ReservationService) invalidate(ctx context.Context, resourceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, resourceID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func conflictError(result conflict.Result) error {
	if len(result.Conflicts) > 0 {
		return fmt.Errorf("%w: 重複する予約が%d件あります", reservation.ErrConflict, len(result.Conflicts))
	}
	return fmt.Errorf("%w: 残り%d / 要求%d", reservation.ErrConflict, result.Available, result.Requested)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, reservation.ErrConflict):
		return "conflict"
	case errors.Is(err, transaction.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, resource.ErrResourceUnavailable):
		return "unavailable"
	case errors.Is(err, resource.ErrResourceNotFound):
		return "not_found"
	case errors.Is(err, reservation.ErrValidation), errors.Is(err, resource.ErrKindMismatch):
		return "invalid"
	}
	return "error"
}

// pageBounds は一覧取得の件数とオフセットを許容範囲に収める
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
