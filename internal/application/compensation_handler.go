package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
)

// Compensator は補償処理で呼び出す予約操作
type Compensator interface {
	RejectReservation(ctx context.Context, id, reason string) (bool, error)
	CompleteReservation(ctx context.Context, id string) (bool, error)
	ApplyResourceStatusChange(ctx context.Context, resourceID string, status resource.Status) (*StatusChangeResult, error)
}

// CompensationHandler は下流サービスの結果イベントを受けて補償遷移を適用する
// 判定は現在の状態に基づくため、同じイベントを何度受け取っても結果は変わらない
type CompensationHandler struct {
	compensator Compensator
	metrics     *metrics.Metrics
}

func NewCompensationHandler(c Compensator, m *metrics.Metrics) *CompensationHandler {
	return &CompensationHandler{compensator: c, metrics: m}
}

// Handle はイベントを1件処理する
// nil を返したメッセージはコミットしてよい。ErrCompensationFailure の場合はコミットせず再配信を待つ
func (h *CompensationHandler) Handle(ctx context.Context, ev *event.Event) error {
	log := logger.Ctx(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("reservation_id", ev.ReservationID),
		zap.String("resource_id", ev.ResourceID),
	)
	if reason := ev.Outcome().Reason; reason != "" {
		log = log.With(zap.String("outcome_reason", reason))
	}

	applied, err := h.apply(ctx, ev)
	switch {
	case err == nil && applied:
		h.metrics.ObserveCompensation(string(ev.Type), "applied")
		log.Info("補償処理を適用しました")
		return nil
	case err == nil:
		h.metrics.ObserveCompensation(string(ev.Type), "noop")
		log.Debug("適用済みまたは対象外のイベントです")
		return nil
	case errors.Is(err, reservation.ErrReservationNotFound), errors.Is(err, resource.ErrResourceNotFound):
		// 存在しない集約へのイベントは再配信しても解決しない
		h.metrics.ObserveCompensation(string(ev.Type), "skipped")
		log.Warn("補償対象が見つかりません", zap.Error(err))
		return nil
	case errors.Is(err, reservation.ErrValidation), errors.Is(err, resource.ErrValidation), errors.Is(err, event.ErrInvalidEnvelope):
		h.metrics.ObserveCompensation(string(ev.Type), "skipped")
		log.Error("補償イベントの内容が不正です", zap.Error(err))
		return nil
	}

	h.metrics.ObserveCompensation(string(ev.Type), "failed")
	log.Error("補償処理に失敗しました", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrCompensationFailure, err)
}

func (h *CompensationHandler) apply(ctx context.Context, ev *event.Event) (bool, error) {
	switch ev.Type {
	case event.TypeOutcomeFailed:
		if ev.ReservationID == "" {
			return false, reservation.ErrReservationNotFound
		}
		return h.compensator.RejectReservation(ctx, ev.ReservationID, reservation.ReasonOutcomeFailed)

	case event.TypeOutcomeSucceeded:
		if ev.ReservationID == "" {
			return false, reservation.ErrReservationNotFound
		}
		applied, err := h.compensator.CompleteReservation(ctx, ev.ReservationID)
		if errors.Is(err, reservation.ErrInvalidState) {
			// 確定前の予約には成功結果を適用しない
			return false, nil
		}
		return applied, err

	case event.TypeResourceStatusChanged:
		p, err := ev.StatusChange()
		if err != nil {
			return false, err
		}
		status, err := resource.ParseStatus(string(p.Current))
		if err != nil {
			return false, err
		}
		result, err := h.compensator.ApplyResourceStatusChange(ctx, ev.ResourceID, status)
		if err != nil {
			return false, err
		}
		return result.Changed || len(result.Rejected) > 0, nil
	}
	return false, nil
}
