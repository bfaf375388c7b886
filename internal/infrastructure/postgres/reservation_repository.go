package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

type reservationRow struct {
	ID          string     `db:"id"`
	ResourceID  string     `db:"resource_id"`
	RequesterID string     `db:"requester_id"`
	StartAt     *time.Time `db:"start_at"`
	EndAt       *time.Time `db:"end_at"`
	Quantity    int        `db:"quantity"`
	Status      string     `db:"status"`
	Reason      string     `db:"reason"`
	Purpose     string     `db:"purpose"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	Version     int        `db:"version"`
}

func (r *reservationRow) toEntity() *reservation.Reservation {
	res := &reservation.Reservation{
		ID: r.ID, ResourceID: r.ResourceID, RequesterID: r.RequesterID,
		Quantity: r.Quantity, Status: reservation.Status(r.Status), Reason: r.Reason, Purpose: r.Purpose,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
	if r.StartAt != nil && r.EndAt != nil {
		res.Interval = &reservation.Interval{Start: *r.StartAt, End: *r.EndAt}
	}
	return res
}

const reservationColumns = `id, resource_id, requester_id, start_at, end_at, quantity, status, reason, purpose, created_at, updated_at, version`

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	var startAt, endAt *time.Time
	if res.Interval != nil {
		startAt, endAt = &res.Interval.Start, &res.Interval.End
	}
	query := `INSERT INTO reservations (id, resource_id, requester_id, start_at, end_at, quantity, status, reason, purpose, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := sqlxTx.ExecContext(ctx, query,
		res.ID, res.ResourceID, res.RequesterID, startAt, endAt, res.Quantity,
		string(res.Status), res.Reason, res.Purpose, res.CreatedAt, res.UpdatedAt, res.Version,
	); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", mapWriteError(err))
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	if !validID(id) {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByRequesterID(ctx context.Context, requesterID string, limit, offset int) ([]*reservation.Reservation, error) {
	return r.selectMany(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE requester_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, requesterID, limit, offset)
}

func (r *ReservationRepository) GetByResourceID(ctx context.Context, resourceID string, limit, offset int) ([]*reservation.Reservation, error) {
	return r.selectMany(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE resource_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, resourceID, limit, offset)
}

func (r *ReservationRepository) GetUpcomingByRequesterID(ctx context.Context, requesterID string, now time.Time, limit int) ([]*reservation.Reservation, error) {
	return r.selectMany(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE requester_id = $1 AND status IN ('pending', 'confirmed') AND start_at > $2 ORDER BY start_at LIMIT $3`, requesterID, now, limit)
}

func (r *ReservationRepository) GetActiveByResourceID(ctx context.Context, resourceID string) ([]*reservation.Reservation, error) {
	statuses := make([]string, len(reservation.ActiveStatuses))
	for i, s := range reservation.ActiveStatuses {
		statuses[i] = string(s)
	}
	return r.selectMany(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE resource_id = $1 AND status = ANY($2) ORDER BY created_at`, resourceID, pq.Array(statuses))
}

// Update は読み取り時のバージョンを条件に予約を更新する
// 取消と却下が競合した場合、先にコミットした側だけが成功する
func (r *ReservationRepository) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE reservations SET status = $1, reason = $2, updated_at = $3, version = version + 1 WHERE id = $4 AND version = $5`
	result, err := sqlxTx.ExecContext(ctx, query, string(res.Status), res.Reason, res.UpdatedAt, res.ID, res.Version)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", mapWriteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := sqlxTx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id = $1)`, res.ID); err != nil {
			return fmt.Errorf("予約存在確認に失敗: %w", err)
		}
		if !exists {
			return reservation.ErrReservationNotFound
		}
		return transaction.ErrConcurrentModification
	}
	res.Version++
	return nil
}

func (r *ReservationRepository) GetElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	return r.selectMany(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE status = 'confirmed' AND end_at IS NOT NULL AND end_at <= $1 ORDER BY end_at LIMIT $2`, now, limit)
}

func (r *ReservationRepository) selectMany(ctx context.Context, query string, args ...any) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
