package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// PostgreSQL のエラーコード
const (
	codeCheckViolation       = "23514"
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapWriteError は書き込み時の制約違反をドメインエラーに変換する
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeExclusionViolation:
		// 有効な予約の時間帯が重なった
		return errors.Join(reservation.ErrConflict, err)
	case codeCheckViolation:
		// 残数が負になる更新
		return errors.Join(resource.ErrInsufficientCapacity, err)
	case codeSerializationFailure, codeDeadlockDetected:
		return errors.Join(transaction.ErrConcurrentModification, err)
	}
	return err
}
