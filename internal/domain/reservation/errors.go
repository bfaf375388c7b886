package reservation

import (
	"errors"
	"fmt"
)

// ErrValidation はリクエスト形式の不備を表す（台帳に触れる前に拒否する）
var ErrValidation = errors.New("予約の入力値が不正です")

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound = errors.New("予約が見つかりません")
	ErrConflict            = errors.New("指定の時間帯・数量は既存の予約と競合しています")
	ErrUnauthorized        = errors.New("この予約を操作する権限がありません")
	ErrInvalidState        = errors.New("現在の状態ではこの操作を実行できません")
	ErrResourceIDRequired  = fmt.Errorf("%w: リソースIDは必須です", ErrValidation)
	ErrRequesterIDRequired = fmt.Errorf("%w: 予約者IDは必須です", ErrValidation)
	ErrAllocationRequired  = fmt.Errorf("%w: 時間帯か数量のどちらか一方を指定してください", ErrValidation)
	ErrInvalidInterval     = fmt.Errorf("%w: 終了時刻は開始時刻より後である必要があります", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: 数量は1以上である必要があります", ErrValidation)
	ErrPurposeTooLong      = fmt.Errorf("%w: 利用目的は500文字以内で指定してください", ErrValidation)
)
