package resource

import (
	"errors"
	"fmt"
)

// ErrValidation はリソース入力の形式エラーを表す
var ErrValidation = errors.New("リソースの入力値が不正です")

// Resource ドメインのエラー定義
var (
	ErrResourceNotFound      = errors.New("リソースが見つかりません")
	ErrResourceUnavailable   = errors.New("リソースは現在予約を受け付けていません")
	ErrInsufficientCapacity  = errors.New("リソースの残り容量が不足しています")
	ErrKindMismatch          = errors.New("リソースの種別と割当の形式が一致しません")
	ErrNameRequired          = fmt.Errorf("%w: リソース名は必須です", ErrValidation)
	ErrInvalidKind           = fmt.Errorf("%w: リソース種別が不正です", ErrValidation)
	ErrInvalidCapacity       = fmt.Errorf("%w: 容量は1以上である必要があります", ErrValidation)
	ErrInvalidStatus         = fmt.Errorf("%w: リソース状態が不正です", ErrValidation)
	ErrIntervalCapacityFixed = fmt.Errorf("%w: 時間枠リソースの容量は1です", ErrValidation)
)
