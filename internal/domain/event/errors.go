package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrPublicationFailure = errors.New("イベントの配信に失敗しました")
	ErrUnknownEventType   = errors.New("未知のイベント種別です")
	ErrInvalidEnvelope    = errors.New("イベントの形式が不正です")
)
