package application

import "errors"

// ErrCompensationFailure は補償処理を適用できなかったことを表す
// メッセージはコミットされず、再配信で再試行される
var ErrCompensationFailure = errors.New("補償処理の適用に失敗しました")
