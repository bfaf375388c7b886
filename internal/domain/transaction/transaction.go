package transaction

import (
	"context"
	"errors"
)

// ErrConcurrentModification は楽観的ロックのバージョン不一致を表す
// 業務上の競合（容量不足・時間帯の重複）とは区別され、リトライ対象になる
var ErrConcurrentModification = errors.New("同時更新が検出されました（バージョン不一致）")

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn をひとつのトランザクション境界で実行する
// fn がエラーを返した場合はロールバックし、成功時のみコミットする
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
