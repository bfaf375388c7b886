package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

var errForeignTx = errors.New("postgres 以外のトランザクションが渡されました")

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// Commit はトランザクションをコミットする
// 遅延評価される制約（排他制約など）の違反はコミット時にも返るため、ドメインエラーに変換する
func (t *TxWrapper) Commit() error {
	return mapWriteError(t.Tx.Commit())
}

// Rollback はトランザクションをロールバックする
func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は新しいトランザクションを開始する
// 分離レベルは READ COMMITTED のまま。排他性はバージョン条件付き UPDATE と制約で担保する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
// リポジトリ実装で使用する
func UnwrapTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if wrapper, ok := tx.(*TxWrapper); ok && wrapper.Tx != nil {
		return wrapper.Tx, nil
	}
	return nil, errForeignTx
}

var _ transaction.Manager = (*TxManager)(nil)
