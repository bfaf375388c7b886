package resource

import (
	"context"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// Repository はリソース台帳のインターフェース
type Repository interface {
	// Create は新しいリソースを登録する
	Create(ctx context.Context, resource *Resource) error

	// GetByID はIDからリソースを取得する
	GetByID(ctx context.Context, id string) (*Resource, error)

	// List はリソース一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Resource, error)

	// Update は残量・状態を条件付きで更新する（楽観的ロック、トランザクション必須）
	// 読み取り時の Version と一致しない場合は transaction.ErrConcurrentModification を返す
	// 成功時は resource.Version を1つ進める
	Update(ctx context.Context, tx transaction.Tx, resource *Resource) error
}
