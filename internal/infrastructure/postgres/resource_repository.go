package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

// resourceRow はDBの行を表す構造体
type resourceRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Kind      string    `db:"kind"`
	Capacity  int       `db:"capacity"`
	Available int       `db:"available"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Version   int       `db:"version"`
}

func (r *resourceRow) toEntity() *resource.Resource {
	return &resource.Resource{
		ID:        r.ID,
		Name:      r.Name,
		Kind:      resource.Kind(r.Kind),
		Capacity:  r.Capacity,
		Available: r.Available,
		Status:    resource.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
}

const resourceColumns = `id, name, kind, capacity, available, status, created_at, updated_at, version`

// ResourceRepository はリソース台帳のPostgreSQL実装
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository はResourceRepositoryを作成する
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create は新しいリソースを登録する
func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource) error {
	query := `
		INSERT INTO resources (id, name, kind, capacity, available, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID, res.Name, string(res.Kind), res.Capacity, res.Available, string(res.Status),
		res.CreatedAt, res.UpdatedAt, res.Version,
	)
	if err != nil {
		return fmt.Errorf("リソース作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからリソースを取得する
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*resource.Resource, error) {
	if !validID(id) {
		return nil, resource.ErrResourceNotFound
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	var row resourceRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resource.ErrResourceNotFound
		}
		return nil, fmt.Errorf("リソース取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はリソース一覧を取得する
func (r *ResourceRepository) List(ctx context.Context, limit, offset int) ([]*resource.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var rows []resourceRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("リソース一覧取得に失敗しました: %w", err)
	}

	list := make([]*resource.Resource, len(rows))
	for i, row := range rows {
		list[i] = row.toEntity()
	}
	return list, nil
}

// Update は読み取り時のバージョンを条件にリソースを更新する（楽観的ロック）
// 一致しなければ transaction.ErrConcurrentModification を返す
func (r *ResourceRepository) Update(ctx context.Context, tx transaction.Tx, res *resource.Resource) error {
	sqlxTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE resources
		SET name = $1, status = $2, available = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	result, err := sqlxTx.ExecContext(ctx, query,
		res.Name, string(res.Status), res.Available, res.UpdatedAt, res.ID, res.Version,
	)
	if err != nil {
		return fmt.Errorf("リソース更新に失敗しました: %w", mapWriteError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return r.missOrStale(ctx, sqlxTx, res.ID)
	}

	res.Version++
	return nil
}

// missOrStale は条件付き更新が0件だった理由を判定する
func (r *ResourceRepository) missOrStale(ctx context.Context, tx *sqlx.Tx, id string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM resources WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("リソース存在確認に失敗しました: %w", err)
	}
	if !exists {
		return resource.ErrResourceNotFound
	}
	return transaction.ErrConcurrentModification
}

// インターフェースを満たしているか確認
var _ resource.Repository = (*ResourceRepository)(nil)
