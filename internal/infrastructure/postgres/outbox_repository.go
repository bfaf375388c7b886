package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/transaction"
)

type outboxRow struct {
	Seq         int64     `db:"seq"`
	Envelope    []byte    `db:"envelope"`
	Status      string    `db:"status"`
	Attempts    int       `db:"attempts"`
	LastError   string    `db:"last_error"`
	Traceparent string    `db:"traceparent"`
	CreatedAt   time.Time `db:"created_at"`
}

// OutboxStore はトランザクショナルアウトボックスのPostgreSQL実装
type OutboxStore struct {
	db *sqlx.DB
}

func NewOutboxStore(db *sqlx.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Save は状態変更と同じトランザクションでイベントを追記する
// 呼び出し元のトレースコンテキストを traceparent として保存し、配信時にヘッダへ載せる
func (s *OutboxStore) Save(ctx context.Context, tx transaction.Tx, ev *event.Event) error {
	sqlxTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	envelope, err := ev.Marshal()
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	_, err = sqlxTx.ExecContext(ctx, `
		INSERT INTO outbox (event_id, type, aggregate_key, envelope, traceparent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
	`, ev.ID, string(ev.Type), ev.Key(), string(envelope), carrier["traceparent"], ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("アウトボックス追記に失敗: %w", err)
	}
	return nil
}

// LockBatch は配信待ちのイベントをリース付きで確保する
// 取得するのは集約キーごとに最も古い pending 行だけで、先行行が残っている間の後続行はどのリレーにも渡さない
// リースの切れた行は別のリレーが再取得できる
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, limit int, lease time.Duration) ([]*event.OutboxRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var rows []outboxRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT seq, envelope, status, attempts, COALESCE(last_error, '') AS last_error,
		       COALESCE(traceparent, '') AS traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		  AND (lease_until IS NULL OR lease_until < NOW())
		  AND NOT EXISTS (
		      SELECT 1 FROM outbox prev
		      WHERE prev.aggregate_key = outbox.aggregate_key
		        AND prev.status = 'pending'
		        AND prev.seq < outbox.seq
		  )
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("アウトボックス取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, tx.Commit()
	}

	seqs := make([]int64, len(rows))
	for i, row := range rows {
		seqs[i] = row.Seq
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET relay_id = $1, lease_until = NOW() + make_interval(secs => $2) WHERE seq = ANY($3)`,
		relayID, lease.Seconds(), pq.Array(seqs),
	); err != nil {
		return nil, fmt.Errorf("アウトボックスのリース取得に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	records := make([]*event.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		ev, err := event.Unmarshal(row.Envelope)
		if err != nil {
			return nil, fmt.Errorf("アウトボックスの内容が不正です (seq=%d): %w", row.Seq, err)
		}
		records = append(records, &event.OutboxRecord{
			Seq:         row.Seq,
			Event:       ev,
			Status:      event.OutboxStatus(row.Status),
			Attempts:    row.Attempts,
			LastError:   row.LastError,
			Traceparent: row.Traceparent,
			CreatedAt:   row.CreatedAt,
		})
	}
	return records, nil
}

// MarkPublished は配信済みにする
func (s *OutboxStore) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'published', published_at = NOW(), lease_until = NULL, last_error = NULL WHERE seq = ANY($1)`,
		pq.Array(seqs),
	)
	if err != nil {
		return fmt.Errorf("アウトボックス更新に失敗: %w", err)
	}
	return nil
}

// Release は配信しなかった行のリースを試行回数を変えずに解放する
func (s *OutboxStore) Release(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET lease_until = NULL, relay_id = NULL WHERE seq = ANY($1) AND status = 'pending'`,
		pq.Array(seqs),
	)
	if err != nil {
		return fmt.Errorf("アウトボックスのリース解放に失敗: %w", err)
	}
	return nil
}

// MarkFailed は試行回数を加算してリースを解放する
// 上限に達した行は dead になり、以降のリレーでは取得されない
func (s *OutboxStore) MarkFailed(ctx context.Context, seq int64, errMsg string, maxAttempts int) (event.OutboxStatus, error) {
	var status string
	err := s.db.GetContext(ctx, &status, `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    lease_until = NULL,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE 'pending' END
		WHERE seq = $1
		RETURNING status
	`, seq, errMsg, maxAttempts)
	if err != nil {
		return "", fmt.Errorf("アウトボックス更新に失敗: %w", err)
	}
	return event.OutboxStatus(status), nil
}

// インターフェースを満たしているか確認
var _ event.OutboxRepository = (*OutboxStore)(nil)
