// Package kafka はドメインイベントを Kafka に配信し、下流サービスの結果イベントを受信する。
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sanosuguru/go-campus-reservation/internal/config"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/breaker"
)

// メッセージヘッダ
const (
	HeaderEventID     = "event_id"
	HeaderEventType   = "event_type"
	HeaderRoutingKey  = "routing_key"
	HeaderTraceparent = "traceparent"
)

// MessageWriter は kafka.Writer のうち配信に使う部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter は設定から kafka.Writer を作成する
// キーのハッシュでパーティションを決めるため、同じ集約のイベントは順序が保たれる
func NewWriter(cfg *config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// Producer はアウトボックスのイベントをトピックに配信する
type Producer struct {
	writer  MessageWriter
	topic   string
	breaker *breaker.Breaker
	timeout time.Duration
}

func NewProducer(w MessageWriter, topic string, b *breaker.Breaker, timeout time.Duration) *Producer {
	return &Producer{writer: w, topic: topic, breaker: b, timeout: timeout}
}

// Publish は1件のイベントを配信する
// ブレーカーが開いている間はブローカーに接続せずに失敗する
func (p *Producer) Publish(ctx context.Context, rec *event.OutboxRecord) error {
	msg, err := NewMessage(p.topic, rec)
	if err != nil {
		return err
	}

	err = p.breaker.Do(func() error {
		writeCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return p.writer.WriteMessages(writeCtx, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", event.ErrPublicationFailure, err)
	}
	return nil
}

// Close は writer を閉じる
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NewMessage はアウトボックスの行を Kafka メッセージに変換する
func NewMessage(topic string, rec *event.OutboxRecord) (kafka.Message, error) {
	ev := rec.Event
	if !ev.Type.Known() {
		return kafka.Message{}, fmt.Errorf("%w: %s", event.ErrUnknownEventType, ev.Type)
	}
	value, err := ev.Marshal()
	if err != nil {
		return kafka.Message{}, err
	}

	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(ev.ID)},
		{Key: HeaderEventType, Value: []byte(ev.Type)},
		{Key: HeaderRoutingKey, Value: []byte(ev.Type.RoutingKey())},
	}
	if rec.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceparent, Value: []byte(rec.Traceparent)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(ev.Key()),
		Value:   value,
		Headers: headers,
		Time:    ev.OccurredAt,
	}, nil
}
