package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/config"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/event"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/retry"
)

// MessageReader は kafka.Reader のうち消費に使う部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler は受信したイベントを処理する
// nil を返した場合のみオフセットをコミットする
type EventHandler interface {
	Handle(ctx context.Context, ev *event.Event) error
}

// NewReader は結果イベントのトピック群を購読する kafka.Reader を作成する
// コミットは処理完了後に明示的に行う
func NewReader(cfg *config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.OutcomeTopics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// Consumer は結果イベントを1件ずつ処理し、成功後にコミットする
// 処理に失敗したメッセージは成功するまでその場で再試行するため、パーティション内の順序は崩れない
type Consumer struct {
	reader  MessageReader
	handler EventHandler
	backoff retry.Backoff
	tracer  trace.Tracer
}

func NewConsumer(r MessageReader, h EventHandler, retryBase, retryMax time.Duration) *Consumer {
	return &Consumer{
		reader:  r,
		handler: h,
		backoff: retry.Exponential(retryBase, retryMax),
		tracer:  otel.Tracer("campus-reservation/kafka-consumer"),
	}
}

// Run はコンテキストがキャンセルされるまでメッセージを処理する
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// 未コミットのまま終了し、次回起動時に再配信される
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("オフセットのコミットに失敗", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ev, err := event.Unmarshal(msg.Value)
	if err != nil {
		// 再配信しても読めないためコミットして先に進む
		logger.Error("イベントを解析できません",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	msgCtx := ExtractTraceContext(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "consume "+string(ev.Type),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
			attribute.String("event.id", ev.ID),
		),
	)
	defer span.End()

	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(msgCtx, ev)
		if err == nil {
			return nil
		}
		span.RecordError(err)

		wait := c.backoff(attempt)
		logger.Ctx(msgCtx).Warn("イベント処理に失敗したため再試行します",
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "cancelled before success")
			return errors.Join(ctx.Err(), err)
		case <-time.After(wait):
		}
	}
}

// ExtractTraceContext はメッセージヘッダからトレースコンテキストを復元する
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
