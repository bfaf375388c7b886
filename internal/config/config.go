package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Reservation ReservationConfig
	Outbox      OutboxConfig
	Breaker     BreakerConfig
	Worker      WorkerConfig
	Metrics     MetricsConfig
}

// AppConfig はアプリケーション全体の設定
type AppConfig struct {
	Env         string `env:"APP_ENV" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
	ServiceName string `env:"SERVICE_NAME" env-default:"reservation-service"`
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string        `env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string `env:"DB_HOST" env-default:"localhost"`
	Port           string `env:"DB_PORT" env-default:"5432"`
	User           string `env:"DB_USER" env-default:"postgres"`
	Password       string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName         string `env:"DB_NAME" env-default:"campus_reservation"`
	SSLMode        string `env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MigrationsPath string `env:"DB_MIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// KafkaConfig はイベント配信・購読の設定
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	// 予約・リソースのドメインイベントを載せるトピック
	EventsTopic string `env:"KAFKA_EVENTS_TOPIC" env-default:"campus.reservation.events"`
	// 下流サービスからの結果イベントを購読するトピック
	OutcomeTopics []string      `env:"KAFKA_OUTCOME_TOPICS" env-default:"campus.payment.outcomes,campus.resource.events" env-separator:","`
	GroupID       string        `env:"KAFKA_GROUP_ID" env-default:"reservation-compensation"`
	WriteTimeout  time.Duration `env:"KAFKA_WRITE_TIMEOUT" env-default:"5s"`
	ConsumerRetry time.Duration `env:"KAFKA_CONSUMER_RETRY_BACKOFF" env-default:"500ms"`
	ConsumerMax   time.Duration `env:"KAFKA_CONSUMER_RETRY_MAX" env-default:"30s"`
}

// ReservationConfig は楽観的ロックの再試行設定
type ReservationConfig struct {
	MaxAttempts int           `env:"RESERVATION_MAX_ATTEMPTS" env-default:"3"`
	Backoff     time.Duration `env:"RESERVATION_RETRY_BACKOFF" env-default:"100ms"`
	Jitter      float64       `env:"RESERVATION_RETRY_JITTER" env-default:"0.2"`
	// 0 なら経過時間による打ち切りを行わない
	RetryTimeout time.Duration `env:"RESERVATION_RETRY_TIMEOUT" env-default:"0s"`
	CacheTTL     time.Duration `env:"AVAILABILITY_CACHE_TTL" env-default:"30s"`
}

// OutboxConfig はアウトボックスリレーの設定
type OutboxConfig struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" env-default:"500ms"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" env-default:"100"`
	Lease        time.Duration `env:"OUTBOX_LEASE" env-default:"5s"`
	MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" env-default:"10"`
	RelayID      string        `env:"OUTBOX_RELAY_ID"`
}

// BreakerConfig はブローカー呼び出しのサーキットブレーカー設定
type BreakerConfig struct {
	MaxRequests  uint32        `env:"BREAKER_MAX_REQUESTS" env-default:"3"`
	Interval     time.Duration `env:"BREAKER_INTERVAL" env-default:"5s"`
	Timeout      time.Duration `env:"BREAKER_TIMEOUT" env-default:"10s"`
	MinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" env-default:"5"`
	FailureRatio float64       `env:"BREAKER_FAILURE_RATIO" env-default:"0.6"`
}

// WorkerConfig はバックグラウンドワーカーの設定
type WorkerConfig struct {
	CompletionInterval time.Duration `env:"COMPLETION_SWEEP_INTERVAL" env-default:"1m"`
	CompletionBatch    int           `env:"COMPLETION_SWEEP_BATCH" env-default:"100"`
	LockTTL            time.Duration `env:"COMPLETION_LOCK_TTL" env-default:"30s"`
}

// MetricsConfig は /metrics の Basic 認証設定
// どちらかが空なら認証しない（ローカル開発用）
type MetricsConfig struct {
	User     string `env:"METRICS_USER"`
	Password string `env:"METRICS_PASSWORD"`
}

// Load は環境変数から設定を読み込む
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Reservation.MaxAttempts < 1 {
		return fmt.Errorf("RESERVATION_MAX_ATTEMPTS は1以上である必要があります: %d", c.Reservation.MaxAttempts)
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS は1以上である必要があります: %d", c.Outbox.MaxAttempts)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS が空です")
	}
	return nil
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Enabled は認証が有効かどうかを返す
func (c *MetricsConfig) Enabled() bool {
	return c.User != "" && c.Password != ""
}
