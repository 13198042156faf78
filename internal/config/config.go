package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/fidalex-ledger/pkg/mysql"
	"github.com/JoeShih716/fidalex-ledger/pkg/postgres"
)

// 帳本實作
const (
	LedgerMemoryMutex = "memory_mutex"
	LedgerMemoryLMAX  = "memory_lmax"
	LedgerMySQL       = "mysql"
	LedgerPostgres    = "postgres"
)

// 事件發佈方式
const (
	PublisherNone     = "none"
	PublisherKafka    = "kafka"
	PublisherRedis    = "redis"
	PublisherRabbitMQ = "rabbitmq"
)

type Config struct {
	Ledger    LedgerConfig    `yaml:"ledger"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	MySQL     mysql.Config    `yaml:"mysql"`
	Postgres  postgres.Config `yaml:"postgres"`
	Publisher PublisherConfig `yaml:"publisher"`
	Log       LogConfig       `yaml:"log"`
	// ShutdownTimeout 收到關閉信號後等待進行中請求的時間
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LedgerConfig struct {
	// Type: memory_mutex / memory_lmax / mysql / postgres
	Type string `yaml:"type"`
	// WALPath 記憶體帳本的 WAL 檔案，空字串代表不持久化
	WALPath        string `yaml:"wal_path"`
	LMAXBufferSize int    `yaml:"lmax_buffer_size"`
	// AutoMigrate 啟動時建立資料表 (僅 mysql / postgres)
	AutoMigrate bool `yaml:"auto_migrate"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type PublisherConfig struct {
	// Type: none / kafka / redis / rabbitmq
	Type     string         `yaml:"type"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load 讀取設定
//
// 順序: 預設值 -> YAML 檔 -> .env -> 環境變數 (後者覆蓋前者)
//
// 參數:
//
//	path: YAML 檔路徑，檔案不存在時只使用預設值與環境變數
//
// 回傳:
//
//	Config: 已驗證的設定
//	error: 解析或驗證錯誤
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// .env 不會覆蓋已存在的環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default 本機開發用的預設值
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			Type:           LedgerMemoryMutex,
			WALPath:        "data/wal.log",
			LMAXBufferSize: 1000,
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		GRPC:      GRPCConfig{Addr: ":50051"},
		Publisher: PublisherConfig{Type: PublisherNone},
		Log:       LogConfig{Level: "info", Format: "json"},
		MySQL: mysql.Config{
			Host:   "localhost",
			Port:   3306,
			User:   "root",
			DBName: "ledger",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

func (c *Config) fillDefaults() {
	c.MySQL = c.MySQL.WithDefaults()
	c.Postgres = c.Postgres.WithDefaults()
	if c.Ledger.LMAXBufferSize <= 0 {
		c.Ledger.LMAXBufferSize = 1000
	}
	if c.Publisher.Kafka.Topic == "" {
		c.Publisher.Kafka.Topic = "ledger.events"
	}
	if c.Publisher.Redis.Channel == "" {
		c.Publisher.Redis.Channel = "ledger_events"
	}
	if c.Publisher.RabbitMQ.Exchange == "" {
		c.Publisher.RabbitMQ.Exchange = "ledger"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// applyEnv 部署相關的值可由環境變數覆蓋
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("LEDGER_TYPE", &c.Ledger.Type)
	str("WAL_PATH", &c.Ledger.WALPath)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("GRPC_ADDR", &c.GRPC.Addr)
	str("MYSQL_HOST", &c.MySQL.Host)
	str("MYSQL_USER", &c.MySQL.User)
	str("MYSQL_PASSWORD", &c.MySQL.Password)
	str("MYSQL_DB", &c.MySQL.DBName)
	str("POSTGRES_URL", &c.Postgres.URL)
	str("PUBLISHER_TYPE", &c.Publisher.Type)
	list("KAFKA_BROKERS", &c.Publisher.Kafka.Brokers)
	str("REDIS_ADDR", &c.Publisher.Redis.Addr)
	str("REDIS_PASSWORD", &c.Publisher.Redis.Password)
	str("RABBITMQ_URL", &c.Publisher.RabbitMQ.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("MYSQL_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MYSQL_PORT: %w", err)
		}
		c.MySQL.Port = port
	}
	if v, ok := lookup("AUTO_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTO_MIGRATE: %w", err)
		}
		c.Ledger.AutoMigrate = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate 檢查設定組合是否可用
func (c Config) Validate() error {
	switch c.Ledger.Type {
	case LedgerMemoryMutex, LedgerMemoryLMAX:
	case LedgerMySQL:
		if c.MySQL.Host == "" || c.MySQL.DBName == "" {
			return errors.New("config: mysql ledger requires mysql.host and mysql.db_name")
		}
	case LedgerPostgres:
		if c.Postgres.URL == "" {
			return errors.New("config: postgres ledger requires postgres.url")
		}
	default:
		return fmt.Errorf("config: unknown ledger type %q", c.Ledger.Type)
	}

	switch c.Publisher.Type {
	case PublisherNone, "":
	case PublisherKafka:
		if len(c.Publisher.Kafka.Brokers) == 0 {
			return errors.New("config: kafka publisher requires publisher.kafka.brokers")
		}
	case PublisherRedis:
		if c.Publisher.Redis.Addr == "" {
			return errors.New("config: redis publisher requires publisher.redis.addr")
		}
	case PublisherRabbitMQ:
		if c.Publisher.RabbitMQ.URL == "" {
			return errors.New("config: rabbitmq publisher requires publisher.rabbitmq.url")
		}
	default:
		return fmt.Errorf("config: unknown publisher type %q", c.Publisher.Type)
	}

	if c.HTTP.Addr == "" && c.GRPC.Addr == "" {
		return errors.New("config: at least one of http.addr and grpc.addr is required")
	}
	return nil
}
