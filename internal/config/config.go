package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/yanun0323/errors"
)

const (
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceRedis = "redis"
	SourceNone  = "none"
)

// AppConfig はシステム全体の設定です
type AppConfig struct {
	Market    MarketConfig
	Observer  ObserverConfig
	Sentiment SentimentConfig
	Log       LogConfig
	Pyroscope PyroscopeConfig
}

// MarketConfig は価格シミュレーションとリスナーの設定です
type MarketConfig struct {
	Addr         string        `envconfig:"MARKET_ADDR" default:":8765"`
	WSPath       string        `envconfig:"MARKET_WS_PATH" default:"/ws"`
	TickInterval time.Duration `envconfig:"MARKET_TICK_INTERVAL" default:"1s"`
	Seed         uint64        `envconfig:"MARKET_SEED" default:"0"` // 0 なら時刻から種を作る
	CatalogFile  string        `envconfig:"MARKET_CATALOG_FILE"`
}

type ObserverConfig struct {
	WriteTimeout time.Duration `envconfig:"OBSERVER_WRITE_TIMEOUT" default:"5s"`
	ReadLimit    int64         `envconfig:"OBSERVER_READ_LIMIT" default:"4096"`
}

// SentimentConfig はセンチメントフィードの取得元の設定です
type SentimentConfig struct {
	Source        string        `envconfig:"SENTIMENT_SOURCE" default:"file"`
	File          string        `envconfig:"SENTIMENT_FILE" default:"meme_trends.json"`
	URL           string        `envconfig:"SENTIMENT_URL"`
	RedisAddr     string        `envconfig:"SENTIMENT_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"SENTIMENT_REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"SENTIMENT_REDIS_DB" default:"0"`
	RedisKey      string        `envconfig:"SENTIMENT_REDIS_KEY" default:"meme_trends"`
	PollInterval  time.Duration `envconfig:"SENTIMENT_POLL_INTERVAL" default:"10s"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// PyroscopeConfig は継続的プロファイリングの送信先です。空なら無効です
type PyroscopeConfig struct {
	ServerAddress string `envconfig:"PYROSCOPE_SERVER_ADDRESS"`
}

// Load は環境変数から設定を自動でマッピングして返します
func Load() (*AppConfig, error) {
	// .env は無い環境もあるのでエラーは無視する
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は起動できない設定を検出します
func (c *AppConfig) Validate() error {
	if c.Market.Addr == "" {
		return errors.New("MARKET_ADDR is empty")
	}
	if c.Market.TickInterval <= 0 {
		return errors.Errorf("MARKET_TICK_INTERVAL must be positive: %s", c.Market.TickInterval)
	}
	if c.Observer.WriteTimeout <= 0 {
		return errors.Errorf("OBSERVER_WRITE_TIMEOUT must be positive: %s", c.Observer.WriteTimeout)
	}
	if c.Sentiment.PollInterval <= 0 {
		return errors.Errorf("SENTIMENT_POLL_INTERVAL must be positive: %s", c.Sentiment.PollInterval)
	}

	switch c.Sentiment.Source {
	case SourceFile:
		if c.Sentiment.File == "" {
			return errors.New("SENTIMENT_FILE is empty")
		}
	case SourceHTTP:
		if c.Sentiment.URL == "" {
			return errors.New("SENTIMENT_URL is required for the http source")
		}
	case SourceRedis:
		if c.Sentiment.RedisAddr == "" || c.Sentiment.RedisKey == "" {
			return errors.New("SENTIMENT_REDIS_ADDR and SENTIMENT_REDIS_KEY are required for the redis source")
		}
	case SourceNone:
	default:
		return errors.Errorf("unknown SENTIMENT_SOURCE: %q", c.Sentiment.Source)
	}
	return nil
}
