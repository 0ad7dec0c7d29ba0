package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Providers   ProvidersConfig  `yaml:"providers"`
	News        NewsConfig       `yaml:"news"`
	Edgar       EdgarConfig      `yaml:"edgar"`
	Model       ModelConfig      `yaml:"model"`
	Backtest    BacktestConfig   `yaml:"backtest"`
	Portfolio   PortfolioConfig  `yaml:"portfolio"`
	Alerts      AlertsConfig     `yaml:"alerts"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       CacheConfig      `yaml:"cache"`
	Retrain     RetrainConfig    `yaml:"retrain"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	RatePerMinute   int           `yaml:"rate_per_minute" default:"120"`
	QuoteCacheTTL   time.Duration `yaml:"quote_cache_ttl" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type ProvidersConfig struct {
	// Order in which FallbackSource consults providers.
	Order   []string      `yaml:"order" default:"[\"finnhub\",\"alphavantage\"]"`
	Timeout time.Duration `yaml:"timeout" default:"20s"`
	Finnhub struct {
		APIKey    string  `yaml:"api_key"`
		BaseURL   string  `yaml:"base_url" default:"https://finnhub.io/api/v1"`
		RateLimit float64 `yaml:"rate_limit" default:"1"` // requests per second
		Burst     int     `yaml:"burst" default:"5"`
	} `yaml:"finnhub"`
	AlphaVantage struct {
		APIKey    string  `yaml:"api_key"`
		BaseURL   string  `yaml:"base_url" default:"https://www.alphavantage.co/query"`
		RateLimit float64 `yaml:"rate_limit" default:"0.2"`
		Burst     int     `yaml:"burst" default:"1"`
	} `yaml:"alphavantage"`
}

type NewsConfig struct {
	Feeds      []string      `yaml:"feeds" default:"[\"http://feeds.reuters.com/reuters/businessNews\",\"https://www.cnbc.com/id/19854910/device/rss/rss.html\",\"https://www.theverge.com/rss/index.xml\",\"https://www.coindesk.com/arc/outboundfeeds/rss/\"]"`
	MaxEntries int           `yaml:"max_entries" default:"200"`
	Window     time.Duration `yaml:"window" default:"72h"`
	Keywords   []string      `yaml:"keywords"`
}

type EdgarConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://www.sec.gov/cgi-bin/browse-edgar"`
	UserAgent string `yaml:"user_agent" default:"market-monitor admin@example.com"`
	Count     int    `yaml:"count" default:"80"`
}

type ModelConfig struct {
	Regression struct {
		Trees      int     `yaml:"trees" default:"100"`
		Seed       int64   `yaml:"seed" default:"42"`
		TestSize   float64 `yaml:"test_size" default:"0.2"`
		SplitMode  string  `yaml:"split_mode" default:"random"`
		RecentBars int     `yaml:"recent_bars" default:"60"`
	} `yaml:"regression"`
	Classifier struct {
		Trees     int     `yaml:"trees" default:"200"`
		Seed      int64   `yaml:"seed" default:"42"`
		TestSize  float64 `yaml:"test_size" default:"0.2"`
		Horizon   int     `yaml:"horizon" default:"3"`
		Threshold float64 `yaml:"threshold" default:"0.01"`
		// History fetched for lazy training when no artifact is bound.
		TrainDays int `yaml:"train_days" default:"1000"`
	} `yaml:"classifier"`
	Workers int  `yaml:"workers"`
	Persist bool `yaml:"persist" default:"true"`
}

type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital" default:"100000"`
	FeeBps         float64 `yaml:"fee_bps" default:"0"`
	ShortWindow    int     `yaml:"short_window" default:"20"`
	LongWindow     int     `yaml:"long_window" default:"50"`
}

type PortfolioConfig struct {
	DBPath         string  `yaml:"db_path" default:"portfolio.db"`
	InitialBalance float64 `yaml:"initial_balance" default:"100000"`
}

type AlertsConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"10s"`
	Retries int           `yaml:"retries" default:"2"`
	Backoff time.Duration `yaml:"backoff" default:"500ms"`
	// Minimum gap between two early-signal alerts for the same ticker.
	Cooldown time.Duration `yaml:"cooldown" default:"1h"`
	Webhook struct {
		URL string `yaml:"url"`
	} `yaml:"webhook"`
	SMTP struct {
		Host string   `yaml:"host"`
		Port int      `yaml:"port" default:"587"`
		User string   `yaml:"user"`
		Pass string   `yaml:"pass"`
		From string   `yaml:"from"`
		To   []string `yaml:"to"`
	} `yaml:"smtp"`
	Twilio struct {
		BaseURL string `yaml:"base_url" default:"https://api.twilio.com"`
		SID     string `yaml:"sid"`
		Token   string `yaml:"token"`
		From    string `yaml:"from"`
		To      string `yaml:"to"`
	} `yaml:"twilio"`
	Telegram struct {
		BaseURL string `yaml:"base_url" default:"https://api.telegram.org"`
		Token   string `yaml:"token"`
		ChatID  string `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	SignalsTopic string   `yaml:"signals_topic" default:"market.signals"`
	AlertsTopic  string   `yaml:"alerts_topic" default:"market.alerts"`
	LogsTopic    string   `yaml:"logs_topic" default:"market.logs"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
		AutoCreate   bool          `yaml:"auto_create_topics" default:"true"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" default:"market-monitor-alerts"`
		StartOffset string        `yaml:"start_offset" default:"latest"`
		Workers     int           `yaml:"workers" default:"2"`
		BufferSize  int           `yaml:"buffer_size" default:"100"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"market"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	HistoryTTL  time.Duration `yaml:"history_ttl" default:"1h"`
	ArtifactTTL time.Duration `yaml:"artifact_ttl" default:"168h"`
	MaxSize     int           `yaml:"max_size" default:"1000"`
}

type RetrainConfig struct {
	Enabled bool     `yaml:"enabled"`
	Cron    string   `yaml:"cron" default:"0 30 6 * * 1-5"`
	Tickers []string `yaml:"tickers"`
	Days    int      `yaml:"days" default:"1000"`
	Queue   string   `yaml:"queue" default:"retrain"`
	Workers int      `yaml:"workers" default:"1"`
}

// Default returns a configuration populated only from default tags.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("FINNHUB_API_KEY", &c.Providers.Finnhub.APIKey)
	str("ALPHAV_API_KEY", &c.Providers.AlphaVantage.APIKey)
	str("SMTP_HOST", &c.Alerts.SMTP.Host)
	str("SMTP_USER", &c.Alerts.SMTP.User)
	str("SMTP_PASS", &c.Alerts.SMTP.Pass)
	str("TWILIO_SID", &c.Alerts.Twilio.SID)
	str("TWILIO_TOKEN", &c.Alerts.Twilio.Token)
	str("TWILIO_FROM", &c.Alerts.Twilio.From)
	str("TELEGRAM_TOKEN", &c.Alerts.Telegram.Token)
	str("TELEGRAM_CHAT_ID", &c.Alerts.Telegram.ChatID)
	str("WEBHOOK_URL", &c.Alerts.Webhook.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("PORTFOLIO_DB", &c.Portfolio.DBPath)

	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Alerts.SMTP.Port = port
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("RETRAIN_TICKERS"); ok && v != "" {
		c.Retrain.Tickers = strings.Split(v, ",")
	}
	return nil
}

// Validate checks if the configuration is valid. Missing provider keys are allowed;
// those providers report data as unavailable.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	for _, p := range c.Providers.Order {
		if p != "finnhub" && p != "alphavantage" {
			return fmt.Errorf("providers.order: unknown provider '%s'", p)
		}
	}
	switch c.Model.Regression.SplitMode {
	case "random", "chronological":
	default:
		return fmt.Errorf("model.regression.split_mode must be 'random' or 'chronological', got '%s'", c.Model.Regression.SplitMode)
	}
	for name, f := range map[string]float64{
		"model.regression.test_size": c.Model.Regression.TestSize,
		"model.classifier.test_size": c.Model.Classifier.TestSize,
	} {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %v", name, f)
		}
	}
	if c.Model.Classifier.Horizon < 1 {
		return fmt.Errorf("model.classifier.horizon must be >= 1")
	}
	if c.Backtest.ShortWindow < 1 || c.Backtest.LongWindow <= c.Backtest.ShortWindow {
		return fmt.Errorf("backtest windows must satisfy 1 <= short < long")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Portfolio.InitialBalance < 0 {
		return fmt.Errorf("portfolio.initial_balance cannot be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Retrain.Enabled && len(c.Retrain.Tickers) == 0 {
		return fmt.Errorf("retrain.tickers cannot be empty when retrain is enabled")
	}
	return nil
}
