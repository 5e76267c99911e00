package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	applogger "FxSignal/pkg/logger"
)

// TimeframeConfig holds the per-timeframe model window and trade multipliers.
type TimeframeConfig struct {
	SeqLen  int     `yaml:"seq_len" default:"60" validate:"gt=0"`
	Horizon int     `yaml:"horizon" default:"5" validate:"gt=0"`
	ATRMult float64 `yaml:"atr_mult" default:"1.0" validate:"gt=0"`
	SLMult  float64 `yaml:"sl_mult" default:"1.5" validate:"gt=0"`
	TP1Mult float64 `yaml:"tp1_mult" default:"1.5" validate:"gt=0"`
	TP2Mult float64 `yaml:"tp2_mult" default:"3.0" validate:"gtfield=TP1Mult"`
}

type Config struct {
	Environment string            `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         applogger.Config `yaml:"log"`

	Symbols    []string                   `yaml:"symbols" validate:"required,min=1,dive,len=6"`
	Timeframes map[string]TimeframeConfig `yaml:"timeframes" validate:"required,min=1"`
	Thresholds struct {
		Prob float64 `yaml:"prob" default:"0.6" validate:"gte=0,lte=1"`
	} `yaml:"thresholds"`

	Paths struct {
		Data    string `yaml:"data" default:"data"`
		Models  string `yaml:"models" default:"models"`
		Outputs string `yaml:"outputs" default:"outputs"`
	} `yaml:"paths"`

	Output struct {
		Timezone   string `yaml:"timezone" default:"Europe/Berlin"`
		Disclaimer string `yaml:"disclaimer" default:"Signals are generated by a machine learning model. This is not financial advice. Trade responsibly."`
	} `yaml:"output"`

	ModelServer struct {
		URL            string        `yaml:"url"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
		UserAgent      string        `yaml:"user_agent" default:"fxsignal"`
		RatePerSecond  float64       `yaml:"rate_per_second" default:"20"`
		Burst          int           `yaml:"burst" default:"10"`
		BreakerTimeout time.Duration `yaml:"breaker_timeout" default:"30s"`
		MaxFailures    uint32        `yaml:"max_failures" default:"5"`
	} `yaml:"model_server"`

	Meta struct {
		Levels struct {
			SLMult  float64 `yaml:"sl_mult" default:"1.5"`
			TP1Mult float64 `yaml:"tp1_mult" default:"1.5"`
			TP2Mult float64 `yaml:"tp2_mult" default:"3.0"`
		} `yaml:"levels"`
	} `yaml:"meta"`

	Backtest struct {
		InitialBalance float64 `yaml:"initial_balance" default:"10000" validate:"gt=0"`
		RiskPerTrade   float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lt=1"`
		RewardRatio    float64 `yaml:"reward_ratio" default:"1.5" validate:"gt=0"`
		TradeLogLimit  int     `yaml:"trade_log_limit" default:"100" validate:"gt=0"`
		Seed           int64   `yaml:"seed" default:"42"`
	} `yaml:"backtest"`

	Labels struct {
		LookaheadHours int `yaml:"lookahead_hours" default:"24" validate:"gt=0"`
	} `yaml:"labels"`

	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"30s"`
		RatePerSecond   float64       `yaml:"rate_per_second" default:"5"`
		Burst           int           `yaml:"burst" default:"10"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fxsignal"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Postgres struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"postgres"`

	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		BarsTopic   string   `yaml:"bars_topic" default:"fxsignal.bars"`
		SignalTopic string   `yaml:"signal_topic" default:"fxsignal.signals"`
		MetaTopic   string   `yaml:"meta_topic" default:"fxsignal.meta"`
		LogsTopic   string   `yaml:"logs_topic" default:"fxsignal.logs"`
		Compression string   `yaml:"compression" default:"snappy"`
		Consumer    struct {
			GroupID    string        `yaml:"group_id" default:"fxsignal"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"fxsignal"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for name, tf := range c.Timeframes {
		if err := defaults.Set(&tf); err != nil {
			return nil, fmt.Errorf("timeframe %s defaults: %w", name, err)
		}
		c.Timeframes[name] = tf
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with FXSIGNAL_* variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(get func(string) string) {
	if v := get("FXSIGNAL_ENV"); v != "" {
		c.Environment = v
	}
	if v := get("FXSIGNAL_SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v := get("FXSIGNAL_PROB_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Thresholds.Prob = f
		}
	}
	if v := get("FXSIGNAL_MODEL_SERVER_URL"); v != "" {
		c.ModelServer.URL = v
	}
	if v := get("FXSIGNAL_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := get("FXSIGNAL_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := get("FXSIGNAL_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := get("FXSIGNAL_POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := get("FXSIGNAL_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := get("FXSIGNAL_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate checks struct tags plus cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, tf := range c.Timeframes {
		if err := validate.Struct(tf); err != nil {
			return fmt.Errorf("timeframes.%s: %w", name, err)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when postgres is enabled")
	}
	return nil
}

// TimeframeNames returns configured timeframe keys in a stable order.
func (c *Config) TimeframeNames() []string {
	out := make([]string, 0, len(c.Timeframes))
	for k := range c.Timeframes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
