package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Log struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`

	Engine struct {
		Interval   string   `yaml:"interval" default:"1d" validate:"required"`
		Days       int      `yaml:"days" default:"365" validate:"gte=30,lte=3650"`
		Degree     int      `yaml:"degree" default:"4" validate:"gte=1,lte=10"`
		KStd       float64  `yaml:"kstd" default:"2.0" validate:"gt=0,lte=10"`
		Workers    int      `yaml:"workers" validate:"gte=0,lte=256"`
		MinCandles int      `yaml:"min_candles" default:"60" validate:"gte=50"`
		Objective  string   `yaml:"objective" default:"sharpe_adjusted" validate:"oneof=sharpe_adjusted simple_return sharpe"`
		QuoteAsset string   `yaml:"quote_asset" default:"USDT"`
		Symbols    []string `yaml:"symbols"`
		TopN       int      `yaml:"top_n" default:"20" validate:"gte=0,lte=100"`
		Search     struct {
			Mode         string  `yaml:"mode" default:"grid" validate:"oneof=grid random"`
			Budget       int     `yaml:"budget" default:"300" validate:"gte=1,lte=100000"`
			Seed         int64   `yaml:"seed" default:"42"`
			DegreeMin    int     `yaml:"degree_min" default:"2" validate:"gte=1"`
			DegreeMax    int     `yaml:"degree_max" default:"6" validate:"gtefield=DegreeMin"`
			KStdMin      float64 `yaml:"kstd_min" default:"1.0" validate:"gt=0"`
			KStdMax      float64 `yaml:"kstd_max" default:"3.0" validate:"gtefield=KStdMin"`
			KStdStep     float64 `yaml:"kstd_step" default:"0.25" validate:"gt=0"`
			LookbackMin  int     `yaml:"lookback_min" default:"30" validate:"gte=2"`
			LookbackMax  int     `yaml:"lookback_max" default:"720" validate:"gtefield=LookbackMin"`
			LookbackStep int     `yaml:"lookback_step" default:"30" validate:"gte=1"`
		} `yaml:"search"`
	} `yaml:"engine"`

	Correlation struct {
		Enabled    bool    `yaml:"enabled" default:"true"`
		Method     string  `yaml:"method" default:"pearson" validate:"oneof=pearson spearman"`
		Threshold  float64 `yaml:"threshold" default:"0.7" validate:"gte=0,lt=1"`
		MinOverlap int     `yaml:"min_overlap" default:"30" validate:"gte=3"`
	} `yaml:"correlation"`

	Cache struct {
		TTL           time.Duration `yaml:"ttl" default:"24h" validate:"gt=0"`
		Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"500" validate:"gte=1"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"1h"`
		Redis         struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"polychannel"`
			PoolSize int    `yaml:"pool_size" default:"10" validate:"gte=1"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Source struct {
		Provider     string        `yaml:"provider" default:"binance" validate:"oneof=binance finnhub clickhouse"`
		Timeout      time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
		Retries      int           `yaml:"retries" default:"4" validate:"gte=1,lte=10"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"500ms"`
		RPS          float64       `yaml:"rps" default:"8" validate:"gt=0"`
		Burst        int           `yaml:"burst" default:"16" validate:"gte=1"`
		Binance      struct {
			APIKey    string `yaml:"api_key"`
			SecretKey string `yaml:"secret_key"`
			BaseURL   string `yaml:"base_url"`
		} `yaml:"binance"`
		Finnhub struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url" default:"https://finnhub.io/api/v1"`
		} `yaml:"finnhub"`
		CandleTable string `yaml:"candle_table" default:"polychannel.candles"`
	} `yaml:"source"`

	Export struct {
		OutputDirectory string `yaml:"output_directory" default:"./exports" validate:"required"`
		Charts          bool   `yaml:"charts"`
		RawData         bool   `yaml:"raw_data" default:"true"`
	} `yaml:"export"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"polychannel"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string   `yaml:"topic" default:"polychannel.run.completed"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Schedule struct {
		Every      time.Duration `yaml:"every" default:"24h" validate:"gte=1m"`
		RunOnStart bool          `yaml:"run_on_start" default:"true"`
	} `yaml:"schedule"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file (if present), then applies
// environment overrides. A missing YAML file falls back to defaults.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var (
		c   *Config
		err error
	)
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		c, err = Load(path)
	} else {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Source.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Source.Binance.SecretKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Source.Finnhub.APIKey = v
	}
	if v := os.Getenv("SOURCE_PROVIDER"); v != "" {
		c.Source.Provider = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Engine.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("OUTPUT_DIRECTORY"); v != "" {
		c.Export.OutputDirectory = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ENGINE_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Engine.Search.Seed = seed
		}
	}
}

// Validate checks struct tags plus cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Source.Provider == "finnhub" && c.Source.Finnhub.APIKey == "" {
		return fmt.Errorf("source.finnhub.api_key is required for the finnhub provider")
	}
	if c.Source.Provider == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.enabled must be true for the clickhouse provider")
	}
	if (c.Cache.Backend == "redis" || c.Cache.Backend == "layered") && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the %s backend", c.Cache.Backend)
	}
	return nil
}
