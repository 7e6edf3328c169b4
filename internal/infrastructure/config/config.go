package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"tickrelay/internal/infrastructure/exchange"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrInvalidInterval = errors.New("percentage_change.intervals must be positive")
	ErrNoIntervals     = errors.New("percentage_change.intervals is empty")
	ErrStorageDSNEmpty = errors.New("storage path/dsn empty but enabled")
)

const (
	defaultRedisHost = "localhost"
	defaultRedisPort = "6379"
)

var defaultIntervals = []int{2, 4, 6}

type Config struct {
	App struct {
		LogLevel      string `toml:"log_level"`
		LogFile       string `toml:"log_file"`
		LogMaxAgeDays int    `toml:"log_max_age_days"`
	} `toml:"app"`

	Upstream struct {
		WsURL            string  `toml:"ws_url"`
		ReconnectDelayMs int     `toml:"reconnect_delay_ms"`
		DialTimeoutMs    int     `toml:"dial_timeout_ms"`
		ControlRate      float64 `toml:"control_rate"`
		ControlBurst     int     `toml:"control_burst"`
	} `toml:"upstream"`

	PercentageChange struct {
		Intervals []int `toml:"intervals"` // 秒
	} `toml:"percentage_change"`

	Symbols struct {
		List []string `toml:"list"`
	} `toml:"symbols"`

	Relay struct {
		Channel       string `toml:"channel"`
		ListenRetryMs int    `toml:"listen_retry_ms"`
	} `toml:"relay"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Console struct {
		Enabled bool `toml:"enabled"`
		Color   bool `toml:"color"`
	} `toml:"console"`
}

// env 环境变量覆盖项（REDIS_* 与部署环境共用）
type env struct {
	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPort     string `envconfig:"REDIS_PORT"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	WsURL         string `envconfig:"TICKRELAY_WS_URL"`
	LogLevel      string `envconfig:"TICKRELAY_LOG_LEVEL"`
}

// Load 读取 TOML 配置，再用 .env / 环境变量覆盖
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := loadEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(cfg *Config) error {
	// .env 可选
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	var e env
	if err := envconfig.Process("", &e); err != nil {
		return fmt.Errorf("process env: %w", err)
	}
	applyEnv(cfg, e)
	return nil
}

func applyEnv(cfg *Config, e env) {
	if e.RedisHost != "" || e.RedisPort != "" {
		host, port := e.RedisHost, e.RedisPort
		if h, p, err := net.SplitHostPort(cfg.Redis.Addr); err == nil {
			if host == "" {
				host = h
			}
			if port == "" {
				port = p
			}
		}
		if host == "" {
			host = defaultRedisHost
		}
		if port == "" {
			port = defaultRedisPort
		}
		cfg.Redis.Addr = net.JoinHostPort(host, port)
	}
	if e.RedisPassword != "" {
		cfg.Redis.Password = e.RedisPassword
	}
	if e.WsURL != "" {
		cfg.Upstream.WsURL = e.WsURL
	}
	if e.LogLevel != "" {
		cfg.App.LogLevel = e.LogLevel
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.App.LogLevel) == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogMaxAgeDays <= 0 {
		cfg.App.LogMaxAgeDays = 7
	}
	if strings.TrimSpace(cfg.Upstream.WsURL) == "" {
		cfg.Upstream.WsURL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Upstream.ReconnectDelayMs <= 0 {
		cfg.Upstream.ReconnectDelayMs = 1000
	}
	if cfg.Upstream.DialTimeoutMs <= 0 {
		cfg.Upstream.DialTimeoutMs = 10000
	}
	if cfg.Upstream.ControlRate <= 0 {
		cfg.Upstream.ControlRate = 5
	}
	if cfg.Upstream.ControlBurst <= 0 {
		cfg.Upstream.ControlBurst = 1
	}
	if cfg.PercentageChange.Intervals == nil {
		cfg.PercentageChange.Intervals = append([]int(nil), defaultIntervals...)
	}
	if strings.TrimSpace(cfg.Relay.Channel) == "" {
		cfg.Relay.Channel = "ticker:updates"
	}
	if cfg.Relay.ListenRetryMs <= 0 {
		cfg.Relay.ListenRetryMs = 1000
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		cfg.Redis.Addr = net.JoinHostPort(defaultRedisHost, defaultRedisPort)
	}
	if cfg.Storage.SQLite.Enabled && strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		cfg.Storage.SQLite.Path = "data/tickrelay.db"
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = exchange.NormalizeSymbols(cfg.Symbols.List)

	if len(cfg.PercentageChange.Intervals) == 0 {
		return ErrNoIntervals
	}
	for _, iv := range cfg.PercentageChange.Intervals {
		if iv <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidInterval, iv)
		}
	}

	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return fmt.Errorf("%w: storage.postgres.dsn", ErrStorageDSNEmpty)
	}
	return nil
}
