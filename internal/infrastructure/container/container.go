package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tickrelay/internal/application/port"
	"tickrelay/internal/application/usecase/ticker"
	dsvc "tickrelay/internal/domain/service"
	"tickrelay/internal/infrastructure/config"
	"tickrelay/internal/infrastructure/exchange/binance"
	"tickrelay/internal/infrastructure/storage/composite"
	pgrepo "tickrelay/internal/infrastructure/storage/postgres"
	redisrelay "tickrelay/internal/infrastructure/storage/redis"
	sqliterepo "tickrelay/internal/infrastructure/storage/sqlite"
)

const redisPingTimeout = 5 * time.Second

// Container 包含所有应用依赖
type Container struct {
	cfg         *config.Config
	redisClient *redis.Client
	relay       *redisrelay.Relay
	repos       []port.SubscriptionRepository
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例；任一步失败都会关闭已初始化的资源
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.initStorage(); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.initRedis()
	return c, nil
}

// initStorage 初始化订阅持久化（SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接和 relay；Redis 不可用时只告警，发布失败与监听重试由 ticker 服务处理
func (c *Container) initRedis() {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", c.cfg.Redis.Addr).Msg("redis unavailable, relay will reconnect in background")
	}

	c.redisClient = rdb
	c.relay = redisrelay.New(rdb, c.cfg.Relay.Channel)

	log.Info().
		Str("addr", c.cfg.Redis.Addr).
		Int("db", c.cfg.Redis.DB).
		Str("channel", c.relay.Channel()).
		Msg("redis initialized")
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.repos = append(c.repos, repo)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

// initPostgres 初始化 Postgres 连接
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.repos = append(c.repos, repo)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// RedisClient 获取 Redis 客户端
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// Relay 获取 Redis relay
func (c *Container) Relay() *redisrelay.Relay {
	return c.relay
}

// Repo 未启用存储时返回 noop，多个存储时写入全部
func (c *Container) Repo() port.SubscriptionRepository {
	switch len(c.repos) {
	case 0:
		return ticker.NewNoopRepo()
	case 1:
		return c.repos[0]
	default:
		return composite.New(c.repos...)
	}
}

// TickerService 组装上游流、价格变化计算和 relay
func (c *Container) TickerService(handlers ...ticker.Handler) (*ticker.Service, error) {
	if c.relay == nil {
		return nil, fmt.Errorf("relay not initialized")
	}
	calc, err := dsvc.NewChangeCalculator(c.cfg.PercentageChange.Intervals)
	if err != nil {
		return nil, err
	}

	up := c.cfg.Upstream
	stream := binance.NewTickerStream(binance.StreamConfig{
		WsURL:          up.WsURL,
		ReconnectDelay: time.Duration(up.ReconnectDelayMs) * time.Millisecond,
		DialTimeout:    time.Duration(up.DialTimeoutMs) * time.Millisecond,
		ControlRate:    up.ControlRate,
		ControlBurst:   up.ControlBurst,
	})

	log.Info().
		Ints("intervals", calc.Intervals()).
		Strs("symbols", c.cfg.Symbols.List).
		Int("handlers", len(handlers)).
		Msg("ticker service assembled")

	return ticker.NewService(ticker.ServiceDeps{
		Source:      stream,
		Calculator:  calc,
		Publisher:   c.relay,
		Listener:    c.relay,
		Repo:        c.Repo(),
		Handlers:    handlers,
		Symbols:     c.cfg.Symbols.List,
		ListenRetry: time.Duration(c.cfg.Relay.ListenRetryMs) * time.Millisecond,
	}), nil
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
