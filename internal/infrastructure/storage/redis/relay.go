package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tickrelay/internal/application/port"
	"tickrelay/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel relay 通道默认名称
const DefaultChannel = "ticker:updates"

// ErrRelayClosed pubsub 的消息 channel 被关闭
var ErrRelayClosed = errors.New("relay subscription closed")

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Relay 通过 Redis pub/sub 转发带涨跌幅的 ticker
// 发布与订阅各自使用独立连接（PubSub 持有专用连接）
type Relay struct {
	pub     publisher
	sub     subscriber
	channel string
}

func New(rdb *redis.Client, channel string) *Relay {
	return newRelay(rdb, rdb, channel)
}

func newRelay(pub publisher, sub subscriber, channel string) *Relay {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &Relay{pub: pub, sub: sub, channel: channel}
}

func (r *Relay) Channel() string { return r.channel }

// Publish 只发布本次更新的 symbol：{"BTCUSDT": {...}}
func (r *Relay) Publish(ctx context.Context, t *model.Ticker) error {
	if t == nil || t.Symbol == "" {
		return nil
	}
	b, err := json.Marshal(model.Tickers{t.Symbol: t})
	if err != nil {
		return fmt.Errorf("marshal ticker %s: %w", t.Symbol, err)
	}
	if err := r.pub.Publish(ctx, r.channel, string(b)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

// Listen 订阅通道直到 ctx 结束；无法解码的消息记录后跳过
func (r *Relay) Listen(ctx context.Context, fn func(model.Tickers)) error {
	ps := r.sub.Subscribe(ctx, r.channel)
	defer ps.Close()

	// 等待订阅确认，连接失败时尽早返回
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Info().Str("channel", r.channel).Msg("relay listening")
	return r.consume(ctx, ps.Channel(), fn)
}

// consume 分发消息直到 ctx 结束；channel 被关闭返回 ErrRelayClosed
func (r *Relay) consume(ctx context.Context, ch <-chan *redis.Message, fn func(model.Tickers)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrRelayClosed
			}
			r.handle(msg, fn)
		}
	}
}

func (r *Relay) handle(msg *redis.Message, fn func(model.Tickers)) {
	if msg == nil || msg.Channel != r.channel {
		return
	}
	items, err := decodeTickers(msg.Payload)
	if err != nil {
		log.Warn().Str("channel", r.channel).Err(err).Msg("relay message decode failed")
		return
	}
	fn(items)
}

func decodeTickers(payload string) (model.Tickers, error) {
	var items model.Tickers
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	for sym, t := range items {
		if t == nil {
			delete(items, sym)
		}
	}
	return items, nil
}

var (
	_ port.RelayPublisher = (*Relay)(nil)
	_ port.RelayListener  = (*Relay)(nil)
)
