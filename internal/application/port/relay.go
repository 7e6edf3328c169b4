package port

import (
	"context"

	"tickrelay/internal/domain/model"
)

type RelayPublisher interface {
	Publish(ctx context.Context, t *model.Ticker) error
}

// RelayListener 订阅 relay 通道，每条消息解码后交给 fn
type RelayListener interface {
	Listen(ctx context.Context, fn func(model.Tickers)) error
}
