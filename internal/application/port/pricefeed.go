package port

import (
	"context"

	"tickrelay/internal/domain/model"
)

// TickerSource 上游 ticker 源（单连接，动态订阅）
type TickerSource interface {
	Name() string
	// Start 启动连接循环，返回的 channel 在 ctx 结束并完成清理后关闭
	Start(ctx context.Context) <-chan model.Ticker
	// Subscribe 返回是否有新增 symbol
	Subscribe(symbols ...string) bool
	// Unsubscribe 返回是否有 symbol 被移除
	Unsubscribe(symbols ...string) bool
}
