package port

import "context"

// SubscriptionRepository 持久化期望订阅的 symbol 集合（不保存价格）
type SubscriptionRepository interface {
	ListSymbols(ctx context.Context) ([]string, error)
	AddSymbols(ctx context.Context, symbols []string, ts int64) error
	RemoveSymbols(ctx context.Context, symbols []string) error

	// Connection management
	Close() error
}
