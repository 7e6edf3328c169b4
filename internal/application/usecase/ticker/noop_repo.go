package ticker

import (
	"context"

	"tickrelay/internal/application/port"
)

// noopRepo 未启用任何存储时使用：订阅集合只存在于内存
type noopRepo struct{}

func NewNoopRepo() port.SubscriptionRepository { return &noopRepo{} }

func (n *noopRepo) ListSymbols(ctx context.Context) ([]string, error) { return nil, nil }

func (n *noopRepo) AddSymbols(ctx context.Context, symbols []string, ts int64) error {
	return nil
}
func (n *noopRepo) RemoveSymbols(ctx context.Context, symbols []string) error {
	return nil
}
func (n *noopRepo) Close() error { return nil }
