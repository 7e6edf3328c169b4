package composite

import (
	"context"

	"tickrelay/internal/application/port"
)

// Repo 写入全部下游仓储，读取第一个可用的
type Repo struct {
	repos []port.SubscriptionRepository
}

func New(repos ...port.SubscriptionRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.SubscriptionRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) ListSymbols(ctx context.Context) ([]string, error) {
	var firstErr error
	for _, repo := range r.repos {
		symbols, err := repo.ListSymbols(ctx)
		if err == nil {
			return symbols, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (r *Repo) AddSymbols(ctx context.Context, symbols []string, ts int64) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.AddSymbols(ctx, symbols, ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) RemoveSymbols(ctx context.Context, symbols []string) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.RemoveSymbols(ctx, symbols); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close 关闭由调用方负责（各仓储已注册到 container 的 closerChain）
func (r *Repo) Close() error { return nil }

var _ port.SubscriptionRepository = (*Repo)(nil)
