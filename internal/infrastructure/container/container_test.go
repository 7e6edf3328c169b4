package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tickrelay/internal/infrastructure/config"
	sqliterepo "tickrelay/internal/infrastructure/storage/sqlite"
)

func TestContainerCloseLIFOOnce(t *testing.T) {
	var order []int
	first := errors.New("first failure")
	c := &Container{
		closerChain: []func() error{
			func() error { order = append(order, 1); return nil },
			func() error { order = append(order, 2); return errors.New("second failure") },
			func() error { order = append(order, 3); return first },
		},
	}

	if err := c.Close(); !errors.Is(err, first) {
		t.Errorf("expected first error encountered (LIFO), got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("expected LIFO close order, got %v", order)
	}
}

func TestContainerRepoSelection(t *testing.T) {
	cfg := &config.Config{}
	c := &Container{cfg: cfg}
	if _, err := c.Repo().ListSymbols(context.Background()); err != nil {
		t.Errorf("expected noop repo without storage, got %v", err)
	}

	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "sub.db")
	if err := c.initStorage(); err != nil {
		t.Fatalf("initStorage failed: %v", err)
	}
	defer c.Close()

	repo, ok := c.Repo().(*sqliterepo.Repo)
	if !ok {
		t.Fatalf("expected sqlite repo, got %T", c.Repo())
	}
	if err := repo.AddSymbols(context.Background(), []string{"BTCUSDT"}, 1); err != nil {
		t.Fatalf("AddSymbols failed: %v", err)
	}
}

func TestNewWithoutRedis(t *testing.T) {
	cfg := &config.Config{}
	cfg.PercentageChange.Intervals = []int{2}
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "sub.db")
	cfg.Redis.Addr = "127.0.0.1:1"

	// Redis 不可用不影响启动，上游采集照常进行
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("expected container without redis, got %v", err)
	}
	if c.Relay() == nil {
		t.Fatalf("expected relay to be built")
	}
	svc, err := c.TickerService()
	if err != nil || svc == nil {
		t.Fatalf("expected ticker service, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// 关闭后 sqlite 文件可被再次打开
	repo, err := sqliterepo.New(cfg.Storage.SQLite.Path)
	if err != nil {
		t.Fatalf("reopen sqlite failed: %v", err)
	}
	_ = repo.Close()
}

func TestTickerServiceRequiresRelay(t *testing.T) {
	c := &Container{cfg: &config.Config{}}
	if _, err := c.TickerService(); err == nil {
		t.Fatalf("expected error without relay")
	}
}
