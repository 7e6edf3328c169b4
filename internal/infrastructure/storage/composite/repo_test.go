package composite

import (
	"context"
	"errors"
	"testing"
)

type mockRepo struct {
	symbols []string
	listErr error
	addErr  error
	added   []string
	removed []string
}

func (m *mockRepo) ListSymbols(ctx context.Context) ([]string, error) {
	return m.symbols, m.listErr
}

func (m *mockRepo) AddSymbols(ctx context.Context, symbols []string, ts int64) error {
	m.added = append(m.added, symbols...)
	return m.addErr
}

func (m *mockRepo) RemoveSymbols(ctx context.Context, symbols []string) error {
	m.removed = append(m.removed, symbols...)
	return nil
}

func (m *mockRepo) Close() error { return nil }

func TestCompositeListFallsBack(t *testing.T) {
	broken := &mockRepo{listErr: errors.New("down")}
	healthy := &mockRepo{symbols: []string{"BTCUSDT"}}
	r := New(nil, broken, healthy)

	if r.Len() != 2 {
		t.Fatalf("expected nil repo to be filtered, got %d repos", r.Len())
	}
	symbols, err := r.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "BTCUSDT" {
		t.Errorf("expected [BTCUSDT], got %v", symbols)
	}
}

func TestCompositeWritesAll(t *testing.T) {
	first := &mockRepo{addErr: errors.New("readonly")}
	second := &mockRepo{}
	r := New(first, second)
	ctx := context.Background()

	if err := r.AddSymbols(ctx, []string{"ETHUSDT"}, 1); err == nil {
		t.Errorf("expected first error to be reported")
	}
	if len(second.added) != 1 {
		t.Errorf("expected write to reach every repo, got %v", second.added)
	}

	_ = r.RemoveSymbols(ctx, []string{"ETHUSDT"})
	if len(first.removed) != 1 || len(second.removed) != 1 {
		t.Errorf("expected remove on every repo")
	}
}
