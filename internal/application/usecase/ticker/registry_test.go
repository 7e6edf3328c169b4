package ticker

import (
	"sort"
	"testing"

	"tickrelay/internal/domain/model"
)

func payload(symbols ...string) model.Tickers {
	out := make(model.Tickers, len(symbols))
	for _, s := range symbols {
		out[s] = &model.Ticker{Symbol: s}
	}
	return out
}

func keys(items model.Tickers) []string {
	out := items.Symbols()
	sort.Strings(out)
	return out
}

func TestRegistryDispatchFilters(t *testing.T) {
	r := NewRegistry()

	var btc, all []model.Tickers
	r.Register("btc", []string{"btcusdt"}, func(items model.Tickers) { btc = append(btc, items) })
	r.Register("all", nil, func(items model.Tickers) { all = append(all, items) })

	r.Dispatch(payload("BTCUSDT", "ETHUSDT"))
	r.Dispatch(payload("ETHUSDT"))
	r.Dispatch(model.Tickers{})

	if len(btc) != 1 {
		t.Fatalf("expected 1 filtered callback, got %d", len(btc))
	}
	if got := keys(btc[0]); len(got) != 1 || got[0] != "BTCUSDT" {
		t.Errorf("unexpected filtered view: %v", got)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 unfiltered callbacks, got %d", len(all))
	}
	if got := keys(all[0]); len(got) != 2 {
		t.Errorf("expected full payload, got %v", got)
	}
}

func TestRegistryRefCounts(t *testing.T) {
	r := NewRegistry()
	a := r.Register("a", []string{"BTCUSDT"}, func(model.Tickers) {})
	b := r.Register("b", []string{"BTCUSDT", "ETHUSDT"}, func(model.Tickers) {})

	if released := r.Unregister(a); len(released) != 0 {
		t.Errorf("BTCUSDT still referenced by b, released %v", released)
	}
	if !r.Wants("btcusdt") {
		t.Errorf("expected BTCUSDT to be wanted")
	}

	released := r.Unregister(b, "BTCUSDT")
	if len(released) != 1 || released[0] != "BTCUSDT" {
		t.Errorf("expected BTCUSDT released, got %v", released)
	}
	if r.Len() != 1 {
		t.Errorf("expected b to stay registered for ETHUSDT, got %d registrations", r.Len())
	}

	released = r.Unregister(b, "ETHUSDT")
	if len(released) != 1 || released[0] != "ETHUSDT" {
		t.Errorf("expected ETHUSDT released, got %v", released)
	}
	if r.Len() != 0 {
		t.Errorf("expected registration removed once its filter is empty")
	}
	if r.Unregister(b) != nil {
		t.Errorf("expected unknown id to be a no-op")
	}
}

func TestRegistryUnregisterAllSymbolsHandler(t *testing.T) {
	r := NewRegistry()
	id := r.Register("all", nil, func(model.Tickers) {})

	if released := r.Unregister(id, "BTCUSDT"); released != nil {
		t.Errorf("expected no-op, got %v", released)
	}
	if r.Len() != 1 {
		t.Fatalf("expected registration to survive partial unregister")
	}
	r.Unregister(id)
	if r.Len() != 0 {
		t.Errorf("expected registration removed")
	}
}

func TestRegistryHandlerPanicIsolated(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("bad", nil, func(model.Tickers) { panic("boom") })
	r.Register("good", nil, func(model.Tickers) { called = true })

	r.Dispatch(payload("BTCUSDT"))

	if !called {
		t.Errorf("expected second handler to run after first panicked")
	}
}
