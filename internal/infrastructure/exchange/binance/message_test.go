package binance

import "testing"

const samplePayload = `{
  "e": "24hrTicker", "E": 1672515782136, "s": "BNBBTC",
  "p": "0.0015", "P": "250.00", "w": "0.0018", "x": "0.0009",
  "c": "0.0025", "Q": "10", "b": "0.0024", "B": "10",
  "a": "0.0026", "A": "100", "o": "0.0010", "h": "0.0025",
  "l": "0.0010", "v": "10000", "q": "18",
  "O": 0, "C": 86400000, "F": 0, "L": 18150, "n": 18151
}`

func TestParseTicker(t *testing.T) {
	tk, ok := parseTicker([]byte(samplePayload))
	if !ok {
		t.Fatalf("expected payload to parse")
	}
	if tk.Symbol != "BNBBTC" || tk.EventType != "24hrTicker" || tk.EventTime != 1672515782136 {
		t.Errorf("unexpected header fields: %+v", tk)
	}
	if tk.CurrentPrice != 0.0025 || tk.PrevClosePrice != 0.0009 || tk.PriceChangePercent != 250 {
		t.Errorf("unexpected price fields: %+v", tk)
	}
	if tk.BestBidQuantity != 10 || tk.BestAskQuantity != 100 || tk.QuoteVolume != 18 {
		t.Errorf("unexpected quantity fields: %+v", tk)
	}
	if tk.CloseTime != 86400000 || tk.LastTradeID != 18150 || tk.TradeCount != 18151 {
		t.Errorf("unexpected integer fields: %+v", tk)
	}
	if tk.ChangePercentage != nil {
		t.Errorf("expected no change data before enrichment")
	}
}

func TestParseTickerCombinedStream(t *testing.T) {
	b := []byte(`{"stream":"bnbbtc@ticker","data":` + samplePayload + `}`)
	tk, ok := parseTicker(b)
	if !ok || tk.Symbol != "BNBBTC" {
		t.Fatalf("expected combined payload to unwrap, got %+v %v", tk, ok)
	}
}

func TestParseTickerDiscardsSymbolLess(t *testing.T) {
	for _, raw := range []string{
		`{"result":null,"id":1}`,
		`{"e":"24hrTicker","c":"1.0"}`,
		`not json`,
		``,
	} {
		if _, ok := parseTicker([]byte(raw)); ok {
			t.Errorf("expected %q to be discarded", raw)
		}
	}
}

func TestParseTickerNumericTolerance(t *testing.T) {
	tk, ok := parseTicker([]byte(`{"s":"btcusdt","c":42000.5,"Q":"oops"}`))
	if !ok {
		t.Fatalf("expected payload to parse")
	}
	if tk.Symbol != "BTCUSDT" || tk.CurrentPrice != 42000.5 || tk.CurrentQuantity != 0 {
		t.Errorf("unexpected ticker: %+v", tk)
	}
}

func TestParseError(t *testing.T) {
	code, msg, id, ok := parseError([]byte(`{"error":{"code":2,"msg":"Invalid request"},"id":7}`))
	if !ok || code != 2 || msg != "Invalid request" || id != 7 {
		t.Errorf("unexpected parse: %d %q %d %v", code, msg, id, ok)
	}
	if _, _, _, ok := parseError([]byte(`{"result":null,"id":1}`)); ok {
		t.Errorf("expected ack not to be treated as error")
	}
}
