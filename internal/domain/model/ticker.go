package model

// ========== Price Window Models ==========

// Sample 单个价格采样点
type Sample struct {
	Time  int64   `json:"time"` // unix ms
	Price float64 `json:"price"`
}

// PriceChange 某个回看区间内的价格变化
// nil 表示窗口内没有足够早的采样（no data），与真实的 0% 变化区分开
type PriceChange struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Change float64 `json:"change"` // 百分比，保留 3 位小数
}

// ========== Ticker Models ==========

// Ticker 24h ticker 记录，附带各区间的价格变化
type Ticker struct {
	EventType          string  `json:"eventType"`
	EventTime          int64   `json:"eventTime"`
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	WeightedAvgPrice   float64 `json:"weightedAvgPrice"`
	PrevClosePrice     float64 `json:"prevClosePrice"`
	CurrentPrice       float64 `json:"currentPrice"`
	CurrentQuantity    float64 `json:"currentQuantity"`
	BestBidPrice       float64 `json:"bestBidPrice"`
	BestBidQuantity    float64 `json:"bestBidQuantity"`
	BestAskPrice       float64 `json:"bestAskPrice"`
	BestAskQuantity    float64 `json:"bestAskQuantity"`
	OpenPrice          float64 `json:"openPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`      // base asset
	QuoteVolume        float64 `json:"quoteVolume"` // quote asset
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	FirstTradeID       int64   `json:"firstTradeId"`
	LastTradeID        int64   `json:"lastTradeId"`
	TradeCount         int64   `json:"tradeCount"`

	// interval (seconds) -> change
	ChangePercentage map[int]*PriceChange `json:"changePercentage"`
}

// Tickers relay 通道上的负载：symbol -> ticker
type Tickers map[string]*Ticker

// Filter 按 symbol 过滤；symbols 为空时返回全部
func (t Tickers) Filter(symbols []string) Tickers {
	if len(symbols) == 0 {
		return t
	}
	out := make(Tickers, len(symbols))
	for _, s := range symbols {
		key := NormalizeSymbol(s)
		if tk, ok := t[key]; ok {
			out[key] = tk
		}
	}
	return out
}

// Symbols 返回负载中的所有 symbol（无序）
func (t Tickers) Symbols() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	return out
}
