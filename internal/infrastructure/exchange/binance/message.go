package binance

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"tickrelay/internal/domain/model"
)

const (
	methodSubscribe   = "SUBSCRIBE"
	methodUnsubscribe = "UNSUBSCRIBE"
)

// controlMessage 订阅/退订控制消息
type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// numeric accepts both "1.23" and 1.23; anything unparsable decodes to 0.
type numeric float64

func (n *numeric) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = numeric(v)
	return nil
}

// tickerPayload <symbol>@ticker 推送
// 单字母字段大小写敏感（e/E, c/C, ...），encoding/json 优先精确匹配
type tickerPayload struct {
	EventType          string  `json:"e"`
	EventTime          int64   `json:"E"`
	Symbol             string  `json:"s"`
	PriceChange        numeric `json:"p"`
	PriceChangePercent numeric `json:"P"`
	WeightedAvgPrice   numeric `json:"w"`
	PrevClosePrice     numeric `json:"x"`
	LastPrice          numeric `json:"c"`
	LastQuantity       numeric `json:"Q"`
	BestBidPrice       numeric `json:"b"`
	BestBidQuantity    numeric `json:"B"`
	BestAskPrice       numeric `json:"a"`
	BestAskQuantity    numeric `json:"A"`
	OpenPrice          numeric `json:"o"`
	HighPrice          numeric `json:"h"`
	LowPrice           numeric `json:"l"`
	Volume             numeric `json:"v"`
	QuoteVolume        numeric `json:"q"`
	OpenTime           int64   `json:"O"`
	CloseTime          int64   `json:"C"`
	FirstTradeID       int64   `json:"F"`
	LastTradeID        int64   `json:"L"`
	TradeCount         int64   `json:"n"`
}

// combined stream 包装: {"stream":"btcusdt@ticker","data":{...}}
type combinedPayload struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// errorPayload 控制消息的错误回执
type errorPayload struct {
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
	ID int64 `json:"id"`
}

// parseTicker 解析一条推送；没有 symbol 字段（订阅回执等）或格式错误时返回 false
func parseTicker(b []byte) (model.Ticker, bool) {
	var wrap combinedPayload
	if err := json.Unmarshal(b, &wrap); err == nil && wrap.Stream != "" && len(wrap.Data) > 0 {
		b = wrap.Data
	}

	var p tickerPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return model.Ticker{}, false
	}
	sym := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if sym == "" {
		return model.Ticker{}, false
	}

	return model.Ticker{
		EventType:          p.EventType,
		EventTime:          p.EventTime,
		Symbol:             sym,
		PriceChange:        float64(p.PriceChange),
		PriceChangePercent: float64(p.PriceChangePercent),
		WeightedAvgPrice:   float64(p.WeightedAvgPrice),
		PrevClosePrice:     float64(p.PrevClosePrice),
		CurrentPrice:       float64(p.LastPrice),
		CurrentQuantity:    float64(p.LastQuantity),
		BestBidPrice:       float64(p.BestBidPrice),
		BestBidQuantity:    float64(p.BestBidQuantity),
		BestAskPrice:       float64(p.BestAskPrice),
		BestAskQuantity:    float64(p.BestAskQuantity),
		OpenPrice:          float64(p.OpenPrice),
		HighPrice:          float64(p.HighPrice),
		LowPrice:           float64(p.LowPrice),
		Volume:             float64(p.Volume),
		QuoteVolume:        float64(p.QuoteVolume),
		OpenTime:           p.OpenTime,
		CloseTime:          p.CloseTime,
		FirstTradeID:       p.FirstTradeID,
		LastTradeID:        p.LastTradeID,
		TradeCount:         p.TradeCount,
	}, true
}

// parseError 识别控制消息的错误回执
func parseError(b []byte) (code int, msg string, id int64, ok bool) {
	var e errorPayload
	if err := json.Unmarshal(b, &e); err != nil || e.Error == nil {
		return 0, "", 0, false
	}
	return e.Error.Code, e.Error.Msg, e.ID, true
}
