package exchange

import (
	"strings"

	"tickrelay/internal/domain/model"
)

func NormalizeSymbol(symbol string) string { return model.NormalizeSymbol(symbol) }

func NormalizeSymbols(in []string) []string { return model.NormalizeSymbols(in) }

// TickerStream 返回 symbol 对应的 24h ticker 流名称
// 例: BTCUSDT -> btcusdt@ticker
func TickerStream(symbol string) string {
	return strings.ToLower(NormalizeSymbol(symbol)) + "@ticker"
}
