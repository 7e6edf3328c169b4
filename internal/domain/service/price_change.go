package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"tickrelay/internal/domain/model"
)

// ErrNoIntervals 没有配置任何回看区间
var ErrNoIntervals = errors.New("no change intervals configured")

// PercentChange 计算 old -> new 的百分比变化，保留 3 位小数
// old 为 0 或结果非有限数时返回 false
func PercentChange(oldPrice, newPrice float64) (float64, bool) {
	if oldPrice == 0 {
		return 0, false
	}
	pct := (newPrice - oldPrice) / oldPrice * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, false
	}
	return roundTo(pct, 3), true
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

// ChangeCalculator 维护每个 symbol 的价格窗口并计算各区间的涨跌幅
type ChangeCalculator struct {
	mu sync.Mutex

	intervals []int // 秒，升序去重
	retainMs  int64 // 窗口保留时长 = 2 * max(intervals)
	windows   map[string]*Window
}

// NewChangeCalculator 创建计算器，intervals 单位为秒
func NewChangeCalculator(intervals []int) (*ChangeCalculator, error) {
	if len(intervals) == 0 {
		return nil, ErrNoIntervals
	}
	seen := make(map[int]struct{}, len(intervals))
	norm := make([]int, 0, len(intervals))
	for _, iv := range intervals {
		if iv <= 0 {
			return nil, fmt.Errorf("invalid change interval %d: must be positive", iv)
		}
		if _, ok := seen[iv]; ok {
			continue
		}
		seen[iv] = struct{}{}
		norm = append(norm, iv)
	}
	sort.Ints(norm)

	return &ChangeCalculator{
		intervals: norm,
		retainMs:  int64(norm[len(norm)-1]) * 2 * 1000,
		windows:   make(map[string]*Window),
	}, nil
}

// Intervals 返回已规范化的区间列表副本
func (c *ChangeCalculator) Intervals() []int {
	out := make([]int, len(c.intervals))
	copy(out, c.intervals)
	return out
}

// Apply 记录一次价格采样并返回每个区间的变化
// 窗口中没有足够早的采样时对应区间为 nil
func (c *ChangeCalculator) Apply(symbol string, price float64, nowMs int64) map[int]*model.PriceChange {
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[sym]
	if w == nil {
		w = &Window{}
		c.windows[sym] = w
	}

	s := w.Push(model.Sample{Time: nowMs, Price: price})
	now := s.Time
	w.Evict(now - c.retainMs)

	out := make(map[int]*model.PriceChange, len(c.intervals))
	for _, iv := range c.intervals {
		old, ok := w.AtOrBefore(now - int64(iv)*1000)
		if !ok {
			out[iv] = nil
			continue
		}
		pct, ok := PercentChange(old.Price, price)
		if !ok {
			out[iv] = nil
			continue
		}
		out[iv] = &model.PriceChange{Start: old.Price, End: price, Change: pct}
	}
	return out
}

// Enrich 用 ticker 的最新价更新窗口，并写入 ChangePercentage
func (c *ChangeCalculator) Enrich(t *model.Ticker, nowMs int64) *model.Ticker {
	t.ChangePercentage = c.Apply(t.Symbol, t.CurrentPrice, nowMs)
	return t
}

// Forget 丢弃 symbol 的窗口（不再订阅时调用）
func (c *ChangeCalculator) Forget(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, strings.ToUpper(strings.TrimSpace(symbol)))
}

// Samples 返回 symbol 当前窗口的副本
func (c *ChangeCalculator) Samples(symbol string) []model.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.windows[strings.ToUpper(strings.TrimSpace(symbol))]
	if w == nil {
		return nil
	}
	return w.Samples()
}
