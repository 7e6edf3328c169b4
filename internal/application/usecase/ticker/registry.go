package ticker

import (
	"sync"

	"tickrelay/internal/domain/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Callback 接收按 symbol 过滤后的 ticker
type Callback func(items model.Tickers)

// Handler 构造时显式注册的处理器；Symbols 为空表示接收全部 symbol
type Handler struct {
	Name    string
	Symbols []string
	Fn      Callback
}

type registration struct {
	id      string
	name    string
	symbols []string // 空 = 全部
	fn      Callback
}

// Registry 管理 relay 消费者，并统计每个 symbol 被多少个消费者引用
type Registry struct {
	mu    sync.RWMutex
	regs  map[string]*registration
	order []string       // 注册顺序，分发时保持稳定
	refs  map[string]int // symbol -> 引用数
}

func NewRegistry() *Registry {
	return &Registry{
		regs: make(map[string]*registration),
		refs: make(map[string]int),
	}
}

// Register 注册消费者，返回注册 id
func (r *Registry) Register(name string, symbols []string, fn Callback) string {
	reg := &registration{
		id:      uuid.NewString(),
		name:    name,
		symbols: model.NormalizeSymbols(symbols),
		fn:      fn,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg.id] = reg
	r.order = append(r.order, reg.id)
	for _, s := range reg.symbols {
		r.refs[s]++
	}
	return reg.id
}

// Unregister 从注册中移除 symbols；未指定 symbols 或移除后为空时删除整个注册
// 返回引用数降为 0 的 symbol
func (r *Registry) Unregister(id string, symbols ...string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return nil
	}
	// 接收全部的注册没有可移除的 symbol
	if len(reg.symbols) == 0 && len(symbols) > 0 {
		return nil
	}

	drop := model.NormalizeSymbols(symbols)
	if len(drop) == 0 {
		drop = reg.symbols
	}
	dropSet := make(map[string]struct{}, len(drop))
	for _, s := range drop {
		dropSet[s] = struct{}{}
	}

	var released []string
	kept := reg.symbols[:0:0]
	for _, s := range reg.symbols {
		if _, ok := dropSet[s]; !ok {
			kept = append(kept, s)
			continue
		}
		r.refs[s]--
		if r.refs[s] <= 0 {
			delete(r.refs, s)
			released = append(released, s)
		}
	}
	reg.symbols = kept

	// 过滤集合清空后若保留注册会变成"接收全部"，因此直接删除
	if len(kept) == 0 || len(symbols) == 0 {
		for _, s := range kept {
			r.refs[s]--
			if r.refs[s] <= 0 {
				delete(r.refs, s)
				released = append(released, s)
			}
		}
		delete(r.regs, id)
		for i, rid := range r.order {
			if rid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	return released
}

// Wants 是否有消费者引用该 symbol
func (r *Registry) Wants(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[model.NormalizeSymbol(symbol)] > 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

// Dispatch 把 relay 消息按各注册的过滤条件分发；过滤后为空则不回调
func (r *Registry) Dispatch(items model.Tickers) {
	if len(items) == 0 {
		return
	}

	// 复制快照，回调期间允许注册/注销
	r.mu.RLock()
	regs := make([]registration, 0, len(r.order))
	for _, id := range r.order {
		regs = append(regs, *r.regs[id])
	}
	r.mu.RUnlock()

	for i := range regs {
		reg := &regs[i]
		view := items.Filter(reg.symbols)
		if len(view) == 0 {
			continue
		}
		invoke(reg, view)
	}
}

// invoke 单个回调 panic 不影响其他消费者和 relay 监听
func invoke(reg *registration, view model.Tickers) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("handler", reg.name).Str("id", reg.id).Interface("panic", p).Msg("ticker handler panicked")
		}
	}()
	reg.fn(view)
}
