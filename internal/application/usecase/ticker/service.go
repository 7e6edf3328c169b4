package ticker

import (
	"context"
	"errors"
	"sync"
	"time"

	"tickrelay/internal/domain/model"
	dsvc "tickrelay/internal/domain/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrMissingDeps = errors.New("ticker service: source, calculator and publisher are required")

const defaultListenRetry = time.Second

type ServiceDeps struct {
	Source     TickerSource
	Calculator *dsvc.ChangeCalculator
	Publisher  RelayPublisher
	Listener   RelayListener // nil 时不启动本地分发
	Repo       SubscriptionRepository

	Handlers []Handler // 启动时注册
	Symbols  []string  // 启动时固定订阅

	ListenRetry time.Duration
	Now         func() time.Time
}

// Service 上游 ticker -> 价格变化计算 -> relay 发布；relay 消息再分发给本地消费者
//
// 上游订阅 = 固定订阅（配置 + 持久化 + Watch）∪ 消费者引用的 symbol
type Service struct {
	deps ServiceDeps
	reg  *Registry

	ctlMu sync.Mutex // 串行化订阅变更（含上游控制消息）

	mu     sync.Mutex // 保护 pinned 和活跃判断；持有期间不做任何 I/O
	pinned map[string]struct{}

	errLog zerolog.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.ListenRetry <= 0 {
		deps.ListenRetry = defaultListenRetry
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:   deps,
		reg:    NewRegistry(),
		pinned: make(map[string]struct{}),
		// 上游高频推送时 redis 故障会刷屏，按突发采样
		errLog: log.Sample(&zerolog.BurstSampler{Burst: 5, Period: 10 * time.Second}),
	}
}

func (s *Service) Registry() *Registry { return s.reg }

// Run 阻塞直到 ctx 结束且上游完成清理
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Source == nil || s.deps.Calculator == nil || s.deps.Publisher == nil {
		return ErrMissingDeps
	}

	s.restore(ctx)
	s.Watch(ctx, s.deps.Symbols...)
	for _, h := range s.deps.Handlers {
		if h.Fn == nil {
			log.Warn().Str("handler", h.Name).Msg("handler without callback skipped")
			continue
		}
		id := s.Subscribe(h.Name, h.Symbols, h.Fn)
		log.Info().Str("handler", h.Name).Str("id", id).Strs("symbols", h.Symbols).Msg("handler registered")
	}

	in := s.deps.Source.Start(ctx)
	log.Info().Str("feed", s.deps.Source.Name()).Msg("feed started")

	var wg sync.WaitGroup
	if s.deps.Listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.listen(ctx)
		}()
	}

	for t := range in {
		s.process(ctx, t)
	}
	wg.Wait()
	log.Info().Str("feed", s.deps.Source.Name()).Msg("feed stopped")
	return nil
}

// Watch 固定订阅（不绑定本地回调），会持久化；返回上游是否新增了 symbol
func (s *Service) Watch(ctx context.Context, symbols ...string) bool {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	var added []string
	for _, sym := range model.NormalizeSymbols(symbols) {
		if _, ok := s.pinned[sym]; ok {
			continue
		}
		s.pinned[sym] = struct{}{}
		added = append(added, sym)
	}
	s.mu.Unlock()

	if len(added) == 0 {
		return false
	}
	if err := s.deps.Repo.AddSymbols(ctx, added, s.deps.Now().UnixMilli()); err != nil {
		log.Error().Err(err).Strs("symbols", added).Msg("persist subscriptions failed")
	}
	return s.deps.Source.Subscribe(added...)
}

// Unwatch 取消固定订阅；仍被消费者引用的 symbol 保持上游订阅
func (s *Service) Unwatch(ctx context.Context, symbols ...string) bool {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	var removed []string
	for _, sym := range model.NormalizeSymbols(symbols) {
		if _, ok := s.pinned[sym]; !ok {
			continue
		}
		delete(s.pinned, sym)
		removed = append(removed, sym)
	}
	drop := s.releaseLocked(removed)
	s.mu.Unlock()

	if len(removed) == 0 {
		return false
	}
	if err := s.deps.Repo.RemoveSymbols(ctx, removed); err != nil {
		log.Error().Err(err).Strs("symbols", removed).Msg("persist subscriptions failed")
	}
	return s.unsubscribeUpstream(drop)
}

// Subscribe 注册本地消费者并确保上游订阅；symbols 为空表示接收全部已订阅 symbol
func (s *Service) Subscribe(name string, symbols []string, fn Callback) string {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	id := s.reg.Register(name, symbols, fn)
	s.mu.Unlock()

	if syms := model.NormalizeSymbols(symbols); len(syms) > 0 {
		s.deps.Source.Subscribe(syms...)
	}
	return id
}

// Unsubscribe 移除消费者的部分或全部 symbol；不再被任何人引用的 symbol 退订上游
func (s *Service) Unsubscribe(id string, symbols ...string) bool {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	drop := s.releaseLocked(s.reg.Unregister(id, symbols...))
	s.mu.Unlock()

	return s.unsubscribeUpstream(drop)
}

// releaseLocked 挑出不再被任何人引用的 symbol 并丢弃其窗口，调用方持有 mu
func (s *Service) releaseLocked(symbols []string) []string {
	var drop []string
	for _, sym := range symbols {
		if s.activeLocked(sym) {
			continue
		}
		drop = append(drop, sym)
		s.deps.Calculator.Forget(sym)
	}
	return drop
}

// unsubscribeUpstream 可能阻塞在控制消息限速上，不能持有 mu 调用
func (s *Service) unsubscribeUpstream(drop []string) bool {
	if len(drop) == 0 {
		return false
	}
	return s.deps.Source.Unsubscribe(drop...)
}

func (s *Service) activeLocked(sym string) bool {
	if _, ok := s.pinned[sym]; ok {
		return true
	}
	return s.reg.Wants(sym)
}

// restore 恢复上次运行的固定订阅；存储不可用时只记录日志
func (s *Service) restore(ctx context.Context) {
	symbols, err := s.deps.Repo.ListSymbols(ctx)
	if err != nil {
		log.Error().Err(err).Msg("load persisted subscriptions failed")
		return
	}
	symbols = model.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return
	}

	s.mu.Lock()
	for _, sym := range symbols {
		s.pinned[sym] = struct{}{}
	}
	s.mu.Unlock()

	s.deps.Source.Subscribe(symbols...)
	log.Info().Strs("symbols", symbols).Msg("subscriptions restored")
}

func (s *Service) process(ctx context.Context, t model.Ticker) {
	// 活跃检查与窗口更新在同一把锁内，退订时 Forget 的窗口不会被重建
	s.mu.Lock()
	if !s.activeLocked(t.Symbol) {
		s.mu.Unlock()
		log.Debug().Str("symbol", t.Symbol).Msg("ticker for inactive symbol dropped")
		return
	}
	s.deps.Calculator.Enrich(&t, s.deps.Now().UnixMilli())
	s.mu.Unlock()

	if err := s.deps.Publisher.Publish(ctx, &t); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.errLog.Error().Err(err).Str("symbol", t.Symbol).Msg("relay publish failed")
	}
}

// listen 监听 relay 并分发；断开后按固定间隔重试直到 ctx 结束
func (s *Service) listen(ctx context.Context) {
	for {
		err := s.deps.Listener.Listen(ctx, s.reg.Dispatch)
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Dur("retry", s.deps.ListenRetry).Msg("relay listener stopped")

		t := time.NewTimer(s.deps.ListenRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
