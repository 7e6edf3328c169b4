package binance

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tickrelay/internal/domain/model"
	"tickrelay/internal/infrastructure/exchange"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// Name 交易所名称
	Name = "BINANCE"

	// DefaultWsURL 现货 raw stream 入口
	DefaultWsURL = "wss://stream.binance.com:9443/ws"

	readTimeout    = 60 * time.Second
	pingInterval   = 25 * time.Second
	writeTimeout   = 5 * time.Second
	controlTimeout = 10 * time.Second

	// 重连后批量重订阅时每条消息携带的最大 stream 数
	maxParamsPerMessage = 100
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

// StreamConfig TickerStream 配置
type StreamConfig struct {
	WsURL          string
	ReconnectDelay time.Duration // 固定重连间隔（非指数退避）
	DialTimeout    time.Duration
	ControlRate    float64 // 控制消息每秒上限（Binance 限制 5/s）
	ControlBurst   int
}

func (c *StreamConfig) applyDefaults() {
	c.WsURL = strings.TrimSpace(c.WsURL)
	if c.WsURL == "" {
		c.WsURL = DefaultWsURL
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ControlRate <= 0 {
		c.ControlRate = 5
	}
	if c.ControlBurst <= 0 {
		c.ControlBurst = 1
	}
}

// TickerStream 维护唯一的上游连接：断线固定间隔重连，连上后按订阅集合重新订阅
// 订阅集合是重订阅的唯一依据，跨重连保留
type TickerStream struct {
	cfg     StreamConfig
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn // 仅在 Open 状态下非 nil
	state   State
	symbols map[string]struct{}

	writeMu sync.Mutex
	nextID  atomic.Int64
}

// NewTickerStream 创建 Binance ticker 流
func NewTickerStream(cfg StreamConfig) *TickerStream {
	cfg.applyDefaults()
	return &TickerStream{
		cfg:     cfg,
		dialer:  websocket.DefaultDialer,
		limiter: rate.NewLimiter(rate.Limit(cfg.ControlRate), cfg.ControlBurst),
		symbols: make(map[string]struct{}),
	}
}

func (s *TickerStream) Name() string { return Name }

// State 当前连接状态
func (s *TickerStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Symbols 当前订阅集合（无序）
func (s *TickerStream) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbolsLocked()
}

func (s *TickerStream) symbolsLocked() []string {
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// Subscribe 把新的 symbol 加入订阅集合；连接处于 Open 时逐个发送 SUBSCRIBE
// 已订阅的 symbol 不会重复发送，全部已存在时返回 false
func (s *TickerStream) Subscribe(symbols ...string) bool {
	var added []string

	s.mu.Lock()
	for _, sym := range exchange.NormalizeSymbols(symbols) {
		if _, ok := s.symbols[sym]; ok {
			continue
		}
		s.symbols[sym] = struct{}{}
		added = append(added, sym)
	}
	conn := s.conn
	s.mu.Unlock()

	for _, sym := range added {
		log.Info().Str("feed", Name).Str("symbol", sym).Msg("SUBSCRIBE")
		if conn != nil {
			s.sendControl(conn, methodSubscribe, []string{sym})
		}
	}
	return len(added) > 0
}

// Unsubscribe 从订阅集合移除 symbol；连接处于 Open 时逐个发送 UNSUBSCRIBE
func (s *TickerStream) Unsubscribe(symbols ...string) bool {
	var removed []string

	s.mu.Lock()
	for _, sym := range exchange.NormalizeSymbols(symbols) {
		if _, ok := s.symbols[sym]; !ok {
			continue
		}
		delete(s.symbols, sym)
		removed = append(removed, sym)
	}
	conn := s.conn
	s.mu.Unlock()

	for _, sym := range removed {
		log.Info().Str("feed", Name).Str("symbol", sym).Msg("UNSUBSCRIBE")
		if conn != nil {
			s.sendControl(conn, methodUnsubscribe, []string{sym})
		}
	}
	return len(removed) > 0
}

// Start 启动连接循环；ctx 结束后先退订全部 symbol、关闭连接，再关闭返回的 channel
func (s *TickerStream) Start(ctx context.Context) <-chan model.Ticker {
	out := make(chan model.Ticker, 1024)
	go s.run(ctx, out)
	return out
}

func (s *TickerStream) run(ctx context.Context, out chan<- model.Ticker) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		log.Warn().Str("feed", Name).Str("url", s.cfg.WsURL).Msg("ws connecting")

		cctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
		conn, _, err := s.dialer.DialContext(cctx, s.cfg.WsURL, nil)
		cancel()
		if err != nil {
			s.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			log.Error().Str("feed", Name).Err(err).Msg("ws dial failed")
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		log.Info().Str("feed", Name).Msg("ws connected")
		err = s.serve(ctx, conn, out)
		if ctx.Err() != nil {
			log.Warn().Str("feed", Name).Msg("ws stream stopped")
			return
		}

		log.Warn().Str("feed", Name).Err(err).Dur("delay", s.cfg.ReconnectDelay).Msg("ws closed, reconnecting")
		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			return
		}
	}
}

// serve 处理一条连接的完整生命周期，返回前连接已关闭、读 goroutine 已退出
func (s *TickerStream) serve(ctx context.Context, conn *websocket.Conn, out chan<- model.Ticker) error {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	readErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			s.handleMessage(ctx, b, out)
		}
	}()

	// 先置为 Open 再重订阅：期间新增的 symbol 至多重复发送一次，不会遗漏
	s.attach(conn)

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case err = <-readErr:
			log.Error().Str("feed", Name).Err(err).Msg("ws read error")
			break loop
		case <-pingTicker.C:
			if e := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); e != nil {
				log.Error().Str("feed", Name).Err(e).Msg("ws ping failed")
				err = e
				break loop
			}
		}
	}

	symbols := s.detach(conn)
	if ctx.Err() != nil {
		s.teardown(conn, symbols)
	}
	_ = conn.Close()
	<-done
	return err
}

// attach 切换到 Open 并重新订阅集合中的全部 symbol
func (s *TickerStream) attach(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.state = StateOpen
	symbols := s.symbolsLocked()
	s.mu.Unlock()

	if len(symbols) == 0 {
		return
	}
	log.Info().Str("feed", Name).Int("symbols", len(symbols)).Msg("resubscribing")
	for _, chunk := range chunkStrings(symbols, maxParamsPerMessage) {
		s.sendControl(conn, methodSubscribe, chunk)
	}
}

// detach 切换到 Disconnected，返回断开时的订阅集合
func (s *TickerStream) detach(conn *websocket.Conn) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	s.state = StateDisconnected
	return s.symbolsLocked()
}

// teardown 关闭前退订全部 symbol；订阅集合本身保留
func (s *TickerStream) teardown(conn *websocket.Conn, symbols []string) {
	log.Warn().Str("feed", Name).Int("symbols", len(symbols)).Msg("ws teardown")
	for _, chunk := range chunkStrings(symbols, maxParamsPerMessage) {
		s.sendControl(conn, methodUnsubscribe, chunk)
	}
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
	s.writeMu.Unlock()
}

func (s *TickerStream) handleMessage(ctx context.Context, b []byte, out chan<- model.Ticker) {
	t, ok := parseTicker(b)
	if !ok {
		if code, msg, id, isErr := parseError(b); isErr {
			log.Warn().Str("feed", Name).Int("code", code).Str("msg", msg).Int64("id", id).Msg("control message rejected")
		}
		return
	}
	select {
	case out <- t:
	case <-ctx.Done():
	}
}

// sendControl 发送 SUBSCRIBE/UNSUBSCRIBE；失败只记录日志，断线由重连循环处理
func (s *TickerStream) sendControl(conn *websocket.Conn, method string, symbols []string) {
	params := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		params = append(params, exchange.TickerStream(sym))
	}
	msg := controlMessage{Method: method, Params: params, ID: s.nextID.Add(1)}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		log.Error().Str("feed", Name).Str("method", method).Err(err).Msg("control message rate limited")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Error().Str("feed", Name).Str("method", method).Strs("params", params).Err(err).Msg("control message send failed")
	}
}

func (s *TickerStream) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
