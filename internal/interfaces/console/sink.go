package console

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"tickrelay/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Printer 把 relay 消息打印成每个 symbol 一行
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	now   func() time.Time
}

func NewPrinter(w io.Writer, color bool) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, color: color, now: time.Now}
}

// Handle 作为 relay 消费者回调；按 symbol 排序输出
func (p *Printer) Handle(items model.Tickers) {
	symbols := items.Symbols()
	sort.Strings(symbols)

	ts := p.now().Format("2006-01-02 15:04:05")

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sym := range symbols {
		t := items[sym]
		if t == nil {
			continue
		}
		fmt.Fprintf(p.w, "%s %s\n", ts, p.Format(t))
	}
}

// Format 例：BTCUSDT 110.00000000 2s=+10.000% 4s=-- 6s=--
func (p *Printer) Format(t *model.Ticker) string {
	intervals := make([]int, 0, len(t.ChangePercentage))
	for iv := range t.ChangePercentage {
		intervals = append(intervals, iv)
	}
	sort.Ints(intervals)

	var sb strings.Builder
	sb.WriteString(p.paint("[TICKRELAY] ", ansiDim))
	sb.WriteString(t.Symbol)
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%.8f", t.CurrentPrice))

	for _, iv := range intervals {
		sb.WriteString(" ")
		pc := t.ChangePercentage[iv]
		if pc == nil {
			sb.WriteString(p.paint(fmt.Sprintf("%ds=--", iv), ansiYellow))
			continue
		}
		col := ansiYellow
		switch {
		case pc.Change > 0:
			col = ansiGreen
		case pc.Change < 0:
			col = ansiRed
		}
		sb.WriteString(p.paint(fmt.Sprintf("%ds=%+.3f%%", iv, pc.Change), col))
	}
	return sb.String()
}

func (p *Printer) paint(s, c string) string {
	if !p.color {
		return s
	}
	return colorize(s, c)
}
