package factor

import (
	"fmt"

	"factor-backtest/internal/frame"
)

const (
	DefaultShortWindow = 20
	DefaultLongWindow  = 60
)

// MACrossover 比较短、长两条简单均线：短线在上做多，在下做空，相等空仓。
type MACrossover struct {
	ShortWindow int
	LongWindow  int
}

// NewMACrossover 创建均线交叉规则，零值参数使用默认值。长窗口必须大于短窗口。
func NewMACrossover(short, long int) *MACrossover {
	if short == 0 {
		short = DefaultShortWindow
	}
	if long == 0 {
		long = DefaultLongWindow
	}
	return &MACrossover{ShortWindow: short, LongWindow: long}
}

func (m *MACrossover) Name() string {
	return "MA Crossover"
}

// Generate 前 LongWindow-1 根K线为 Undefined。
func (m *MACrossover) Generate(prices frame.Table) (frame.SignalTable, error) {
	if m.ShortWindow < 1 || m.LongWindow <= m.ShortWindow {
		return frame.SignalTable{}, fmt.Errorf("%w: ma crossover windows=%d/%d", ErrInvalidParameter, m.ShortWindow, m.LongWindow)
	}
	warmup := m.LongWindow - 1
	return generate(prices, func(col []float64, out []frame.Position) {
		short := rollingMean(col, m.ShortWindow)
		long := rollingMean(col, m.LongWindow)
		for i := warmup; i < len(col); i++ {
			switch {
			case short[i] > long[i]:
				out[i] = frame.Long
			case short[i] < long[i]:
				out[i] = frame.Short
			default:
				out[i] = frame.Flat
			}
		}
	})
}
