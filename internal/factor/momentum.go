package factor

import (
	"fmt"
	"math"

	"factor-backtest/internal/frame"
)

// DefaultMomentumLookback 为动量回看窗口默认值。
const DefaultMomentumLookback = 20

// Momentum 根据回看期涨跌给出方向：涨幅严格为正做多，否则做空。
// 该规则只输出 Long/Short，从不输出 Flat。
type Momentum struct {
	Lookback int
}

// NewMomentum 创建动量规则，lookback 为 0 时使用默认值。
func NewMomentum(lookback int) *Momentum {
	if lookback == 0 {
		lookback = DefaultMomentumLookback
	}
	return &Momentum{Lookback: lookback}
}

func (m *Momentum) Name() string {
	return "Momentum"
}

// Generate 前 Lookback 根K线为 Undefined。
func (m *Momentum) Generate(prices frame.Table) (frame.SignalTable, error) {
	if m.Lookback < 1 {
		return frame.SignalTable{}, fmt.Errorf("%w: momentum lookback=%d", ErrInvalidParameter, m.Lookback)
	}
	return generate(prices, func(col []float64, out []frame.Position) {
		change := rateOfChange(col, m.Lookback)
		for i, c := range change {
			if math.IsNaN(c) {
				continue
			}
			if c > 0 {
				out[i] = frame.Long
			} else {
				out[i] = frame.Short
			}
		}
	})
}
