package factor

import (
	"fmt"
	"math"

	"factor-backtest/internal/frame"
)

const (
	DefaultMeanReversionWindow    = 20
	DefaultMeanReversionThreshold = 1.5
)

// MeanReversion 使用滚动 z-score：超买做空，超卖做多，其余空仓。
type MeanReversion struct {
	Window    int
	Threshold float64
}

// NewMeanReversion 创建均值回归规则。window 为 0 或 threshold 为负时使用默认值，
// threshold 为 0 表示任何偏离都触发信号。
func NewMeanReversion(window int, threshold float64) *MeanReversion {
	if window == 0 {
		window = DefaultMeanReversionWindow
	}
	if threshold < 0 {
		threshold = DefaultMeanReversionThreshold
	}
	return &MeanReversion{Window: window, Threshold: threshold}
}

func (m *MeanReversion) Name() string {
	return "Mean Reversion"
}

// Generate 前 Window-1 根K线为 Undefined；窗口内价格恒定时 z-score 无定义，输出 Flat。
func (m *MeanReversion) Generate(prices frame.Table) (frame.SignalTable, error) {
	if m.Window < 2 {
		return frame.SignalTable{}, fmt.Errorf("%w: mean reversion window=%d", ErrInvalidParameter, m.Window)
	}
	if m.Threshold < 0 || math.IsNaN(m.Threshold) {
		return frame.SignalTable{}, fmt.Errorf("%w: mean reversion threshold=%v", ErrInvalidParameter, m.Threshold)
	}
	return generate(prices, func(col []float64, out []frame.Position) {
		mean := rollingMean(col, m.Window)
		std := rollingStd(col, m.Window)
		for i := m.Window - 1; i < len(col); i++ {
			out[i] = frame.Flat
			if std[i] == 0 || math.IsNaN(std[i]) {
				continue
			}
			z := (col[i] - mean[i]) / std[i]
			switch {
			case z > m.Threshold:
				out[i] = frame.Short
			case z < -m.Threshold:
				out[i] = frame.Long
			}
		}
	})
}
