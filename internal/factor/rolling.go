package factor

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// talib 的输出在预热区间填 0，这里统一改写为 NaN。

func rollingMean(values []float64, window int) []float64 {
	if len(values) < window {
		return nanSlice(len(values))
	}
	out := talib.Sma(values, window)
	markWarmup(out, window-1)
	return out
}

// rollingStd 返回样本标准差（n-1 自由度）。
func rollingStd(values []float64, window int) []float64 {
	if len(values) < window {
		return nanSlice(len(values))
	}
	out := talib.StdDev(values, window, 1)
	scale := math.Sqrt(float64(window) / float64(window-1))
	for i := range out {
		out[i] *= scale
	}
	markWarmup(out, window-1)
	return out
}

// rateOfChange 返回 lookback 根K线的百分比变化（×100）。
func rateOfChange(values []float64, lookback int) []float64 {
	if len(values) <= lookback {
		return nanSlice(len(values))
	}
	out := talib.Roc(values, lookback)
	markWarmup(out, lookback)
	return out
}

func markWarmup(values []float64, n int) {
	for i := 0; i < n && i < len(values); i++ {
		values[i] = math.NaN()
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	markWarmup(out, n)
	return out
}
