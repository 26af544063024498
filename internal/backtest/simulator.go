package backtest

import (
	"fmt"
	"math"

	"factor-backtest/internal/frame"
)

// Result 为一次模拟的输出，各表与价格表同索引。
type Result struct {
	Returns     frame.Table
	EquityCurve frame.Table
	Signals     frame.SignalTable
}

// Simulate 以一根K线的执行延迟将信号作用于价格，计算扣除交易成本后的逐K线收益与净值。
//
// 第 t 根K线的收益只取决于 signal[t-1] 与 signal[t-2]：
//
//	net[t] = signal[t-1]·(price[t]/price[t-1]-1) − |signal[t-1]−signal[t-2]|·costRate
//
// 未定义信号按空仓（0）参与计算，首根K线恒为 0。
func Simulate(prices frame.Table, signals frame.SignalTable, opts Options) (Result, error) {
	opts = opts.normalize()
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if err := frame.ValidatePrices(prices); err != nil {
		return Result{}, err
	}
	if err := signals.AlignedWith(prices); err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	returns := frame.NewTable(prices.Index, prices.Symbols)
	equity := frame.NewTable(prices.Index, prices.Symbols)
	for j := range prices.Columns {
		p := prices.Columns[j]
		s := signals.Columns[j]
		net := returns.Columns[j]
		curve := equity.Columns[j]

		growth := 1.0
		for t := range p {
			net[t] = netReturn(p, s, t, opts.CostRate)
			growth *= 1 + net[t]
			curve[t] = opts.InitialCapital * growth
		}
	}

	return Result{
		Returns:     returns,
		EquityCurve: equity,
		Signals:     signals.Clone(),
	}, nil
}

func netReturn(p []float64, s []frame.Position, t int, costRate float64) float64 {
	if t == 0 {
		return 0
	}
	gross := exposure(s[t-1]) * (p[t]/p[t-1] - 1)
	// 第 t-1 根检测到的换仓，成本记在生效的第 t 根。
	return gross - tradeCost(s, t-1, costRate)
}

// tradeCost 返回第 t 根K线的换仓成本，预热结束后首次建仓同样计费。
func tradeCost(s []frame.Position, t int, costRate float64) float64 {
	if t < 1 {
		return 0
	}
	return math.Abs(exposure(s[t])-exposure(s[t-1])) * costRate
}

// exposure 返回信号对应的仓位，Undefined 视为空仓。
func exposure(p frame.Position) float64 {
	if !p.Defined() {
		return 0
	}
	return p.Float()
}

// BuyAndHold 返回各标的的逐K线涨跌幅，首根K线为 NaN。
func BuyAndHold(prices frame.Table) (frame.Table, error) {
	if err := frame.ValidatePrices(prices); err != nil {
		return frame.Table{}, err
	}
	out := frame.NewTable(prices.Index, prices.Symbols)
	for j, p := range prices.Columns {
		col := out.Columns[j]
		col[0] = math.NaN()
		for t := 1; t < len(p); t++ {
			col[t] = p[t]/p[t-1] - 1
		}
	}
	return out, nil
}
