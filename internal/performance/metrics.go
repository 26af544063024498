// Package performance 计算收益序列的年化风险收益指标。
package performance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"factor-backtest/internal/frame"
)

// DefaultPeriodsPerYear 为日线年化周期数。
const DefaultPeriodsPerYear = 252

// Variant 决定输出的指标列集合。
type Variant string

const (
	// VariantFull 输出全部七项指标。
	VariantFull Variant = "full"
	// VariantBasic 为兼容保留的四项指标。
	VariantBasic Variant = "basic"
)

// 指标列名。
const (
	ColumnCAGR        = "CAGR"
	ColumnVolatility  = "Volatility"
	ColumnSharpe      = "Sharpe Ratio"
	ColumnSortino     = "Sortino Ratio"
	ColumnCalmar      = "Calmar Ratio"
	ColumnMaxDrawdown = "Max Drawdown"
	ColumnWinRate     = "Win Rate"
)

var (
	fullColumns  = []string{ColumnCAGR, ColumnVolatility, ColumnSharpe, ColumnSortino, ColumnCalmar, ColumnMaxDrawdown, ColumnWinRate}
	basicColumns = []string{ColumnCAGR, ColumnVolatility, ColumnSharpe, ColumnMaxDrawdown}
)

// Options 控制年化参数。
type Options struct {
	RiskFreeRate   float64
	PeriodsPerYear int
	Variant        Variant
}

func (o Options) normalize() Options {
	if o.PeriodsPerYear <= 0 {
		o.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if o.Variant != VariantBasic {
		o.Variant = VariantFull
	}
	return o
}

// Stats 为单条收益序列的指标。
type Stats struct {
	Name         string  `json:"name"`
	Observations int     `json:"observations"`
	TotalReturn  float64 `json:"total_return"`
	CAGR         float64 `json:"cagr"`
	Volatility   float64 `json:"volatility"`
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`
	Calmar       float64 `json:"calmar"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
}

// Value 按列名取指标值。
func (s Stats) Value(column string) float64 {
	switch column {
	case ColumnCAGR:
		return s.CAGR
	case ColumnVolatility:
		return s.Volatility
	case ColumnSharpe:
		return s.Sharpe
	case ColumnSortino:
		return s.Sortino
	case ColumnCalmar:
		return s.Calmar
	case ColumnMaxDrawdown:
		return s.MaxDrawdown
	case ColumnWinRate:
		return s.WinRate
	default:
		return math.NaN()
	}
}

// Record 每条序列一行，列集合由 Variant 决定。
type Record struct {
	Variant Variant `json:"variant"`
	Rows    []Stats `json:"rows"`
}

// Columns 返回当前变体的列名。
func (r Record) Columns() []string {
	if r.Variant == VariantBasic {
		return append([]string(nil), basicColumns...)
	}
	return append([]string(nil), fullColumns...)
}

// Get 按序列名查找指标行。
func (r Record) Get(name string) (Stats, bool) {
	for _, row := range r.Rows {
		if row.Name == name {
			return row, true
		}
	}
	return Stats{}, false
}

// Calculate 按输入顺序逐条计算指标；去除 NaN 后为空的序列被跳过。
func Calculate(series []frame.Series, opts Options) Record {
	opts = opts.normalize()
	record := Record{Variant: opts.Variant, Rows: make([]Stats, 0, len(series))}
	for _, s := range series {
		stats, ok := Compute(s.Valid(), opts)
		if !ok {
			continue
		}
		stats.Name = s.Name
		record.Rows = append(record.Rows, stats)
	}
	return record
}

// Compute 计算一组已去除 NaN 的收益率，空输入返回 false。
func Compute(returns []float64, opts Options) (Stats, bool) {
	n := len(returns)
	if n == 0 {
		return Stats{}, false
	}
	opts = opts.normalize()
	ppy := float64(opts.PeriodsPerYear)

	growth := cumulativeGrowth(returns)
	totalReturn := growth[n-1] - 1

	years := float64(n) / ppy
	cagr := 0.0
	if years > 0 {
		cagr = math.Pow(1+totalReturn, 1/years) - 1
	}

	volatility := sampleStd(returns) * math.Sqrt(ppy)
	meanAnnual := stat.Mean(returns, nil) * ppy
	excess := meanAnnual - opts.RiskFreeRate

	downside := make([]float64, 0, n)
	wins := 0
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
		if r > 0 {
			wins++
		}
	}
	downsideVol := sampleStd(downside) * math.Sqrt(ppy)

	maxDD := maxDrawdown(growth)

	return Stats{
		Observations: n,
		TotalReturn:  totalReturn,
		CAGR:         cagr,
		Volatility:   volatility,
		Sharpe:       safeDivide(excess, volatility),
		Sortino:      safeDivide(excess, downsideVol),
		Calmar:       safeDivide(cagr, math.Abs(maxDD)),
		MaxDrawdown:  maxDD,
		WinRate:      float64(wins) / float64(n),
	}, true
}

// Drawdown 返回序列相对历史峰值的回撤路径，未定义点保持 NaN。
func Drawdown(s frame.Series) frame.Series {
	out := frame.Series{
		Name:   s.Name,
		Index:  append([]time.Time(nil), s.Index...),
		Values: make([]float64, len(s.Values)),
	}
	cum, peak := 1.0, math.Inf(-1)
	for i, r := range s.Values {
		if math.IsNaN(r) {
			out.Values[i] = math.NaN()
			continue
		}
		cum *= 1 + r
		peak = math.Max(peak, cum)
		out.Values[i] = (cum - peak) / peak
	}
	return out
}

func cumulativeGrowth(returns []float64) []float64 {
	growth := make([]float64, len(returns))
	copy(growth, returns)
	floats.AddConst(1, growth)
	return floats.CumProd(growth, growth)
}

// maxDrawdown 以首个累计值为初始峰值，结果不大于 0。
func maxDrawdown(growth []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range growth {
		peak = math.Max(peak, v)
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// sampleStd 返回 n-1 自由度的标准差，不足两个样本时为 0。
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// safeDivide 除数为 0 或无定义时返回 0。
func safeDivide(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return 0
	}
	return a / b
}
