package performance

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"factor-backtest/internal/frame"
)

func almostEqual(a, b float64) bool {
	tol := 1e-9 * math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol
}

func series(name string, values ...float64) frame.Series {
	index := make([]time.Time, len(values))
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range index {
		index[i] = start.AddDate(0, 0, i)
	}
	return frame.Series{Name: name, Index: index, Values: values}
}

func TestCompute_KnownSeries(t *testing.T) {
	stats, ok := Compute([]float64{0.10, -0.05, 0.02, -0.01}, Options{})
	if !ok {
		t.Fatalf("Compute returned ok=false")
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"total_return", stats.TotalReturn, 0.055240999999999874},
		{"cagr", stats.CAGR, 28.590641391902242},
		{"volatility", stats.Volatility, 1.008166652890285},
		{"sharpe", stats.Sharpe, 3.7493801140547776},
		{"sortino", stats.Sortino, 8.418729120241368},
		{"calmar", stats.Calmar, 571.8128278380448},
		{"max_drawdown", stats.MaxDrawdown, -0.05},
		{"win_rate", stats.WinRate, 0.5},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if stats.Observations != 4 {
		t.Errorf("observations = %d, want 4", stats.Observations)
	}
}

func TestCompute_RiskFreeRate(t *testing.T) {
	stats, _ := Compute([]float64{0.10, -0.05, 0.02, -0.01}, Options{RiskFreeRate: 0.02})
	if !almostEqual(stats.Sharpe, 3.7295421240333235) {
		t.Errorf("sharpe with rf = %v", stats.Sharpe)
	}
}

func TestCompute_DegenerateDenominators(t *testing.T) {
	stats, ok := Compute([]float64{0, 0, 0, 0}, Options{})
	if !ok {
		t.Fatalf("Compute returned ok=false")
	}
	if stats.Volatility != 0 || stats.Sharpe != 0 || stats.Sortino != 0 || stats.Calmar != 0 {
		t.Errorf("expected zeros for flat series, got %+v", stats)
	}
	if stats.MaxDrawdown != 0 || stats.CAGR != 0 || stats.WinRate != 0 {
		t.Errorf("unexpected flat-series stats %+v", stats)
	}

	// 只有一个负收益时下行波动率无定义。
	stats, _ = Compute([]float64{0.02, -0.01, 0.03}, Options{})
	if stats.Sortino != 0 {
		t.Errorf("sortino with single downside bar = %v, want 0", stats.Sortino)
	}

	stats, _ = Compute([]float64{0.05}, Options{})
	if stats.Volatility != 0 || stats.Sharpe != 0 {
		t.Errorf("single observation should give zero volatility/sharpe, got %+v", stats)
	}
	if stats.WinRate != 1 {
		t.Errorf("win rate = %v, want 1", stats.WinRate)
	}
}

func TestCalculate_SkipsEmptyAndDropsNaN(t *testing.T) {
	nan := math.NaN()
	record := Calculate([]frame.Series{
		series("Empty", nan, nan),
		series("Buy&Hold_A", nan, 0.10, -0.05, 0.02, -0.01),
		series("Zero"),
	}, Options{})

	if len(record.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(record.Rows))
	}
	row, ok := record.Get("Buy&Hold_A")
	if !ok {
		t.Fatalf("row not found")
	}
	if row.Observations != 4 || !almostEqual(row.Sharpe, 3.7493801140547776) {
		t.Errorf("NaN not dropped before computing: %+v", row)
	}
}

func TestCalculate_IndependentRows(t *testing.T) {
	a := series("A", 0.01, -0.02, 0.03)
	b := series("B", -0.01, 0.04, 0.00)
	both := Calculate([]frame.Series{a, b}, Options{})
	alone := Calculate([]frame.Series{b}, Options{})
	got, _ := both.Get("B")
	want, _ := alone.Get("B")
	if got != want {
		t.Errorf("row B depends on other series: %+v vs %+v", got, want)
	}
	if both.Rows[0].Name != "A" || both.Rows[1].Name != "B" {
		t.Errorf("rows must keep input order")
	}
}

func TestRecordColumns(t *testing.T) {
	full := Calculate(nil, Options{})
	if cols := full.Columns(); len(cols) != 7 || cols[0] != ColumnCAGR || cols[6] != ColumnWinRate {
		t.Errorf("unexpected full columns %v", cols)
	}
	basic := Calculate(nil, Options{Variant: VariantBasic})
	want := []string{ColumnCAGR, ColumnVolatility, ColumnSharpe, ColumnMaxDrawdown}
	cols := basic.Columns()
	if len(cols) != len(want) {
		t.Fatalf("unexpected basic columns %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("basic column %d = %s, want %s", i, cols[i], want[i])
		}
	}
}

func TestMaxDrawdownBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		returns := make([]float64, 50)
		for i := range returns {
			returns[i] = rng.Float64()*1.5 - 0.99
		}
		stats, _ := Compute(returns, Options{})
		if stats.MaxDrawdown > 0 || stats.MaxDrawdown < -1 {
			t.Fatalf("trial %d: max drawdown %v out of [-1,0]", trial, stats.MaxDrawdown)
		}
	}
}

func TestDrawdownSeries(t *testing.T) {
	dd := Drawdown(series("A", math.NaN(), 0.10, -0.10, 0.05))
	if !math.IsNaN(dd.Values[0]) {
		t.Errorf("undefined point must stay NaN")
	}
	if dd.Values[1] != 0 {
		t.Errorf("new peak should have zero drawdown, got %v", dd.Values[1])
	}
	if !almostEqual(dd.Values[2], -0.10) {
		t.Errorf("drawdown = %v, want -0.10", dd.Values[2])
	}
	if !almostEqual(dd.Values[3], 1.1*0.9*1.05/1.1-1) {
		t.Errorf("drawdown = %v", dd.Values[3])
	}
}
