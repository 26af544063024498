package factor

import (
	"errors"
	"testing"
	"time"

	"factor-backtest/internal/config"
	"factor-backtest/internal/frame"
)

func priceTable(cols map[string][]float64, order ...string) frame.Table {
	n := len(cols[order[0]])
	index := make([]time.Time, n)
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range index {
		index[i] = start.AddDate(0, 0, i)
	}
	tbl := frame.NewTable(index, order)
	for j, sym := range order {
		copy(tbl.Columns[j], cols[sym])
	}
	return tbl
}

func assertSignals(t *testing.T, got []frame.Position, want []frame.Position) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d: got %s want %s", i, got[i], want[i])
		}
	}
}

const u = frame.Undefined

func TestMomentum_ScenarioLookbackOne(t *testing.T) {
	prices := priceTable(map[string][]float64{"BTC": {100, 110, 99, 99}}, "BTC")
	signals, err := NewMomentum(1).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signals.Columns[0], []frame.Position{u, frame.Long, frame.Short, frame.Short})
}

func TestMomentum_NeverFlat(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"A": {10, 10, 10, 10, 10, 10},
		"B": {10, 11, 12, 11, 10, 12},
	}, "A", "B")
	signals, err := NewMomentum(2).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	for j, col := range signals.Columns {
		for i, p := range col {
			if i < 2 {
				if p != frame.Undefined {
					t.Errorf("col %d bar %d: expected undefined warmup, got %s", j, i, p)
				}
				continue
			}
			if p != frame.Long && p != frame.Short {
				t.Errorf("col %d bar %d: momentum emitted %s", j, i, p)
			}
		}
	}
	// 价格不变时走 else 分支。
	assertSignals(t, signals.Columns[0], []frame.Position{u, u, frame.Short, frame.Short, frame.Short, frame.Short})
	assertSignals(t, signals.Columns[1], []frame.Position{u, u, frame.Long, frame.Short, frame.Short, frame.Long})
}

func TestMomentum_ShortHistoryAllUndefined(t *testing.T) {
	prices := priceTable(map[string][]float64{"A": {1, 2, 3}}, "A")
	signals, err := NewMomentum(20).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signals.Columns[0], []frame.Position{u, u, u})
}

func TestMeanReversion_Thresholds(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"UP":   {10, 10, 10, 10, 13},
		"DOWN": {10, 10, 10, 10, 7},
	}, "UP", "DOWN")
	signals, err := NewMeanReversion(3, 1).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	// 最后窗口 z = ±2/sqrt(3) ≈ ±1.155；此前窗口价格恒定，z 无定义。
	assertSignals(t, signals.Columns[0], []frame.Position{u, u, frame.Flat, frame.Flat, frame.Short})
	assertSignals(t, signals.Columns[1], []frame.Position{u, u, frame.Flat, frame.Flat, frame.Long})

	// 阈值高于 z 时保持空仓。
	signals, err = NewMeanReversion(3, 1.2).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if signals.Columns[0][4] != frame.Flat || signals.Columns[1][4] != frame.Flat {
		t.Errorf("expected flat when |z| below threshold, got %s/%s", signals.Columns[0][4], signals.Columns[1][4])
	}
}

func TestMACrossover(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"UP":   {1, 2, 3, 4, 5, 6},
		"DOWN": {6, 5, 4, 3, 2, 1},
		"FLAT": {5, 5, 5, 5, 5, 5},
	}, "UP", "DOWN", "FLAT")
	signals, err := NewMACrossover(2, 4).Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signals.Columns[0], []frame.Position{u, u, u, frame.Long, frame.Long, frame.Long})
	assertSignals(t, signals.Columns[1], []frame.Position{u, u, u, frame.Short, frame.Short, frame.Short})
	assertSignals(t, signals.Columns[2], []frame.Position{u, u, u, frame.Flat, frame.Flat, frame.Flat})
}

func TestRulesDoNotMutateInput(t *testing.T) {
	prices := priceTable(map[string][]float64{"A": {3, 1, 4, 1, 5, 9, 2, 6}}, "A")
	before := append([]float64(nil), prices.Columns[0]...)
	for _, rule := range []Rule{NewMomentum(2), NewMeanReversion(3, 0.5), NewMACrossover(2, 3)} {
		if _, err := rule.Generate(prices); err != nil {
			t.Fatalf("%s returned error: %v", rule.Name(), err)
		}
	}
	for i := range before {
		if prices.Columns[0][i] != before[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestRules_InvalidParameters(t *testing.T) {
	prices := priceTable(map[string][]float64{"A": {1, 2, 3}}, "A")
	cases := []Rule{
		&Momentum{Lookback: -1},
		&MeanReversion{Window: 1, Threshold: 1},
		&MeanReversion{Window: 5, Threshold: -1},
		&MACrossover{ShortWindow: 0, LongWindow: 3},
		&MACrossover{ShortWindow: 5, LongWindow: 3},
		&MACrossover{ShortWindow: 4, LongWindow: 4},
	}
	for _, rule := range cases {
		if _, err := rule.Generate(prices); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", rule.Name(), err)
		}
	}
}

func TestRules_EmptyInput(t *testing.T) {
	for _, rule := range DefaultRegistry().Rules() {
		if _, err := rule.Generate(frame.Table{}); !errors.Is(err, frame.ErrEmptyInput) {
			t.Errorf("%s: expected ErrEmptyInput, got %v", rule.Name(), err)
		}
	}
}

func TestDefaults(t *testing.T) {
	if m := NewMomentum(0); m.Lookback != 20 {
		t.Errorf("momentum default lookback = %d", m.Lookback)
	}
	if m := NewMeanReversion(0, -1); m.Window != 20 || m.Threshold != 1.5 {
		t.Errorf("mean reversion defaults = %d/%v", m.Window, m.Threshold)
	}
	if m := NewMACrossover(0, 0); m.ShortWindow != 20 || m.LongWindow != 60 {
		t.Errorf("ma crossover defaults = %d/%d", m.ShortWindow, m.LongWindow)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.StrategiesConfig{
		Enabled:       []string{"ma_crossover", "Momentum"},
		Momentum:      config.MomentumConfig{Lookback: 5},
		MACrossover:   config.MACrossoverConfig{ShortWindow: 3, LongWindow: 9},
		MeanReversion: config.MeanReversionConfig{Window: 10, Threshold: 2},
	}
	registry, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	rules := registry.Rules()
	if len(rules) != 2 || rules[0].Name() != "MA Crossover" || rules[1].Name() != "Momentum" {
		t.Fatalf("unexpected rule order: %v", registry.List())
	}
	if m, ok := rules[1].(*Momentum); !ok || m.Lookback != 5 {
		t.Errorf("momentum lookback not applied: %+v", rules[1])
	}
	if names := registry.List(); names[0] != "MA Crossover" || names[1] != "Momentum" {
		t.Errorf("List returned %v", names)
	}

	cfg.Enabled = []string{"rsi"}
	if _, err := FromConfig(cfg); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("expected ErrUnknownRule, got %v", err)
	}
}

func TestMeanReversion_ZeroThresholdKept(t *testing.T) {
	if m := NewMeanReversion(3, 0); m.Threshold != 0 {
		t.Fatalf("threshold 0 replaced by %v", m.Threshold)
	}
	registry, err := FromConfig(config.StrategiesConfig{
		Enabled:       []string{"mean_reversion"},
		MeanReversion: config.MeanReversionConfig{Window: 3, Threshold: 0},
	})
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	rule, _ := registry.Get("Mean Reversion")
	if m := rule.(*MeanReversion); m.Threshold != 0 {
		t.Fatalf("configured threshold 0 became %v", m.Threshold)
	}

	// 阈值为 0 时任何非零偏离都产生信号。
	prices := priceTable(map[string][]float64{"A": {10, 10, 10, 10, 10.1}}, "A")
	signals, err := rule.Generate(prices)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signals.Columns[0], []frame.Position{u, u, frame.Flat, frame.Flat, frame.Short})
}
