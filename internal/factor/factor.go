// Package factor 将价格表转换为离散持仓信号表。
//
// 每个规则都是纯函数：只读取输入价格表，逐列独立计算，返回新分配的信号表。
// 历史不足的区域写入 frame.Undefined。
package factor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"factor-backtest/internal/config"
	"factor-backtest/internal/frame"
)

// ErrInvalidParameter 表示规则参数非法。
var ErrInvalidParameter = errors.New("factor: 参数非法")

// ErrUnknownRule 表示配置中引用了未注册的规则。
var ErrUnknownRule = errors.New("factor: 未知规则")

// Rule 为可互换的因子规则。
type Rule interface {
	Name() string
	Generate(prices frame.Table) (frame.SignalTable, error)
}

// 配置中使用的规则键。
const (
	KeyMomentum      = "momentum"
	KeyMeanReversion = "mean_reversion"
	KeyMACrossover   = "ma_crossover"
)

// Registry 维护按注册顺序排列的规则集合。
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry 创建空的规则注册表。
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register 以 Name() 为键注册规则，重复注册会覆盖旧规则但保留原顺序。
func (r *Registry) Register(rule Rule) {
	name := rule.Name()
	if _, exists := r.rules[name]; !exists {
		r.order = append(r.order, name)
	}
	r.rules[name] = rule
}

// Get 按名称查找规则。
func (r *Registry) Get(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// Rules 按注册顺序返回全部规则。
func (r *Registry) Rules() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.rules[name])
	}
	return out
}

// List 返回排序后的规则名称。
func (r *Registry) List() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Len 返回已注册规则数量。
func (r *Registry) Len() int {
	return len(r.order)
}

// FromConfig 依据配置构建注册表，保持 enabled 列表中的顺序。
func FromConfig(cfg config.StrategiesConfig) (*Registry, error) {
	registry := NewRegistry()
	for _, key := range cfg.Enabled {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeyMomentum:
			registry.Register(NewMomentum(cfg.Momentum.Lookback))
		case KeyMeanReversion:
			registry.Register(NewMeanReversion(cfg.MeanReversion.Window, cfg.MeanReversion.Threshold))
		case KeyMACrossover:
			registry.Register(NewMACrossover(cfg.MACrossover.ShortWindow, cfg.MACrossover.LongWindow))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, key)
		}
	}
	return registry, nil
}

// DefaultRegistry 返回使用默认参数的三种规则。
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(NewMomentum(0))
	registry.Register(NewMeanReversion(0, -1))
	registry.Register(NewMACrossover(0, 0))
	return registry
}

// generate 对每一列调用 fn，负责公共的输入校验与表分配。
func generate(prices frame.Table, fn func(col []float64, out []frame.Position)) (frame.SignalTable, error) {
	if prices.Empty() {
		return frame.SignalTable{}, frame.ErrEmptyInput
	}
	if err := prices.CheckShape(); err != nil {
		return frame.SignalTable{}, err
	}

	signals := frame.NewSignalTable(prices.Index, prices.Symbols)
	for j, col := range prices.Columns {
		fn(col, signals.Columns[j])
	}
	return signals, nil
}
