package frame

import (
	"fmt"
	"math"
	"time"
)

// Position 表示单根K线内持有的方向。
type Position int8

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1

	// Undefined 表示历史不足、信号尚未定义。
	Undefined Position = math.MinInt8
)

// Defined 判断信号是否已定义。
func (p Position) Defined() bool {
	return p == Short || p == Flat || p == Long
}

// Float 返回参与运算的数值，未定义时为 NaN。
func (p Position) Float() float64 {
	if !p.Defined() {
		return math.NaN()
	}
	return float64(p)
}

func (p Position) String() string {
	switch p {
	case Short:
		return "short"
	case Flat:
		return "flat"
	case Long:
		return "long"
	default:
		return "undefined"
	}
}

// SignalTable 与价格表同形，每格为一个 Position。
type SignalTable struct {
	Index   []time.Time
	Symbols []string
	Columns [][]Position
}

// NewSignalTable 创建全部为 Undefined 的信号表。
func NewSignalTable(index []time.Time, symbols []string) SignalTable {
	t := SignalTable{
		Index:   append([]time.Time(nil), index...),
		Symbols: append([]string(nil), symbols...),
		Columns: make([][]Position, len(symbols)),
	}
	for j := range t.Columns {
		col := make([]Position, len(index))
		for i := range col {
			col[i] = Undefined
		}
		t.Columns[j] = col
	}
	return t
}

// Rows 返回行数。
func (t SignalTable) Rows() int {
	return len(t.Index)
}

// Cols 返回列数。
func (t SignalTable) Cols() int {
	return len(t.Symbols)
}

// Column 按标的名称返回信号列。
func (t SignalTable) Column(symbol string) ([]Position, bool) {
	for j, s := range t.Symbols {
		if s == symbol {
			return t.Columns[j], true
		}
	}
	return nil, false
}

// Clone 深拷贝信号表。
func (t SignalTable) Clone() SignalTable {
	out := NewSignalTable(t.Index, t.Symbols)
	for j := range t.Columns {
		copy(out.Columns[j], t.Columns[j])
	}
	return out
}

// AlignedWith 校验信号表与价格表索引、标的、列长度完全一致。
func (t SignalTable) AlignedWith(prices Table) error {
	if !SameIndex(t.Index, prices.Index) {
		return fmt.Errorf("%w: 信号索引 %d 行，价格索引 %d 行或日期不一致", ErrShapeMismatch, len(t.Index), len(prices.Index))
	}
	if !SameSymbols(t.Symbols, prices.Symbols) {
		return fmt.Errorf("%w: 信号标的 %v，价格标的 %v", ErrShapeMismatch, t.Symbols, prices.Symbols)
	}
	if len(t.Columns) != len(t.Symbols) {
		return fmt.Errorf("%w: 信号列数 %d", ErrShapeMismatch, len(t.Columns))
	}
	for j, col := range t.Columns {
		if len(col) != len(t.Index) {
			return fmt.Errorf("%w: 信号列 %s 长度 %d", ErrShapeMismatch, t.Symbols[j], len(col))
		}
	}
	return nil
}
