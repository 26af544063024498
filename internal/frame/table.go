package frame

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyInput 表示价格表没有任何行或列，流水线应提前结束。
	ErrEmptyInput = errors.New("frame: 无可用数据")
	// ErrShapeMismatch 表示两张表的索引或标的不一致。
	ErrShapeMismatch = errors.New("frame: 表结构不一致")
	// ErrInvalidPrice 表示价格缺失或非正。
	ErrInvalidPrice = errors.New("frame: 价格无效")
	// ErrUnsortedIndex 表示时间索引未严格升序。
	ErrUnsortedIndex = errors.New("frame: 时间索引必须严格升序")
)

// Table 是按时间索引 × 标的组织的浮点表，按列存储。
// 价格表、收益表与净值曲线共用此结构。
type Table struct {
	Index   []time.Time
	Symbols []string
	Columns [][]float64
}

// NewTable 创建零值填充的表，索引与标的会被复制。
func NewTable(index []time.Time, symbols []string) Table {
	t := Table{
		Index:   append([]time.Time(nil), index...),
		Symbols: append([]string(nil), symbols...),
		Columns: make([][]float64, len(symbols)),
	}
	for j := range t.Columns {
		t.Columns[j] = make([]float64, len(index))
	}
	return t
}

// Rows 返回行数。
func (t Table) Rows() int {
	return len(t.Index)
}

// Cols 返回列数。
func (t Table) Cols() int {
	return len(t.Symbols)
}

// Empty 判断表是否没有行或列。
func (t Table) Empty() bool {
	return t.Rows() == 0 || t.Cols() == 0
}

// Column 按标的名称返回列数据。
func (t Table) Column(symbol string) ([]float64, bool) {
	for j, s := range t.Symbols {
		if s == symbol {
			return t.Columns[j], true
		}
	}
	return nil, false
}

// Series 将第 j 列导出为独立序列。
func (t Table) Series(j int, name string) Series {
	return Series{
		Name:   name,
		Index:  append([]time.Time(nil), t.Index...),
		Values: append([]float64(nil), t.Columns[j]...),
	}
}

// Clone 深拷贝整张表。
func (t Table) Clone() Table {
	out := NewTable(t.Index, t.Symbols)
	for j := range t.Columns {
		copy(out.Columns[j], t.Columns[j])
	}
	return out
}

// CheckShape 校验列数与每列长度是否与索引一致。
func (t Table) CheckShape() error {
	if len(t.Columns) != len(t.Symbols) {
		return fmt.Errorf("%w: %d 个标的对应 %d 列", ErrShapeMismatch, len(t.Symbols), len(t.Columns))
	}
	for j, col := range t.Columns {
		if len(col) != len(t.Index) {
			return fmt.Errorf("%w: 列 %s 长度 %d，索引长度 %d", ErrShapeMismatch, t.Symbols[j], len(col), len(t.Index))
		}
	}
	return nil
}

// ValidatePrices 校验价格表满足核心输入约定。
func ValidatePrices(t Table) error {
	if t.Empty() {
		return ErrEmptyInput
	}
	if err := t.CheckShape(); err != nil {
		return err
	}
	if err := checkIndex(t.Index); err != nil {
		return err
	}
	for j, col := range t.Columns {
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: %s@%s = %v", ErrInvalidPrice, t.Symbols[j], t.Index[i].Format(DateLayout), v)
			}
		}
	}
	return nil
}

// DropIncomplete 删除任一列缺失（NaN）的行，返回新表。
func DropIncomplete(t Table) Table {
	keep := make([]int, 0, t.Rows())
	for i := range t.Index {
		complete := true
		for j := range t.Columns {
			if math.IsNaN(t.Columns[j][i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	index := make([]time.Time, len(keep))
	for k, i := range keep {
		index[k] = t.Index[i]
	}
	out := NewTable(index, t.Symbols)
	for j := range t.Columns {
		for k, i := range keep {
			out.Columns[j][k] = t.Columns[j][i]
		}
	}
	return out
}

// SameIndex 判断两个时间索引是否逐项相等。
func SameIndex(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// SameSymbols 判断两个标的列表是否逐项相等。
func SameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkIndex(index []time.Time) error {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return fmt.Errorf("%w: %s 之后出现 %s", ErrUnsortedIndex,
				index[i-1].Format(DateLayout), index[i].Format(DateLayout))
		}
	}
	return nil
}

// DateLayout 为缓存文件与日志使用的日期格式。
const DateLayout = "2006-01-02"
