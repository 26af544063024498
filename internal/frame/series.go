package frame

import (
	"math"
	"time"
)

// Series 为带名称的时间序列，NaN 表示该点未定义。
type Series struct {
	Name   string
	Index  []time.Time
	Values []float64
}

// Len 返回序列长度（含未定义点）。
func (s Series) Len() int {
	return len(s.Values)
}

// Valid 返回去除 NaN 后的取值副本。
func (s Series) Valid() []float64 {
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
