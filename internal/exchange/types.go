package exchange

import "time"

// TimeframeDaily 为回测使用的日线周期。
const TimeframeDaily = "1d"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
