package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"factor-backtest/internal/frame"
)

// ErrCacheMiss 表示缓存文件不存在。
var ErrCacheMiss = errors.New("marketdata: 缓存未命中")

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Cache 按键持久化宽表形式的收盘价。
type Cache interface {
	Read(key string) (frame.Table, error)
	Write(key string, prices frame.Table) error
}

// NewCache 根据格式创建缓存，空格式按 CSV 处理。
func NewCache(dir, format string) (Cache, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return &CSVCache{Dir: dir}, nil
	case FormatParquet:
		return &ParquetCache{Dir: dir}, nil
	default:
		return nil, fmt.Errorf("marketdata: 不支持的缓存格式 %q", format)
	}
}

// CacheKey 由标的与日期区间生成文件名安全的缓存键。
func CacheKey(symbols []string, start, end time.Time) string {
	parts := make([]string, 0, len(symbols)+2)
	for _, sym := range symbols {
		parts = append(parts, sanitize(sym))
	}
	parts = append(parts, start.Format("20060102"), end.Format("20060102"))
	return strings.Join(parts, "_")
}

func sanitize(symbol string) string {
	return strings.NewReplacer("/", "-", ":", "-", " ", "").Replace(strings.ToUpper(symbol))
}
