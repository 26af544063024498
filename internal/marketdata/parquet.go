package marketdata

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"factor-backtest/internal/frame"
)

// CloseRecord 是 Parquet 缓存的长表结构。
type CloseRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Symbol string  `parquet:"symbol"`
	Close  float64 `parquet:"close"`
}

// ParquetCache 以 (date, symbol, close) 长表格式读写缓存。
type ParquetCache struct {
	Dir string
}

func (c *ParquetCache) path(key string) string {
	return filepath.Join(c.Dir, key+".parquet")
}

// Read 读取缓存并转为宽表，文件不存在时返回 ErrCacheMiss。
func (c *ParquetCache) Read(key string) (frame.Table, error) {
	path := c.path(key)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return frame.Table{}, ErrCacheMiss
	}
	records, err := parquet.ReadFile[CloseRecord](path)
	if err != nil {
		return frame.Table{}, fmt.Errorf("读取 parquet 缓存失败: %w", err)
	}
	return fromRecords(records), nil
}

// Write 将宽表展开为长表写入，缺失值不落盘。
func (c *ParquetCache) Write(key string, prices frame.Table) error {
	if err := prices.CheckShape(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}
	records := make([]CloseRecord, 0, prices.Rows()*prices.Cols())
	for j, sym := range prices.Symbols {
		for i, ts := range prices.Index {
			v := prices.Columns[j][i]
			if math.IsNaN(v) {
				continue
			}
			records = append(records, CloseRecord{Date: ts.UnixMilli(), Symbol: sym, Close: v})
		}
	}
	if err := parquet.WriteFile(c.path(key), records); err != nil {
		return fmt.Errorf("写入 parquet 缓存失败: %w", err)
	}
	return nil
}

// fromRecords 按标的首次出现顺序还原列，日期取并集并升序。
func fromRecords(records []CloseRecord) frame.Table {
	var symbols []string
	seenSym := make(map[string]int)
	seenDate := make(map[int64]struct{})
	for _, r := range records {
		if _, ok := seenSym[r.Symbol]; !ok {
			seenSym[r.Symbol] = len(symbols)
			symbols = append(symbols, r.Symbol)
		}
		seenDate[r.Date] = struct{}{}
	}

	dates := make([]int64, 0, len(seenDate))
	for d := range seenDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	row := make(map[int64]int, len(dates))
	index := make([]time.Time, len(dates))
	for i, d := range dates {
		row[d] = i
		index[i] = time.UnixMilli(d).UTC()
	}

	t := frame.NewTable(index, symbols)
	for j := range t.Columns {
		for i := range t.Columns[j] {
			t.Columns[j][i] = math.NaN()
		}
	}
	for _, r := range records {
		t.Columns[seenSym[r.Symbol]][row[r.Date]] = r.Close
	}
	return t
}
