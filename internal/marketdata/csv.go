package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"factor-backtest/internal/frame"
)

const dateColumn = "Date"

// CSVCache 以 "Date,<标的>..." 宽表格式读写缓存。
type CSVCache struct {
	Dir string
}

func (c *CSVCache) path(key string) string {
	return filepath.Join(c.Dir, key+".csv")
}

// Read 读取缓存，文件不存在时返回 ErrCacheMiss。
func (c *CSVCache) Read(key string) (frame.Table, error) {
	f, err := os.Open(c.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return frame.Table{}, ErrCacheMiss
		}
		return frame.Table{}, fmt.Errorf("打开缓存失败: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Write 写入缓存，必要时创建目录。
func (c *CSVCache) Write(key string, prices frame.Table) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}
	f, err := os.Create(c.path(key))
	if err != nil {
		return fmt.Errorf("创建缓存文件失败: %w", err)
	}
	if err := WriteCSV(f, prices); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV 按日期索引写出宽表，缺失值写为空串。
func WriteCSV(w io.Writer, t frame.Table) error {
	if err := t.CheckShape(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := append([]string{dateColumn}, t.Symbols...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	row := make([]string, len(header))
	for i, ts := range t.Index {
		row[0] = ts.Format(frame.DateLayout)
		for j := range t.Columns {
			row[j+1] = formatFloat(t.Columns[j][i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV 解析 WriteCSV 的输出，空单元格读为 NaN。
func ReadCSV(r io.Reader) (frame.Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return frame.Table{}, fmt.Errorf("解析 CSV 失败: %w", err)
	}
	if len(records) == 0 {
		return frame.Table{}, nil
	}
	header := records[0]
	if len(header) == 0 || header[0] != dateColumn {
		return frame.Table{}, fmt.Errorf("CSV 首列必须为 %s", dateColumn)
	}

	body := records[1:]
	index := make([]time.Time, len(body))
	for i, rec := range body {
		ts, err := time.Parse(frame.DateLayout, rec[0])
		if err != nil {
			return frame.Table{}, fmt.Errorf("第 %d 行日期无效: %w", i+1, err)
		}
		index[i] = ts
	}

	t := frame.NewTable(index, header[1:])
	for i, rec := range body {
		for j := range t.Columns {
			cell := rec[j+1]
			if cell == "" {
				t.Columns[j][i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return frame.Table{}, fmt.Errorf("第 %d 行 %s 数值无效: %w", i+1, t.Symbols[j], err)
			}
			t.Columns[j][i] = v
		}
	}
	return t, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
