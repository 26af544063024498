package report

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"factor-backtest/internal/backtest"
	"factor-backtest/internal/frame"
	"factor-backtest/internal/marketdata"
	"factor-backtest/internal/performance"
)

// 导出文件名。
const (
	EquityFile    = "equity_curves.csv"
	ReturnsFile   = "returns.csv"
	DrawdownsFile = "drawdowns.csv"
)

// SeriesTable 将共享同一索引的序列组合为宽表，列名取序列名。
func SeriesTable(series []frame.Series) (frame.Table, error) {
	if len(series) == 0 {
		return frame.Table{}, frame.ErrEmptyInput
	}
	names := make([]string, len(series))
	for j, s := range series {
		if !frame.SameIndex(s.Index, series[0].Index) || len(s.Values) != len(s.Index) {
			return frame.Table{}, fmt.Errorf("%w: 序列 %s 索引不一致", frame.ErrShapeMismatch, s.Name)
		}
		names[j] = s.Name
	}
	t := frame.NewTable(series[0].Index, names)
	for j, s := range series {
		copy(t.Columns[j], s.Values)
	}
	return t, nil
}

// WriteTableCSV 以日期为索引列写出宽表。
func WriteTableCSV(path string, t frame.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: 创建导出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: 创建导出文件失败: %w", err)
	}
	if err := marketdata.WriteCSV(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: 写出 %s 失败: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Export 将净值曲线、收益率与回撤写入目录，返回生成的文件路径。
func Export(dir string, rep backtest.Report) ([]string, error) {
	drawdowns := make([]frame.Series, len(rep.Returns))
	for i, s := range rep.Returns {
		drawdowns[i] = performance.Drawdown(s)
	}

	outputs := []struct {
		file   string
		series []frame.Series
	}{
		{EquityFile, rep.Equity},
		{ReturnsFile, rep.Returns},
		{DrawdownsFile, drawdowns},
	}

	var (
		paths []string
		errs  error
	)
	for _, out := range outputs {
		t, err := SeriesTable(out.series)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("report: %s: %w", out.file, err))
			continue
		}
		path := filepath.Join(dir, out.file)
		if err := WriteTableCSV(path, t); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}
