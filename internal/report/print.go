// Package report 负责回测结果的展示、导出、持久化与查询。
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"factor-backtest/internal/performance"
)

// Print 以对齐表格输出指标记录，每条序列一行。
func Print(w io.Writer, record performance.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	columns := record.Columns()

	fmt.Fprintf(tw, "Series\t%s\t\n", strings.Join(columns, "\t"))
	for _, row := range record.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatMetric(col, row.Value(col))
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", row.Name, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatMetric(column string, v float64) string {
	switch column {
	case performance.ColumnCAGR, performance.ColumnVolatility, performance.ColumnMaxDrawdown, performance.ColumnWinRate:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}
