package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"factor-backtest/internal/performance"
	"factor-backtest/internal/store"
)

// ErrRunNotFound 表示指定编号的回测记录不存在。
var ErrRunNotFound = errors.New("report: 回测记录不存在")

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbols TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	variant TEXT NOT NULL,
	params TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS backtest_metrics (
	run_id INTEGER NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	series TEXT NOT NULL,
	observations INTEGER NOT NULL,
	total_return REAL NOT NULL,
	cagr REAL NOT NULL,
	volatility REAL NOT NULL,
	sharpe REAL NOT NULL,
	sortino REAL NOT NULL,
	calmar REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	win_rate REAL NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Run 为一次回测的持久化记录。
type Run struct {
	ID        int64              `json:"id"`
	Symbols   []string           `json:"symbols"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Params    map[string]any     `json:"params,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   performance.Record `json:"metrics"`
}

// Repository 在 SQLite 中保存回测记录。
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepository 初始化仓储并创建表结构。
func NewRepository(ctx context.Context, st *store.Store, logger *zap.Logger) (*Repository, error) {
	if st == nil {
		return nil, fmt.Errorf("report: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := st.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("report: 初始化表失败: %w", err)
	}
	return &Repository{db: st.DB(), logger: logger}, nil
}

// SaveRun 在同一事务内写入运行记录及其指标行，返回新记录编号。
func (r *Repository) SaveRun(ctx context.Context, run Run) (id int64, err error) {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return 0, fmt.Errorf("report: 序列化参数失败: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("report: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (symbols, start_date, end_date, variant, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.Join(run.Symbols, ","),
		run.Start.Format(time.RFC3339),
		run.End.Format(time.RFC3339),
		string(run.Metrics.Variant),
		string(params),
		run.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("report: 写入回测记录失败: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report: 获取记录编号失败: %w", err)
	}

	for i, row := range run.Metrics.Rows {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO backtest_metrics (run_id, position, series, observations, total_return, cagr, volatility, sharpe, sortino, calmar, max_drawdown, win_rate)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, row.Name, row.Observations, row.TotalReturn, row.CAGR, row.Volatility,
			row.Sharpe, row.Sortino, row.Calmar, row.MaxDrawdown, row.WinRate,
		)
		if err != nil {
			return 0, fmt.Errorf("report: 写入指标 %s 失败: %w", row.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("report: 提交事务失败: %w", err)
	}

	r.logger.Info("回测记录已保存", zap.Int64("run_id", id), zap.Int("series", len(run.Metrics.Rows)))
	return id, nil
}

// ListRuns 按时间倒序返回最近的回测记录。
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, symbols, start_date, end_date, variant, params, created_at FROM backtest_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("report: 查询回测记录失败: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: 读取回测记录失败: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		if runs[i].Metrics.Rows, err = r.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun 按编号返回单条回测记录。
func (r *Repository) GetRun(ctx context.Context, id int64) (Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, symbols, start_date, end_date, variant, params, created_at FROM backtest_runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	if run.Metrics.Rows, err = r.metrics(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (r *Repository) metrics(ctx context.Context, runID int64) ([]performance.Stats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT series, observations, total_return, cagr, volatility, sharpe, sortino, calmar, max_drawdown, win_rate
		 FROM backtest_metrics WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("report: 查询指标失败: %w", err)
	}
	defer rows.Close()

	var stats []performance.Stats
	for rows.Next() {
		var s performance.Stats
		if err := rows.Scan(&s.Name, &s.Observations, &s.TotalReturn, &s.CAGR, &s.Volatility,
			&s.Sharpe, &s.Sortino, &s.Calmar, &s.MaxDrawdown, &s.WinRate); err != nil {
			return nil, fmt.Errorf("report: 解析指标失败: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: 读取指标失败: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                      Run
		symbols, start, end      string
		variant, params, created string
	)
	if err := s.Scan(&run.ID, &symbols, &start, &end, &variant, &params, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("report: 解析回测记录失败: %w", err)
	}
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	run.Start, _ = time.Parse(time.RFC3339, start)
	run.End, _ = time.Parse(time.RFC3339, end)
	ts, err := time.Parse(time.RFC3339, created)
	if err != nil {
		ts = time.Now().UTC()
	}
	run.CreatedAt = ts
	run.Metrics.Variant = performance.Variant(variant)
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return Run{}, fmt.Errorf("report: 解析参数失败: %w", err)
		}
	}
	return run, nil
}
