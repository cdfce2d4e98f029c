// Package analytics aggregates spending from visible expense records.
// Outflows are stored negative, so totals are absolute sums over the
// negative rows; hidden records never count.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zyxiao/pocketledger/pkg/db"
)

// Range bounds a report. Zero values mean unbounded.
type Range struct {
	Start time.Time
	End   time.Time
}

// Summary is the headline spending report.
type Summary struct {
	TotalSpending      decimal.Decimal `json:"total_spending"`
	TransactionCount   int             `json:"transaction_count"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
}

// ChannelSpending is one payment platform's share.
type ChannelSpending struct {
	Channel string          `json:"channel"`
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
}

// CategorySpending is one top-level category's share. Records without a
// confirmed or suggested category land under "未分类".
type CategorySpending struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// TrendPoint is one bucket of the spending trend.
type TrendPoint struct {
	Period time.Time       `json:"period"`
	Total  decimal.Decimal `json:"total"`
}

// PostgresRepository runs the aggregation queries.
type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// rangeClause appends the optional time bounds to a base WHERE clause.
func rangeClause(r Range, args []any) (string, []any) {
	clause := ""
	if !r.Start.IsZero() {
		args = append(args, r.Start)
		clause += fmt.Sprintf(" AND transaction_time >= $%d", len(args))
	}
	if !r.End.IsZero() {
		args = append(args, r.End)
		clause += fmt.Sprintf(" AND transaction_time <= $%d", len(args))
	}
	return clause, args
}

func (r *PostgresRepository) Summary(ctx context.Context, rng Range) (*Summary, error) {
	clause, args := rangeClause(rng, nil)
	query := `
		SELECT COALESCE(ABS(SUM(amount)), 0),
		       COUNT(*),
		       COALESCE(ABS(AVG(amount)), 0)
		FROM expenses
		WHERE amount < 0 AND is_hidden = FALSE` + clause

	var s Summary
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.TotalSpending, &s.TransactionCount, &s.AverageTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spending summary: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ByChannel(ctx context.Context, rng Range) ([]ChannelSpending, error) {
	clause, args := rangeClause(rng, nil)
	query := `
		SELECT channel, ABS(SUM(amount)), COUNT(*)
		FROM expenses
		WHERE amount < 0 AND is_hidden = FALSE` + clause + `
		GROUP BY channel
		ORDER BY ABS(SUM(amount)) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute channel spending: %w", err)
	}
	defer rows.Close()

	var out []ChannelSpending
	for rows.Next() {
		var c ChannelSpending
		if err := rows.Scan(&c.Channel, &c.Total, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan channel spending: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ByCategory(ctx context.Context, rng Range) ([]CategorySpending, error) {
	clause, args := rangeClause(rng, nil)
	query := `
		SELECT COALESCE(category_l1, ai_suggestion_l1, '未分类'), ABS(SUM(amount)), COUNT(*)
		FROM expenses
		WHERE amount < 0 AND is_hidden = FALSE` + clause + `
		GROUP BY 1
		ORDER BY ABS(SUM(amount)) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category spending: %w", err)
	}
	defer rows.Close()

	var out []CategorySpending
	for rows.Next() {
		var c CategorySpending
		if err := rows.Scan(&c.Category, &c.Total, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category spending: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// granularities whitelists the date_trunc argument.
var granularities = map[string]bool{"day": true, "week": true, "month": true}

func (r *PostgresRepository) Trend(ctx context.Context, rng Range, granularity string) ([]TrendPoint, error) {
	if !granularities[granularity] {
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}

	clause, args := rangeClause(rng, []any{granularity})
	query := `
		SELECT DATE_TRUNC($1, transaction_time) AS period, ABS(SUM(amount))
		FROM expenses
		WHERE amount < 0 AND is_hidden = FALSE` + clause + `
		GROUP BY period
		ORDER BY period`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spending trend: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Period, &p.Total); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
