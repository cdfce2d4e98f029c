package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zyxiao/pocketledger/pkg/db"
)

const recordColumns = `
	id, transaction_time, amount, currency, channel,
	source_raw_description, description_for_ai,
	category_l1, category_l2, ai_suggestion_l1, ai_suggestion_l2,
	is_classified_by_ai, is_confirmed_by_user, is_hidden, notes,
	external_transaction_id, external_merchant_id,
	source_provided_category, source_payment_method,
	source_transaction_status, imported_at, updated_at`

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.TransactionTime, &r.Amount, &r.Currency, &r.Channel,
		&r.SourceRawDescription, &r.DescriptionForAI,
		&r.CategoryL1, &r.CategoryL2, &r.AISuggestionL1, &r.AISuggestionL2,
		&r.IsClassifiedByAI, &r.IsConfirmedByUser, &r.IsHidden, &r.Notes,
		&r.ExternalTransactionID, &r.ExternalMerchantID,
		&r.SourceProvidedCategory, &r.SourcePaymentMethod,
		&r.SourceTransactionStatus, &r.ImportedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	return &r, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `SELECT` + recordColumns + ` FROM expenses WHERE id = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, id))
}

// listWhere builds the WHERE clause shared by List and its count query.
func listWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Channel != "" {
		add("channel = $%d", filter.Channel)
	}
	if filter.StartDate != nil {
		add("transaction_time >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("transaction_time <= $%d", *filter.EndDate)
	}
	if filter.Hidden != nil {
		add("is_hidden = $%d", *filter.Hidden)
	}
	if filter.Unclassified {
		conds = append(conds, "category_l1 IS NULL AND ai_suggestion_l1 IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter, opts ListOptions) ([]Record, int, error) {
	opts = opts.Normalize()
	where, args := listWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM expenses` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	// Sort column and order come from a whitelist, not the caller.
	query := fmt.Sprintf(`SELECT%s FROM expenses%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		recordColumns, where, opts.SortBy, opts.SortOrder, len(args)+1, len(args)+2)
	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read expenses: %w", err)
	}
	return records, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Record, error) {
	sets := []string{"updated_at = NOW()"}
	var args []any

	set := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.CategoryL1 != nil {
		set("category_l1", nullable(*p.CategoryL1))
	}
	if p.CategoryL2 != nil {
		set("category_l2", nullable(*p.CategoryL2))
	}
	if p.Notes != nil {
		set("notes", nullable(*p.Notes))
	}
	if p.IsHidden != nil {
		set("is_hidden", *p.IsHidden)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE expenses SET %s WHERE id = $%d RETURNING%s`,
		strings.Join(sets, ", "), len(args), recordColumns)
	return scanRecord(r.pool.QueryRow(ctx, query, args...))
}

func (r *PostgresRepository) Confirm(ctx context.Context, id uuid.UUID, l1, l2 string) (*Record, error) {
	query := `
		UPDATE expenses
		SET category_l1 = $1,
		    category_l2 = $2,
		    is_confirmed_by_user = TRUE,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, l1, nullable(l2), id))
}

func (r *PostgresRepository) SetHidden(ctx context.Context, ids []uuid.UUID, hidden bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE expenses SET is_hidden = $1, updated_at = NOW() WHERE id = ANY($2)`
	tag, err := r.pool.Exec(ctx, query, hidden, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to update visibility: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expenses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ClearCategories(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE expenses
		SET category_l1 = NULL,
		    category_l2 = NULL,
		    is_confirmed_by_user = FALSE,
		    updated_at = NOW()
		WHERE id = ANY($1)`
	tag, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to clear categories: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ListUnclassified(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	query := `SELECT` + recordColumns + `
		FROM expenses
		WHERE category_l1 IS NULL
		  AND ai_suggestion_l1 IS NULL
		  AND is_hidden = FALSE
		ORDER BY transaction_time ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified expenses: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unclassified expenses: %w", err)
	}
	return records, nil
}

func (r *PostgresRepository) SaveSuggestion(ctx context.Context, id uuid.UUID, s Suggestion) error {
	query := `
		UPDATE expenses
		SET ai_suggestion_l1 = $1,
		    ai_suggestion_l2 = $2,
		    is_classified_by_ai = TRUE,
		    updated_at = NOW()
		WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, s.L1, nullable(s.L2), id)
	if err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
