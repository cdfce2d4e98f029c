package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/pkg/db"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(ImportTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&importTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordAudit(ctx context.Context, a *Audit) error {
	query := `
		INSERT INTO import_sources (
			file_name, channel, status, total_records_in_file,
			records_imported, records_skipped, parse_errors, insert_errors,
			error_detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, imported_at`

	err := r.pool.QueryRow(ctx, query,
		a.FileName, a.Channel, a.Status, a.TotalRecords,
		a.Imported, a.Skipped, a.ParseErrors, a.InsertErrors,
		a.ErrorDetail,
	).Scan(&a.ID, &a.ImportedAt)
	if err != nil {
		return fmt.Errorf("failed to record import audit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAudits(ctx context.Context, limit int) ([]Audit, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, file_name, channel, status, total_records_in_file,
		       records_imported, records_skipped, parse_errors, insert_errors,
		       error_detail, imported_at
		FROM import_sources
		ORDER BY imported_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import audits: %w", err)
	}
	defer rows.Close()

	var audits []Audit
	for rows.Next() {
		var a Audit
		if err := rows.Scan(
			&a.ID, &a.FileName, &a.Channel, &a.Status, &a.TotalRecords,
			&a.Imported, &a.Skipped, &a.ParseErrors, &a.InsertErrors,
			&a.ErrorDetail, &a.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import audits: %w", err)
	}
	return audits, nil
}

// importTx wraps a pgx transaction. Inserts run inside savepoints so a
// failed row leaves the enclosing transaction usable.
type importTx struct {
	tx pgx.Tx
}

func (t *importTx) HasDuplicate(ctx context.Context, rec *expense.Record) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM expenses
			WHERE channel = $1
			  AND transaction_time = $2
			  AND amount = $3
			  AND external_transaction_id = $4
		)`

	var exists bool
	err := t.tx.QueryRow(ctx, query,
		rec.Channel, rec.TransactionTime, rec.Amount, rec.ExternalTransactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return exists, nil
}

func (t *importTx) InsertExpense(ctx context.Context, rec *expense.Record) (uuid.UUID, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to open savepoint: %w", err)
	}

	query := `
		INSERT INTO expenses (
			transaction_time, amount, currency, channel,
			source_raw_description, description_for_ai,
			external_transaction_id, external_merchant_id,
			source_provided_category, source_payment_method,
			source_transaction_status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	var id uuid.UUID
	err = sp.QueryRow(ctx, query,
		rec.TransactionTime, rec.Amount, rec.Currency, rec.Channel,
		rec.SourceRawDescription, rec.DescriptionForAI,
		rec.ExternalTransactionID, rec.ExternalMerchantID,
		rec.SourceProvidedCategory, rec.SourcePaymentMethod,
		rec.SourceTransactionStatus, rec.Notes,
	).Scan(&id)
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateKey, rec.ExternalTransactionID)
		}
		return uuid.Nil, fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return id, nil
}

// IsRowError reports whether err came from the database rejecting one row
// rather than the connection or transaction failing outright. Row errors
// are counted and skipped; anything else aborts the batch.
func IsRowError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
