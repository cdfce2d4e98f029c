// Package repository persists imported expenses and their audit trail.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

// ErrDuplicateKey reports an insert rejected by the external transaction
// id unique constraint.
var ErrDuplicateKey = errors.New("repository: duplicate external transaction id")

// Audit is one row of the import ledger. One audit row is written per
// processed file, whatever the outcome.
type Audit struct {
	ID           uuid.UUID       `json:"id"`
	FileName     string          `json:"file_name"`
	Channel      expense.Channel `json:"channel"`
	Status       string          `json:"status"`
	TotalRecords int             `json:"total_records_in_file"`
	Imported     int             `json:"records_imported"`
	Skipped      int             `json:"records_skipped"`
	ParseErrors  int             `json:"parse_errors"`
	InsertErrors int             `json:"insert_errors"`
	ErrorDetail  *string         `json:"error_detail,omitempty"`
	ImportedAt   time.Time       `json:"imported_at"`
}

// ImportTx is the per-file transaction surface. Every call is isolated so
// one bad row cannot poison the rest of the batch.
type ImportTx interface {
	// HasDuplicate checks the in-table compound key before inserting.
	HasDuplicate(ctx context.Context, rec *expense.Record) (bool, error)
	// InsertExpense stores rec and returns its id. A unique constraint
	// conflict yields ErrDuplicateKey.
	InsertExpense(ctx context.Context, rec *expense.Record) (uuid.UUID, error)
}

// Repository is the storage surface of the import pipeline.
type Repository interface {
	// WithinTx runs fn inside one transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ImportTx) error) error
	// RecordAudit writes the import ledger row. It runs outside WithinTx
	// so the audit survives a rolled back batch.
	RecordAudit(ctx context.Context, a *Audit) error
	// ListAudits returns the most recent ledger rows, newest first.
	ListAudits(ctx context.Context, limit int) ([]Audit, error)
}
