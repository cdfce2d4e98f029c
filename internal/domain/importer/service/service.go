// Package service orchestrates the import pipeline: extract, normalize,
// store in one transaction, and write the audit ledger row.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/extractor"
	"github.com/zyxiao/pocketledger/internal/domain/importer/normalizer"
	"github.com/zyxiao/pocketledger/internal/domain/importer/repository"
	"github.com/zyxiao/pocketledger/pkg/metrics"
)

// Audit statuses, from worst to best. The parsing status is reserved for
// files that produced no usable rows at all; individually dropped rows
// stay in the parse_errors counter without touching the status.
const (
	StatusFailedParsing        = "Failed (Parsing)"
	StatusFailedDB             = "Failed (DB Errors)"
	StatusPartialDB            = "Partial (DB Errors)"
	StatusSuccessNoData        = "Success (No Data)"
	StatusSuccess              = "Success"
	StatusPartialSkipped       = "Partial (Skipped/Duplicates)"
	StatusSuccessAllDuplicates = "Success (All Duplicates/Skipped)"
)

// Summary is the per-file import outcome. Total counts rows that survived
// filtering and normalization; rows dropped as inflows or unsettled are in
// none of the counters.
type Summary struct {
	FileName     string          `json:"file_name"`
	Channel      expense.Channel `json:"channel"`
	Status       string          `json:"status"`
	Total        int             `json:"total_records_in_file"`
	Imported     int             `json:"records_imported"`
	Skipped      int             `json:"records_skipped"`
	ParseErrors  int             `json:"parse_errors"`
	InsertErrors int             `json:"insert_errors"`
}

type Service struct {
	repo   repository.Repository
	logger *slog.Logger
}

func NewService(repo repository.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ImportFile runs the whole pipeline for one export file. The returned
// summary is always populated and an audit row is always written, even
// when the import itself failed.
func (s *Service) ImportFile(ctx context.Context, path string, ch expense.Channel) (*Summary, error) {
	sum := &Summary{FileName: filepath.Base(path), Channel: ch}

	ruleset, ok := normalizer.RulesetFor(ch)
	if !ok {
		err := fmt.Errorf("%w: %q", extractor.ErrUnsupportedChannel, ch)
		s.finish(ctx, sum, StatusFailedParsing, err.Error())
		return sum, err
	}

	res, err := extractor.ExtractFile(path, ch)
	if err != nil {
		s.finish(ctx, sum, StatusFailedParsing, err.Error())
		return sum, err
	}
	sum.ParseErrors = len(res.BadRows)
	for _, bad := range res.BadRows {
		s.logger.Warn("unreadable row",
			slog.String("file", sum.FileName),
			slog.Int("row", bad.Row),
			slog.String("reason", bad.Reason))
	}

	records := s.normalize(res.Records, ruleset, ch, sum)
	sum.Total = len(records)

	if sum.Total == 0 {
		status := StatusSuccessNoData
		if sum.ParseErrors > 0 {
			status = StatusFailedParsing
		}
		s.finish(ctx, sum, status, "")
		return sum, nil
	}

	txErr := s.repo.WithinTx(ctx, func(tx repository.ImportTx) error {
		return s.importBatch(ctx, tx, records, sum)
	})
	if txErr != nil {
		// The transaction rolled back; nothing in this file landed.
		sum.Imported = 0
		s.finish(ctx, sum, StatusFailedDB, txErr.Error())
		return sum, fmt.Errorf("import of %s failed: %w", sum.FileName, txErr)
	}

	s.finish(ctx, sum, deriveStatus(sum), "")
	return sum, nil
}

// History returns recent import audit rows, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]repository.Audit, error) {
	return s.repo.ListAudits(ctx, limit)
}

// normalize filters and converts raw rows, counting normalization failures
// as parse errors.
func (s *Service) normalize(raw []extractor.RawRecord, rs normalizer.Ruleset, ch expense.Channel, sum *Summary) []*expense.Record {
	var records []*expense.Record
	for _, r := range raw {
		if !rs.Eligible(r) {
			continue
		}
		rec, err := normalizer.Normalize(r, ch)
		if err != nil {
			sum.ParseErrors++
			s.logger.Warn("row failed normalization",
				slog.String("file", sum.FileName),
				slog.String("txn_id", r.ExternalTransactionID),
				slog.Any("error", err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// importBatch inserts records one by one. Duplicates and row-level
// database rejections are counted; any other error aborts the batch.
func (s *Service) importBatch(ctx context.Context, tx repository.ImportTx, records []*expense.Record, sum *Summary) error {
	for _, rec := range records {
		dup, err := tx.HasDuplicate(ctx, rec)
		if err != nil {
			// Fail open: the unique constraint still backstops us.
			s.logger.Warn("duplicate check failed",
				slog.String("txn_id", rec.ExternalTransactionID),
				slog.Any("error", err))
		}
		if dup {
			sum.Skipped++
			continue
		}

		_, err = tx.InsertExpense(ctx, rec)
		switch {
		case err == nil:
			sum.Imported++
		case errors.Is(err, repository.ErrDuplicateKey):
			sum.Skipped++
		case repository.IsRowError(err):
			sum.InsertErrors++
			s.logger.Error("row rejected by database",
				slog.String("txn_id", rec.ExternalTransactionID),
				slog.Any("error", err))
		default:
			return err
		}
	}
	return nil
}

// deriveStatus picks the audit status for a committed batch. Dropped rows
// never fail a batch that landed; they are already counted in ParseErrors.
func deriveStatus(sum *Summary) string {
	switch {
	case sum.InsertErrors > 0 && sum.Imported == 0:
		return StatusFailedDB
	case sum.InsertErrors > 0:
		return StatusPartialDB
	case sum.Imported == sum.Total:
		return StatusSuccess
	case sum.Imported > 0:
		return StatusPartialSkipped
	default:
		return StatusSuccessAllDuplicates
	}
}

// finish stamps the status, records the audit row, and updates metrics.
// Audit failures are logged rather than surfaced so they never mask the
// import outcome.
func (s *Service) finish(ctx context.Context, sum *Summary, status, detail string) {
	sum.Status = status

	audit := &repository.Audit{
		FileName:     sum.FileName,
		Channel:      sum.Channel,
		Status:       status,
		TotalRecords: sum.Total,
		Imported:     sum.Imported,
		Skipped:      sum.Skipped,
		ParseErrors:  sum.ParseErrors,
		InsertErrors: sum.InsertErrors,
	}
	if detail != "" {
		audit.ErrorDetail = &detail
	}
	if err := s.repo.RecordAudit(ctx, audit); err != nil {
		s.logger.Error("failed to record import audit",
			slog.String("file", sum.FileName),
			slog.Any("error", err))
	}

	metrics.ObserveImport(string(sum.Channel), status, sum.Imported, sum.Skipped)
	s.logger.Info("import finished",
		slog.String("file", sum.FileName),
		slog.String("channel", string(sum.Channel)),
		slog.String("status", status),
		slog.Int("total", sum.Total),
		slog.Int("imported", sum.Imported),
		slog.Int("skipped", sum.Skipped),
		slog.Int("parse_errors", sum.ParseErrors),
		slog.Int("insert_errors", sum.InsertErrors))
}
