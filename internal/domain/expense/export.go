package expense

import (
	"context"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// exportRow is the flattened CSV shape of a record.
type exportRow struct {
	TransactionTime       string `csv:"transaction_time"`
	Amount                string `csv:"amount"`
	Currency              string `csv:"currency"`
	Channel               string `csv:"channel"`
	Description           string `csv:"description"`
	CategoryL1            string `csv:"category_l1"`
	CategoryL2            string `csv:"category_l2"`
	Confirmed             bool   `csv:"confirmed"`
	Hidden                bool   `csv:"hidden"`
	Notes                 string `csv:"notes"`
	ExternalTransactionID string `csv:"external_transaction_id"`
}

const exportPageSize = 500

// ExportCSV streams the filtered expenses as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter ListFilter) error {
	opts := ListOptions{Page: 1, PerPage: exportPageSize}

	rows := []exportRow{}
	for {
		records, total, err := s.repo.List(ctx, filter, opts.Normalize())
		if err != nil {
			return fmt.Errorf("failed to export expenses: %w", err)
		}
		for _, rec := range records {
			rows = append(rows, toExportRow(rec))
		}
		if opts.Page*exportPageSize >= total || len(records) == 0 {
			break
		}
		opts.Page++
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func toExportRow(rec Record) exportRow {
	row := exportRow{
		TransactionTime:       rec.TransactionTime.Format(TimeLayout),
		Amount:                rec.Amount.StringFixed(2),
		Currency:              rec.Currency,
		Channel:               string(rec.Channel),
		Description:           rec.DescriptionForAI,
		Confirmed:             rec.IsConfirmedByUser,
		Hidden:                rec.IsHidden,
		ExternalTransactionID: rec.ExternalTransactionID,
	}
	if rec.CategoryL1 != nil {
		row.CategoryL1 = *rec.CategoryL1
	}
	if rec.CategoryL2 != nil {
		row.CategoryL2 = *rec.CategoryL2
	}
	if rec.Notes != nil {
		row.Notes = *rec.Notes
	}
	return row
}
