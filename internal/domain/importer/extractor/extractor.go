// Package extractor locates the tabular section of a platform export and
// turns it into raw string records. Platform exports bury the table under
// preamble text and, for Alipay, above a footer block, so the header row is
// discovered by keyword scan instead of assuming a fixed offset.
package extractor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

var (
	// ErrUnsupportedChannel reports a channel with no extractor.
	ErrUnsupportedChannel = errors.New("extractor: unsupported channel")
	// ErrHeaderNotFound reports content with no recognizable header row.
	ErrHeaderNotFound = errors.New("extractor: header row not found")
	// ErrMissingColumn reports a header row lacking a required column.
	ErrMissingColumn = errors.New("extractor: required column missing")
)

// RawRecord is one data row with platform vocabulary still intact. All
// fields are verbatim cell text; interpretation happens downstream.
type RawRecord struct {
	TransactionTime       string
	Direction             string
	Status                string
	Amount                string
	Counterparty          string
	Item                  string
	ExternalTransactionID string
	ExternalMerchantID    string
	PaymentMethod         string
	ProvidedCategory      string
	Notes                 string
}

// RowError describes one data row that could not be extracted.
type RowError struct {
	Row    int // 1-based position within the data section
	Reason string
}

// Result is the outcome of extracting one file. Format names the source
// container, either "text" or "xlsx".
type Result struct {
	Records []RawRecord
	BadRows []RowError
	Format  string
}

// Extractor turns decoded file content into raw records for one channel.
type Extractor interface {
	Channel() expense.Channel
	Extract(content string) (*Result, error)
}

// ForChannel returns the extractor for ch.
func ForChannel(ch expense.Channel) (Extractor, error) {
	switch ch {
	case expense.ChannelWeChatPay:
		return &wechatExtractor{}, nil
	case expense.ChannelAlipay:
		return &alipayExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChannel, ch)
	}
}

// findHeaderLine returns the index of the first line containing every
// keyword, or -1.
func findHeaderLine(lines []string, keywords ...string) int {
	for i, line := range lines {
		ok := true
		for _, kw := range keywords {
			if !strings.Contains(line, kw) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// detectDelimiter picks the separator of the header row. Exports are
// comma separated except for Alipay's tab-separated variant.
func detectDelimiter(header string) rune {
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return '\t'
	}
	return ','
}

// columnIndex maps cleaned header names to their positions.
type columnIndex map[string]int

func buildColumnIndex(cells []string) columnIndex {
	idx := make(columnIndex, len(cells))
	for i, c := range cells {
		idx[cleanCell(c)] = i
	}
	return idx
}

// require returns the position of name or ErrMissingColumn.
func (ci columnIndex) require(name string) (int, error) {
	i, ok := ci[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return i, nil
}

// cell returns the cleaned value at position i, tolerating short rows for
// optional trailing columns.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanCell(row[i])
}

// optional returns the position of name or -1.
func (ci columnIndex) optional(name string) int {
	if i, ok := ci[name]; ok {
		return i
	}
	return -1
}

// cleanCell trims the padding Alipay leaves around values, including the
// trailing tab it appends to comma-separated cells.
func cleanCell(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\t"))
}

// dataRow is one parsed row tagged with its 1-based read position in the
// data section, so row errors reported before and after parsing share one
// numbering.
type dataRow struct {
	pos   int
	cells []string
}

// parseRows reads the data section with a tolerant CSV reader. Row errors
// are collected instead of aborting the file.
func parseRows(section string, comma rune) ([]dataRow, []RowError) {
	r := csv.NewReader(strings.NewReader(section))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows []dataRow
	var bad []RowError
	for n := 1; ; n++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			bad = append(bad, RowError{Row: n, Reason: err.Error()})
			continue
		}
		rows = append(rows, dataRow{pos: n, cells: row})
	}
	return rows, bad
}
