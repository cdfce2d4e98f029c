package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/reader"
)

// columnSpec describes where each record field lives in a workbook table.
type columnSpec struct {
	headerKeywords []string
	required       []string

	timeCol, directionCol, statusCol, amountCol     string
	counterpartyCol, itemCol, txnIDCol              string
	merchantIDCol, methodCol, categoryCol, notesCol string
}

var wechatSpec = columnSpec{
	headerKeywords:  []string{wcColTime, wcColCounterparty},
	required:        []string{wcColTime, wcColAmount, wcColDirection, wcColStatus, wcColTxnID},
	timeCol:         wcColTime,
	directionCol:    wcColDirection,
	statusCol:       wcColStatus,
	amountCol:       wcColAmount,
	counterpartyCol: wcColCounterparty,
	itemCol:         wcColItem,
	txnIDCol:        wcColTxnID,
	merchantIDCol:   wcColMerchantID,
	methodCol:       wcColMethod,
	notesCol:        wcColNotes,
}

var alipaySpec = columnSpec{
	headerKeywords:  []string{apColTime, apColDirection},
	required:        []string{apColTime, apColAmount, apColDirection, apColStatus, apColTxnID},
	timeCol:         apColTime,
	directionCol:    apColDirection,
	statusCol:       apColStatus,
	amountCol:       apColAmount,
	counterpartyCol: apColCounterparty,
	itemCol:         apColItem,
	txnIDCol:        apColTxnID,
	merchantIDCol:   apColMerchantID,
	methodCol:       apColMethod,
	categoryCol:     apColCategory,
	notesCol:        apColNotes,
}

func specFor(ch expense.Channel) (columnSpec, error) {
	switch ch {
	case expense.ChannelWeChatPay:
		return wechatSpec, nil
	case expense.ChannelAlipay:
		return alipaySpec, nil
	default:
		return columnSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedChannel, ch)
	}
}

// ExtractFile dispatches on the file extension: .xlsx exports go through
// excelize, everything else is treated as delimited text.
func ExtractFile(path string, ch expense.Channel) (*Result, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ExtractXLSX(path, ch)
	}
	content, err := reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ex, err := ForChannel(ch)
	if err != nil {
		return nil, err
	}
	res, err := ex.Extract(content)
	if err != nil {
		return nil, err
	}
	res.Format = "text"
	return res, nil
}

// ExtractXLSX reads the first sheet of a workbook export. Both platforms
// lay the table out the same way as their text exports, so the header is
// found by the same keyword scan.
func ExtractXLSX(path string, ch expense.Channel) (*Result, error) {
	spec, err := specFor(ch)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrHeaderNotFound)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	res, err := extractRows(rows, spec)
	if err != nil {
		return nil, err
	}
	res.Format = "xlsx"
	return res, nil
}

// extractRows maps pre-split rows to records using spec.
func extractRows(rows [][]string, spec columnSpec) (*Result, error) {
	headerAt := -1
	for i, row := range rows {
		joined := strings.Join(row, "\x00")
		ok := true
		for _, kw := range spec.headerKeywords {
			if !strings.Contains(joined, kw) {
				ok = false
				break
			}
		}
		if ok {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrHeaderNotFound
	}

	idx := buildColumnIndex(rows[headerAt])
	pos := make(map[string]int, len(spec.required))
	minWidth := 0
	for _, name := range spec.required {
		p, err := idx.require(name)
		if err != nil {
			return nil, err
		}
		pos[name] = p
		if p+1 > minWidth {
			minWidth = p + 1
		}
	}

	res := &Result{}
	for n, row := range rows[headerAt+1:] {
		if isRulerLine(strings.Join(row, "")) || isFooterLine(strings.Join(row, "")) {
			break
		}
		if isBlankRow(row) {
			continue
		}
		if len(row) < minWidth {
			res.BadRows = append(res.BadRows, RowError{Row: n + 1, Reason: "row shorter than header"})
			continue
		}
		res.Records = append(res.Records, RawRecord{
			TransactionTime:       cell(row, pos[spec.timeCol]),
			Direction:             cell(row, pos[spec.directionCol]),
			Status:                cell(row, pos[spec.statusCol]),
			Amount:                cell(row, pos[spec.amountCol]),
			Counterparty:          cell(row, idx.optional(spec.counterpartyCol)),
			Item:                  cell(row, idx.optional(spec.itemCol)),
			ExternalTransactionID: cell(row, pos[spec.txnIDCol]),
			ExternalMerchantID:    cell(row, idx.optional(spec.merchantIDCol)),
			PaymentMethod:         cell(row, idx.optional(spec.methodCol)),
			ProvidedCategory:      cell(row, idx.optional(spec.categoryCol)),
			Notes:                 cell(row, idx.optional(spec.notesCol)),
		})
	}
	return res, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
