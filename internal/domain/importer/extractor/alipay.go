package extractor

import (
	"fmt"
	"strings"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/reader"
)

// alipayColumns are the header names of an Alipay statement export.
const (
	apColTime         = "交易时间"
	apColCategory     = "交易分类"
	apColCounterparty = "交易对方"
	apColItem         = "商品说明"
	apColDirection    = "收/支"
	apColAmount       = "金额"
	apColMethod       = "收/付款方式"
	apColStatus       = "交易状态"
	apColTxnID        = "交易订单号"
	apColMerchantID   = "商家订单号"
	apColNotes        = "备注"
)

// alipayExtractor reads Alipay statement exports. The table sits between
// two dash ruler lines, followed by a footer with record totals and the
// service hotline. Header names carry stray spaces and every cell ends
// with a tab, both of which are stripped before use.
type alipayExtractor struct{}

func (e *alipayExtractor) Channel() expense.Channel { return expense.ChannelAlipay }

func (e *alipayExtractor) Extract(content string) (*Result, error) {
	lines := reader.Lines(content)

	headerAt := findHeaderLine(lines, apColTime, apColDirection)
	if headerAt < 0 {
		return nil, fmt.Errorf("%w: alipay statement", ErrHeaderNotFound)
	}

	comma := detectDelimiter(lines[headerAt])
	headerRow, bad := parseRows(lines[headerAt], comma)
	if len(headerRow) == 0 {
		return nil, fmt.Errorf("%w: alipay statement", ErrHeaderNotFound)
	}
	idx := buildColumnIndex(headerRow[0].cells)

	required := []string{apColTime, apColAmount, apColDirection, apColStatus, apColTxnID}
	pos := make(map[string]int, len(required))
	minWidth := 0
	for _, name := range required {
		p, err := idx.require(name)
		if err != nil {
			return nil, err
		}
		pos[name] = p
		if p+1 > minWidth {
			minWidth = p + 1
		}
	}

	var dataLines []string
	for _, line := range lines[headerAt+1:] {
		if isRulerLine(line) || isFooterLine(line) {
			break
		}
		dataLines = append(dataLines, line)
	}

	rows, badRows := parseRows(strings.Join(dataLines, "\n"), comma)
	bad = append(bad, badRows...)

	res := &Result{BadRows: bad}
	for _, row := range rows {
		cells := row.cells
		if len(cells) == 1 && strings.TrimSpace(cells[0]) == "" {
			continue
		}
		if len(cells) < minWidth {
			res.BadRows = append(res.BadRows, RowError{Row: row.pos, Reason: "row shorter than header"})
			continue
		}
		res.Records = append(res.Records, RawRecord{
			TransactionTime:       cell(cells, pos[apColTime]),
			Direction:             cell(cells, pos[apColDirection]),
			Status:                cell(cells, pos[apColStatus]),
			Amount:                cell(cells, pos[apColAmount]),
			Counterparty:          cell(cells, idx.optional(apColCounterparty)),
			Item:                  cell(cells, idx.optional(apColItem)),
			ExternalTransactionID: cell(cells, pos[apColTxnID]),
			ExternalMerchantID:    cell(cells, idx.optional(apColMerchantID)),
			PaymentMethod:         cell(cells, idx.optional(apColMethod)),
			ProvidedCategory:      cell(cells, idx.optional(apColCategory)),
			Notes:                 cell(cells, idx.optional(apColNotes)),
		})
	}
	return res, nil
}

// isRulerLine matches the dash separators Alipay draws around the table.
func isRulerLine(line string) bool {
	t := strings.TrimSpace(line)
	if len(t) < 8 {
		return false
	}
	for _, r := range t {
		if r != '-' {
			return false
		}
	}
	return true
}

// isFooterLine matches the statement trailer below the table.
func isFooterLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "支付宝业务咨询专线") ||
		strings.HasPrefix(t, "总交易笔数") ||
		strings.HasPrefix(t, "导出时间")
}
