package extractor

import (
	"fmt"
	"strings"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/reader"
)

// wechatColumns are the header names of a WeChat Pay bill export.
const (
	wcColTime         = "交易时间"
	wcColCounterparty = "交易对方"
	wcColItem         = "商品"
	wcColDirection    = "收/支"
	wcColAmount       = "金额(元)"
	wcColMethod       = "支付方式"
	wcColStatus       = "当前状态"
	wcColTxnID        = "交易单号"
	wcColMerchantID   = "商户单号"
	wcColNotes        = "备注"
)

// wechatExtractor reads WeChat Pay bill exports. The export opens with an
// account summary block; the table starts at the first line naming both the
// time and counterparty columns and runs to the end of the file.
type wechatExtractor struct{}

func (e *wechatExtractor) Channel() expense.Channel { return expense.ChannelWeChatPay }

func (e *wechatExtractor) Extract(content string) (*Result, error) {
	lines := reader.Lines(content)

	headerAt := findHeaderLine(lines, wcColTime, wcColCounterparty)
	if headerAt < 0 {
		return nil, fmt.Errorf("%w: wechat bill", ErrHeaderNotFound)
	}

	comma := detectDelimiter(lines[headerAt])
	headerRow, bad := parseRows(lines[headerAt], comma)
	if len(headerRow) == 0 {
		return nil, fmt.Errorf("%w: wechat bill", ErrHeaderNotFound)
	}
	idx := buildColumnIndex(headerRow[0].cells)

	required := []string{wcColTime, wcColAmount, wcColDirection, wcColStatus, wcColTxnID}
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

	section := strings.Join(lines[headerAt+1:], "\n")
	rows, badRows := parseRows(section, comma)
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
			TransactionTime:       cell(cells, pos[wcColTime]),
			Direction:             cell(cells, pos[wcColDirection]),
			Status:                cell(cells, pos[wcColStatus]),
			Amount:                cell(cells, pos[wcColAmount]),
			Counterparty:          cell(cells, idx.optional(wcColCounterparty)),
			Item:                  cell(cells, idx.optional(wcColItem)),
			ExternalTransactionID: cell(cells, pos[wcColTxnID]),
			ExternalMerchantID:    cell(cells, idx.optional(wcColMerchantID)),
			PaymentMethod:         cell(cells, idx.optional(wcColMethod)),
			Notes:                 cell(cells, idx.optional(wcColNotes)),
		})
	}
	return res, nil
}
