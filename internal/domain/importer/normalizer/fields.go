// Package normalizer turns raw export rows into canonical expense records:
// it filters for settled outflows, parses times and amounts, and assembles
// the description used for classification.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/extractor"
)

var (
	// ErrBadTime reports an unparseable transaction time.
	ErrBadTime = errors.New("normalizer: invalid transaction time")
	// ErrBadAmount reports an unparseable amount.
	ErrBadAmount = errors.New("normalizer: invalid amount")
	// ErrMissingTxnID reports a row without a platform transaction id.
	ErrMissingTxnID = errors.New("normalizer: missing external transaction id")
)

// Ruleset holds the per-channel vocabulary for row filtering.
type Ruleset struct {
	OutflowDirections map[string]bool
	SettledStatuses   map[string]bool
}

var rulesets = map[expense.Channel]Ruleset{
	expense.ChannelWeChatPay: {
		OutflowDirections: map[string]bool{"支出": true},
		SettledStatuses:   map[string]bool{"支付成功": true},
	},
	expense.ChannelAlipay: {
		OutflowDirections: map[string]bool{"支出": true},
		SettledStatuses:   map[string]bool{"交易成功": true},
	},
}

// RulesetFor returns the filtering vocabulary for ch.
func RulesetFor(ch expense.Channel) (Ruleset, bool) {
	rs, ok := rulesets[ch]
	return rs, ok
}

// Eligible reports whether raw is a settled outflow worth importing.
// Refunds, inflows, and in-flight rows are dropped silently.
func (rs Ruleset) Eligible(raw extractor.RawRecord) bool {
	return rs.OutflowDirections[raw.Direction] && rs.SettledStatuses[raw.Status]
}

// timeLayouts are tried in order; exports usually carry seconds but some
// older Alipay statements drop them.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a platform timestamp. Slashes are normalized to dashes
// first, so "2024/01/05 10:00:00" parses the same as the dashed form.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "/", "-"))
	if s == "" || s == "-" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadTime)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, s)
}

// amountTrims are the currency decorations platforms wrap around amounts.
var amountTrims = []string{"¥", "￥", "元", "CNY", ","}

// ParseAmount parses a platform amount into its absolute decimal value.
// Sign conventions differ between exports, so the caller applies the
// direction-derived sign.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	for _, t := range amountTrims {
		cleaned = strings.ReplaceAll(cleaned, t, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrBadAmount)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	return d.Abs(), nil
}

// placeholder reports the "no value" markers exports use for blank cells.
func placeholder(s string) bool {
	return s == "" || s == "/" || s == "-"
}

// optionalField maps a raw cell to a nullable column value.
func optionalField(s string) *string {
	s = strings.TrimSpace(s)
	if placeholder(s) {
		return nil
	}
	return &s
}

// Normalize converts an eligible raw row into a canonical record. The
// returned record has no ID; storage assigns one on insert.
func Normalize(raw extractor.RawRecord, ch expense.Channel) (*expense.Record, error) {
	if strings.TrimSpace(raw.ExternalTransactionID) == "" {
		return nil, ErrMissingTxnID
	}

	ts, err := ParseTime(raw.TransactionTime)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return nil, err
	}

	rawDesc := buildRawDescription(raw.Counterparty, raw.Item)
	status := raw.Status

	return &expense.Record{
		TransactionTime:         ts,
		Amount:                  amount.Neg(),
		Currency:                expense.DefaultCurrency,
		Channel:                 ch,
		SourceRawDescription:    rawDesc,
		DescriptionForAI:        CleanDescription(rawDesc),
		ExternalTransactionID:   strings.TrimSpace(raw.ExternalTransactionID),
		ExternalMerchantID:      optionalField(raw.ExternalMerchantID),
		SourceProvidedCategory:  optionalField(raw.ProvidedCategory),
		SourcePaymentMethod:     optionalField(raw.PaymentMethod),
		SourceTransactionStatus: optionalField(status),
		Notes:                   optionalField(raw.Notes),
	}, nil
}

// buildRawDescription joins counterparty and item, skipping placeholders.
func buildRawDescription(counterparty, item string) string {
	c := strings.TrimSpace(counterparty)
	it := strings.TrimSpace(item)
	if placeholder(c) {
		c = ""
	}
	if placeholder(it) {
		it = ""
	}
	switch {
	case c != "" && it != "":
		return c + " - " + it
	case c != "":
		return c
	default:
		return it
	}
}
