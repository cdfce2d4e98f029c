// Package expense defines the canonical expense record and its storage
// operations. Records are created exclusively by the import pipeline and
// mutated later by classification and user confirmation.
package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel identifies the originating payment platform of a record.
type Channel string

const (
	ChannelWeChatPay Channel = "wechat_pay"
	ChannelAlipay    Channel = "alipay"
)

// DefaultCurrency is the currency of all supported export formats.
const DefaultCurrency = "CNY"

// TimeLayout is the canonical second-precision transaction time format.
const TimeLayout = "2006-01-02 15:04:05"

// Record is the canonical expense record.
//
// Amount carries a single sign convention: outflows are negative regardless
// of how the source platform encoded them. ExternalTransactionID is the
// platform-issued identifier and the storage-level dedup key.
type Record struct {
	ID                      uuid.UUID
	TransactionTime         time.Time
	Amount                  decimal.Decimal
	Currency                string
	Channel                 Channel
	SourceRawDescription    string
	DescriptionForAI        string
	CategoryL1              *string
	CategoryL2              *string
	AISuggestionL1          *string
	AISuggestionL2          *string
	IsClassifiedByAI        bool
	IsConfirmedByUser       bool
	IsHidden                bool
	Notes                   *string
	ExternalTransactionID   string
	ExternalMerchantID      *string
	SourceProvidedCategory  *string
	SourcePaymentMethod     *string
	SourceTransactionStatus *string
	ImportedAt              time.Time
	UpdatedAt               time.Time
}

// ListFilter narrows expense listings. Zero values mean "no constraint".
type ListFilter struct {
	Channel      Channel
	StartDate    *time.Time
	EndDate      *time.Time
	Hidden       *bool
	Unclassified bool
}

// ListOptions controls pagination and ordering for expense listings.
type ListOptions struct {
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

// sortColumns whitelists the columns a caller may sort by.
var sortColumns = map[string]bool{
	"transaction_time": true,
	"amount":           true,
	"channel":          true,
	"category_l1":      true,
	"imported_at":      true,
	"updated_at":       true,
}

// Normalize clamps paging and falls back to safe sort defaults.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 || o.PerPage > 500 {
		o.PerPage = 50
	}
	if !sortColumns[o.SortBy] {
		o.SortBy = "transaction_time"
	}
	if o.SortOrder != "ASC" && o.SortOrder != "DESC" {
		o.SortOrder = "DESC"
	}
	return o
}
