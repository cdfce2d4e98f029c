package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/extractor"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"dashed with seconds", "2024-01-05 10:30:45", "2024-01-05 10:30:45", false},
		{"slashed", "2024/01/05 10:30:45", "2024-01-05 10:30:45", false},
		{"no seconds", "2024-01-05 10:30", "2024-01-05 10:30:00", false},
		{"padded", "  2024-01-05 10:30:45  ", "2024-01-05 10:30:45", false},
		{"placeholder slash", "/", "", true},
		{"empty", "", "", true},
		{"garbage", "昨天", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(expense.TimeLayout))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "45.00", "45", false},
		{"wechat symbol", "¥18.00", "18", false},
		{"fullwidth symbol", "￥18.50", "18.5", false},
		{"unit suffix", "12.00元", "12", false},
		{"thousands", "1,234.56", "1234.56", false},
		{"negative normalizes", "-99.90", "99.9", false},
		{"empty", "", "", true},
		{"garbage", "十八元", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
		})
	}
}

func TestRulesetEligible(t *testing.T) {
	wc, ok := RulesetFor(expense.ChannelWeChatPay)
	require.True(t, ok)

	tests := []struct {
		name      string
		direction string
		status    string
		want      bool
	}{
		{"settled outflow", "支出", "支付成功", true},
		{"inflow", "收入", "支付成功", false},
		{"refund row", "/", "已全额退款", false},
		{"pending", "支出", "支付中", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wc.Eligible(extractor.RawRecord{Direction: tt.direction, Status: tt.status})
			assert.Equal(t, tt.want, got)
		})
	}

	ap, ok := RulesetFor(expense.ChannelAlipay)
	require.True(t, ok)
	assert.True(t, ap.Eligible(extractor.RawRecord{Direction: "支出", Status: "交易成功"}))
	assert.False(t, ap.Eligible(extractor.RawRecord{Direction: "支出", Status: "支付成功"}))

	_, ok = RulesetFor(expense.Channel("paypal"))
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	raw := extractor.RawRecord{
		TransactionTime:       "2024/01/05 10:00:00",
		Direction:             "支出",
		Status:                "交易成功",
		Amount:                "45.00",
		Counterparty:          "肯德基",
		Item:                  "宅急送订单",
		ExternalTransactionID: "2024010522001412341234",
		ExternalMerchantID:    "KFC1001",
		PaymentMethod:         "余额宝",
		ProvidedCategory:      "餐饮美食",
		Notes:                 "/",
	}

	rec, err := Normalize(raw, expense.ChannelAlipay)
	require.NoError(t, err)

	assert.Equal(t, expense.ChannelAlipay, rec.Channel)
	assert.Equal(t, "2024-01-05 10:00:00", rec.TransactionTime.Format(expense.TimeLayout))
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("-45")), "got %s", rec.Amount)
	assert.Equal(t, "CNY", rec.Currency)
	assert.Equal(t, "肯德基 - 宅急送订单", rec.SourceRawDescription)
	assert.Equal(t, "肯德基 - 宅急送订单", rec.DescriptionForAI)
	assert.Equal(t, "2024010522001412341234", rec.ExternalTransactionID)
	require.NotNil(t, rec.SourceProvidedCategory)
	assert.Equal(t, "餐饮美食", *rec.SourceProvidedCategory)
	require.NotNil(t, rec.SourceTransactionStatus)
	assert.Equal(t, "交易成功", *rec.SourceTransactionStatus)
	assert.Nil(t, rec.Notes)
	assert.False(t, rec.IsConfirmedByUser)
	assert.False(t, rec.IsClassifiedByAI)
}

func TestNormalizeErrors(t *testing.T) {
	base := extractor.RawRecord{
		TransactionTime:       "2024-01-05 10:00:00",
		Amount:                "45.00",
		ExternalTransactionID: "txn-1",
	}

	noID := base
	noID.ExternalTransactionID = " "
	_, err := Normalize(noID, expense.ChannelWeChatPay)
	assert.ErrorIs(t, err, ErrMissingTxnID)

	badTime := base
	badTime.TransactionTime = "/"
	_, err = Normalize(badTime, expense.ChannelWeChatPay)
	assert.ErrorIs(t, err, ErrBadTime)

	badAmount := base
	badAmount.Amount = "abc"
	_, err = Normalize(badAmount, expense.ChannelWeChatPay)
	assert.ErrorIs(t, err, ErrBadAmount)
}

func TestBuildRawDescription(t *testing.T) {
	tests := []struct {
		counterparty, item, want string
	}{
		{"瑞幸咖啡", "拿铁", "瑞幸咖啡 - 拿铁"},
		{"瑞幸咖啡", "/", "瑞幸咖啡"},
		{"/", "拿铁", "拿铁"},
		{"/", "/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildRawDescription(tt.counterparty, tt.item))
	}
}
