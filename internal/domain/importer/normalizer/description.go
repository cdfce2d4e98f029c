package normalizer

import (
	"regexp"
	"strings"
)

// prefixPatterns strip the boilerplate platforms prepend to merchant names.
// Order matters: longer composed prefixes run before their substrings.
var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(微信支付-)+`),
	regexp.MustCompile(`(?i)^(支付宝-)+`),
	regexp.MustCompile(`(?i)^(付款-)+`),
	regexp.MustCompile(`(?i)^(支付-)+`),
	regexp.MustCompile(`(?i)^(转账给-)+`),
	regexp.MustCompile(`(?i)^(收款方-)+`),
	regexp.MustCompile(`(?i)^(花呗扣款-)+`),
	regexp.MustCompile(`(?i)^(花呗-)+`),
	regexp.MustCompile(`(?i)^(余额宝-)+`),
	regexp.MustCompile(`(?i)^(零钱通-)+`),
	regexp.MustCompile(`(?i)^(零钱-)+`),
	regexp.MustCompile(`(?i)^(扫码付款-)+`),
	regexp.MustCompile(`(?i)^(扫码支付-)+`),
	regexp.MustCompile(`(?i)^(消费-)+`),
	regexp.MustCompile(`(?i)^(购物消费-)+`),
	regexp.MustCompile(`(?i)^(交易类型：消费，备注：)+`),
	regexp.MustCompile(`(?i)^(交易类型：扫码支付，备注：)+`),
}

var (
	payToPattern      = regexp.MustCompile(`付款给`)
	edgeDashPattern   = regexp.MustCompile(`^[\s-]+|[\s-]+$`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// CleanDescription produces the classification-friendly form of a raw
// description. If cleaning leaves nothing usable the original string is
// returned so a record never loses its description entirely.
func CleanDescription(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return raw
	}

	for _, p := range prefixPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = payToPattern.ReplaceAllString(cleaned, "")
	cleaned = edgeDashPattern.ReplaceAllString(cleaned, "")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || cleaned == "-" || cleaned == "/" {
		return raw
	}
	return cleaned
}
