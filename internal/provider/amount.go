package provider

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"stmtguard/internal/anonymizer/flatten"
	dErrors "stmtguard/pkg/domain-errors"
)

// normalizeAmount renders an amount in canonical decimal form so that 100,
// 100.0 and "100.00" tokenize alike. Blank and null amounts stay empty.
func normalizeAmount(raw string, negate bool) (json.Number, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || s == flatten.NullValue {
		return "", nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount "+raw)
	}
	if negate {
		d = d.Neg()
	}
	return json.Number(d.String()), nil
}

// textOrNull maps the flattener's null placeholder back to empty text.
func textOrNull(v string) string {
	if v == flatten.NullValue {
		return ""
	}
	return v
}

// truncateDate keeps the calendar date of timestamps like
// 2024-01-02 10:11:12.
func truncateDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
