package models

import (
	"fmt"
	"strings"

	"stmtguard/internal/anonymizer/pathspec"
	dErrors "stmtguard/pkg/domain-errors"
)

// HashType names the statement section a token was derived from. Ordinals are
// persisted and must not be reordered.
type HashType int

const (
	HashTypeBankTransaction HashType = iota
	HashTypeAccountXns
	HashTypeEODBalance
)

// HashTypes lists every section in ordinal order.
var HashTypes = []HashType{HashTypeBankTransaction, HashTypeAccountXns, HashTypeEODBalance}

func (h HashType) String() string {
	switch h {
	case HashTypeBankTransaction:
		return "BANK_TRANSACTION"
	case HashTypeAccountXns:
		return "ACCOUNT_XNS"
	case HashTypeEODBalance:
		return "EOD_BALANCE"
	default:
		return fmt.Sprintf("HashType(%d)", int(h))
	}
}

func (h HashType) IsValid() bool {
	return h >= HashTypeBankTransaction && h <= HashTypeEODBalance
}

// Section is the canonical statement key holding one entry per account.
func (h HashType) Section() string {
	switch h {
	case HashTypeAccountXns:
		return "accountXns"
	case HashTypeEODBalance:
		return "eod"
	default:
		return "bankTransactions"
	}
}

// SpecName is the canonical path spec used to tokenize one account entry.
func (h HashType) SpecName() string {
	switch h {
	case HashTypeAccountXns:
		return pathspec.CanonicalAccountXns
	case HashTypeEODBalance:
		return pathspec.CanonicalEODBalance
	default:
		return pathspec.CanonicalBankTransaction
	}
}

// ParseHashType accepts the name, case-insensitively.
func ParseHashType(s string) (HashType, error) {
	for _, h := range HashTypes {
		if strings.EqualFold(s, h.String()) {
			return h, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid hash type: must be BANK_TRANSACTION, ACCOUNT_XNS or EOD_BALANCE")
}

// Provider is the upstream statement analyser. Ordinals are persisted.
type Provider int

const (
	ProviderPerfios Provider = iota
	ProviderScoreme
	ProviderFinbox
	ProviderOneMoney
)

func (p Provider) String() string {
	switch p {
	case ProviderPerfios:
		return "PERFIOS"
	case ProviderScoreme:
		return "SCOREME"
	case ProviderFinbox:
		return "FINBOX"
	case ProviderOneMoney:
		return "ONEMONEY"
	default:
		return fmt.Sprintf("Provider(%d)", int(p))
	}
}

func ParseProvider(s string) (Provider, error) {
	for _, p := range []Provider{ProviderPerfios, ProviderScoreme, ProviderFinbox, ProviderOneMoney} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid provider")
}

// SourceType records how a statement reached us.
type SourceType int

const (
	SourceBatch SourceType = iota
	SourceRealTime
)

func (s SourceType) String() string {
	if s == SourceRealTime {
		return "REAL_TIME"
	}
	return "BATCH"
}

func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToUpper(s) {
	case "", "BATCH":
		return SourceBatch, nil
	case "REAL_TIME":
		return SourceRealTime, nil
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid source type: must be BATCH or REAL_TIME")
}
