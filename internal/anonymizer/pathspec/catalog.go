package pathspec

import (
	"fmt"
	"sort"
)

// Spec names of the built-in tables. Provider tables describe raw upstream
// documents; canonical tables describe one account entry of the canonical
// statement document and drive tokenization.
const (
	PerfiosBankTransaction = "PERFIOS/v1.0/BANK_TRANSACTION"
	PerfiosAccountXns      = "PERFIOS/v1.0/ACCOUNT_XNS"
	PerfiosEODBalance      = "PERFIOS/v1.0/EOD_BALANCE"

	PerfiosNinjacartBankTransaction = "PERFIOS_NINJACART/v1.0/BANK_TRANSACTION"
	PerfiosNinjacartAccountXns      = "PERFIOS_NINJACART/v1.0/ACCOUNT_XNS"
	PerfiosNinjacartEODBalance      = "PERFIOS_NINJACART/v1.0/EOD_BALANCE"

	FinboxBankTransaction = "FINBOX/v1.0/BANK_TRANSACTION"
	FinboxDataTransaction = "FINBOX/v1.0/DATA_TRANSACTION"
	FinboxAccountDetails  = "FINBOX/v1.0/ACCOUNT_DETAILS"

	OneMoneyBankTransaction = "ONEMONEY/v1.0/BANK_TRANSACTION"
	OneMoneyTransaction     = "ONEMONEY/v1.0/BANK_TRANSACTIONS_TRANSACTION"
	OneMoneyProfile         = "ONEMONEY/v1.0/PROFILE"
	OneMoneySummary         = "ONEMONEY/v1.0/SUMMARY"

	CanonicalAccountXns      = "CANONICAL/v1/ACCOUNT_XNS"
	CanonicalBankTransaction = "CANONICAL/v1/BANK_TRANSACTION"
	CanonicalEODBalance      = "CANONICAL/v1/EOD_BALANCE"
)

func prefixed(prefix string, leaves ...string) []string {
	out := make([]string, len(leaves))
	for i, l := range leaves {
		out[i] = prefix + l
	}
	return out
}

func builtins() []PathSpec {
	const v1 = "v1.0"
	perfiosXns := []string{"date", "amount", "balance", "narration", "mox", "chqNo", "category"}
	finboxTxn := "$.accounts[%d].data.transactions[*]."
	oneMoneyTxn := "$.data[%d].Transactions.Transaction[*]."

	return []PathSpec{
		MustNew(PerfiosBankTransaction, "PERFIOS", v1, prefixed("$.accountXns[*].xns[*].", "date", "amount", "balance")),
		MustNew(PerfiosAccountXns, "PERFIOS", v1, prefixed("$.accountXns[*].xns[*].", perfiosXns...)),
		MustNew(PerfiosEODBalance, "PERFIOS", v1, prefixed("$.accountAnalysis[*].eODBalances[*].", "date", "balance")),

		MustNew(PerfiosNinjacartBankTransaction, "PERFIOS", v1, prefixed("$.report.accountXns[*].xns[*].", "date", "amount", "balance")),
		MustNew(PerfiosNinjacartAccountXns, "PERFIOS", v1, prefixed("$.report.accountXns[*].xns[*].", perfiosXns...)),
		MustNew(PerfiosNinjacartEODBalance, "PERFIOS", v1, prefixed("$.report.accountAnalysis[*].eODBalances[*].", "date", "balance")),

		MustNew(FinboxBankTransaction, "FINBOX", v1, prefixed(finboxTxn, "date", "amount", "balance")),
		MustNew(FinboxDataTransaction, "FINBOX", v1, prefixed(finboxTxn,
			"date", "amount", "transaction_note", "transaction_type", "metadata.transaction_channel", "hash", "balance")),
		MustNew(FinboxAccountDetails, "FINBOX", v1, prefixed("$.accounts[%d].data.account_details.",
			"account_number", "account_category", "name", "phone_number", "pan_number", "aadhar_masked", "bank")),

		MustNew(OneMoneyBankTransaction, "ONEMONEY", v1, prefixed(oneMoneyTxn, "valueDate", "amount", "currentBalance")),
		MustNew(OneMoneyTransaction, "ONEMONEY", v1, prefixed(oneMoneyTxn,
			"amount", "currentBalance", "mode", "narration", "reference", "transactionTimestamp", "txnId", "type", "valueDate")),
		MustNew(OneMoneyProfile, "ONEMONEY", v1, append(
			prefixed("$.data[%d].Profile.Holders.Holder.", "name", "mobile", "pan", "aadharMasked"),
			"$.data[%d].fipName", "$.data[%d].maskedAccNumber", "$.data[%d].Summary.type")),
		MustNew(OneMoneySummary, "ONEMONEY", v1, prefixed("$.data[*].Summary.",
			"balanceDateTime", "branch", "currency", "currentBalance", "currentODLimit", "drawingLimit",
			"exchgeRate", "facility", "ifscCode", "micrCode", "openingDate", "status", "type", "Pending.amount")),

		MustNew(CanonicalAccountXns, "CANONICAL", "v1", prefixed("$.xns[*].", "date", "amount", "balance", "narration", "mox", "chqNo")),
		MustNew(CanonicalBankTransaction, "CANONICAL", "v1", prefixed("$.transactions[*].", "date", "amount", "balance")),
		MustNew(CanonicalEODBalance, "CANONICAL", "v1", prefixed("$.balances[*].", "date", "balance")),
	}
}

// Catalog is a read-only set of specs keyed by name.
type Catalog struct {
	specs map[string]PathSpec
}

// NewCatalog indexes specs by name. Names must be unique because flatteners
// cache resolved path maps by name.
func NewCatalog(specs ...PathSpec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]PathSpec, len(specs))}
	for _, s := range specs {
		if _, dup := c.specs[s.Name()]; dup {
			return nil, fmt.Errorf("%w: spec name %s", ErrDuplicateLabel, s.Name())
		}
		c.specs[s.Name()] = s
	}
	return c, nil
}

// Default returns the built-in provider and canonical tables.
func Default() *Catalog {
	c, err := NewCatalog(builtins()...)
	if err != nil {
		panic(err)
	}
	return c
}

// With returns a copy of c extended with specs.
func (c *Catalog) With(specs ...PathSpec) (*Catalog, error) {
	all := make([]PathSpec, 0, len(c.specs)+len(specs))
	for _, s := range c.specs {
		all = append(all, s)
	}
	return NewCatalog(append(all, specs...)...)
}

func (c *Catalog) Lookup(name string) (PathSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// MustLookup panics on unknown names; for the built-in constants only.
func (c *Catalog) MustLookup(name string) PathSpec {
	s, ok := c.specs[name]
	if !ok {
		panic("pathspec: unknown spec " + name)
	}
	return s
}

// Names returns all spec names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.specs))
	for n := range c.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
