// Package anonymizer turns a canonical bank statement into content tokens.
//
// Every account entry of a section is flattened with the section's canonical
// path spec; each distinct record becomes one transaction token and, when
// enabled, the sorted set of those tokens becomes one statement token.
package anonymizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/anonymizer/merkle"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
	dErrors "stmtguard/pkg/domain-errors"
)

// ErrEmptyInput is returned when a statement has no accounts to tokenize.
var ErrEmptyInput = errors.New("statement has no accounts")

// Owner identifies whose statement is being tokenized.
type Owner struct {
	UserID  id.UserID
	RealmID id.RealmID
}

type Anonymizer struct {
	flattener *flatten.Flattener
	catalog   *pathspec.Catalog
	combined  bool
	logger    *slog.Logger
}

type Option func(*Anonymizer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Anonymizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCombinedTokens toggles the statement-level token. On by default.
func WithCombinedTokens(enabled bool) Option {
	return func(a *Anonymizer) {
		a.combined = enabled
	}
}

// WithCatalog replaces the built-in spec catalog. It must still define the
// canonical section specs.
func WithCatalog(c *pathspec.Catalog) Option {
	return func(a *Anonymizer) {
		if c != nil {
			a.catalog = c
		}
	}
}

func New(flattener *flatten.Flattener, opts ...Option) (*Anonymizer, error) {
	if flattener == nil {
		return nil, fmt.Errorf("flattener is required")
	}
	a := &Anonymizer{
		flattener: flattener,
		catalog:   pathspec.Default(),
		combined:  true,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, h := range models.HashTypes {
		if _, ok := a.catalog.Lookup(h.SpecName()); !ok {
			return nil, fmt.Errorf("catalog is missing spec %s", h.SpecName())
		}
	}
	return a, nil
}

// TokenizeAll tokenizes every section of stmt.
func (a *Anonymizer) TokenizeAll(owner Owner, stmt *models.Statement) ([]models.AccountTokens, error) {
	if stmt == nil || (len(stmt.AccountXns) == 0 && len(stmt.BankTransactions) == 0 && len(stmt.EOD) == 0) {
		return nil, dErrors.Wrap(ErrEmptyInput, dErrors.CodeInvalidInput, "statement contains no accounts")
	}
	var out []models.AccountTokens
	for _, h := range models.HashTypes {
		tokens, err := a.Tokenize(owner, stmt, h)
		if err != nil {
			return nil, err
		}
		out = append(out, tokens...)
	}
	return out, nil
}

// Tokenize tokenizes one section, one entry per account. Entries without an
// account number are skipped.
func (a *Anonymizer) Tokenize(owner Owner, stmt *models.Statement, h models.HashType) ([]models.AccountTokens, error) {
	if stmt == nil {
		return nil, nil
	}
	var out []models.AccountTokens
	for i, entry := range stmt.SectionEntries(h) {
		account, err := id.ParseAccountNumber(entry.AccountNo)
		if err != nil {
			a.logger.Warn("skipping section entry without a usable account number",
				"hash_type", h.String(),
				"entry_index", i,
			)
			continue
		}
		tokens, err := a.TokenizeEntry(owner, account, h, entry.Entry)
		if err != nil {
			return nil, err
		}
		out = append(out, tokens)
	}
	return out, nil
}

// TokenizeEntry flattens one account entry with the section spec and
// tokenizes each record. Records that are entirely null (an empty
// transaction list) produce no token; repeated records produce one
// transaction token but every repeat feeds the statement token.
func (a *Anonymizer) TokenizeEntry(owner Owner, account id.AccountNumber, h models.HashType, entry any) (models.AccountTokens, error) {
	result := models.AccountTokens{AccountNumber: account, HashType: h}

	spec, ok := a.catalog.Lookup(h.SpecName())
	if !ok {
		return result, dErrors.New(dErrors.CodeInternal, "no path spec for "+h.String())
	}
	doc, err := toDocument(entry)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInvalidInput, "account entry is not a JSON document")
	}
	records, err := a.flattener.FlattenValue(doc, spec)
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{}, len(records))
	rows := make([]string, 0, len(records))
	for _, r := range records {
		if r.IsNull() {
			continue
		}
		tok, err := merkle.TokenizeRecord(r.Values())
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "tokenize record")
		}
		rows = append(rows, tok)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		result.Transactions = append(result.Transactions, models.AnonymousToken{
			UserID:         owner.UserID,
			RealmID:        owner.RealmID,
			AccountNumber:  account,
			HashType:       h,
			Token:          tok,
			IsPrimaryOwner: true,
		})
	}

	if a.combined && len(result.Transactions) > 0 {
		agg, err := merkle.AggregateToken(rows)
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "aggregate statement token")
		}
		result.Statement = &models.AnonymousToken{
			UserID:          owner.UserID,
			RealmID:         owner.RealmID,
			AccountNumber:   account,
			HashType:        h,
			Token:           agg,
			IsPrimaryOwner:  true,
			IsCombinedToken: true,
		}
	}

	a.logger.Debug("tokenized account section",
		"hash_type", h.String(),
		"records", len(records),
		"tokens", len(result.Transactions),
	)
	return result, nil
}

// toDocument converts typed entries to the generic form the flattener walks,
// keeping numbers as json.Number.
func toDocument(entry any) (any, error) {
	switch v := entry.(type) {
	case nil:
		return nil, nil
	case map[string]any, []any:
		return v, nil
	case json.RawMessage:
		return flatten.Decode(v)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return flatten.Decode(raw)
}
