package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/models"
	dErrors "stmtguard/pkg/domain-errors"
)

// Extractor turns provider documents into canonical statements. Finbox and
// OneMoney go through the flattener with the provider path tables; Perfios
// documents are regular enough to decode directly. Scoreme reports arrive as
// excel workbooks read by fixed cell positions.
type Extractor struct {
	flattener *flatten.Flattener
	catalog   *pathspec.Catalog
	logger    *slog.Logger
}

type Option func(*Extractor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithCatalog(c *pathspec.Catalog) Option {
	return func(e *Extractor) {
		if c != nil {
			e.catalog = c
		}
	}
}

type extractFunc func(e *Extractor, raw []byte) (*models.Statement, error)

var extractors = map[Format]extractFunc{
	FormatPerfios:          (*Extractor).perfios,
	FormatPerfiosNinjacart: (*Extractor).perfiosNinjacart,
	FormatFinbox:           (*Extractor).finbox,
	FormatOneMoney:         (*Extractor).oneMoney,
	FormatScoreme:          (*Extractor).scoreme,
}

var requiredSpecs = []string{
	pathspec.FinboxAccountDetails,
	pathspec.FinboxDataTransaction,
	pathspec.OneMoneyProfile,
	pathspec.OneMoneyTransaction,
}

func New(flattener *flatten.Flattener, opts ...Option) (*Extractor, error) {
	if flattener == nil {
		return nil, fmt.Errorf("flattener is required")
	}
	e := &Extractor{
		flattener: flattener,
		catalog:   pathspec.Default(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, name := range requiredSpecs {
		if _, ok := e.catalog.Lookup(name); !ok {
			return nil, fmt.Errorf("catalog is missing spec %s", name)
		}
	}
	return e, nil
}

// Extract converts raw in the given format. Formats without an extractor
// report CodeUnsupported.
func (e *Extractor) Extract(format Format, raw []byte) (*models.Statement, error) {
	fn, ok := extractors[format]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnsupported, "no extractor for "+format.String())
	}
	stmt, err := fn(e, raw)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("statement extracted",
		"format", format.String(),
		"accounts", len(stmt.AccountXns),
	)
	return stmt, nil
}

// Supports reports whether format can be extracted.
func Supports(format Format) bool {
	_, ok := extractors[format]
	return ok
}

// flattenBound binds a per-account template and flattens doc with it,
// dropping the placeholder row an empty array yields.
func (e *Extractor) flattenBound(doc any, specName string, index int) ([]flatten.FlatRecord, error) {
	spec, err := e.catalog.MustLookup(specName).Bind(index)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "bind path spec")
	}
	records, err := e.flattener.FlattenValue(doc, spec)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if !r.IsNull() {
			out = append(out, r)
		}
	}
	return out, nil
}

// fieldsOf keys record values by their path relative to base.
func fieldsOf(r flatten.FlatRecord, base string) map[string]string {
	cells := r.Cells()
	out := make(map[string]string, len(cells))
	for _, c := range cells {
		out[strings.TrimPrefix(c.Path, base)] = textOrNull(c.Value)
	}
	return out
}

// arrayLen is the length of the array under key in a decoded object.
func arrayLen(doc any, key string) int {
	obj, ok := doc.(map[string]any)
	if !ok {
		return 0
	}
	items, _ := obj[key].([]any)
	return len(items)
}

func emptyStatement() *models.Statement {
	return &models.Statement{
		CustomerDetails:  []models.CustomerDetails{},
		AccountXns:       []models.AccountXns{},
		EOD:              []models.EODAccount{},
		BankTransactions: []models.BankTransactionSet{},
	}
}
