// Package correlation matches a requester's tokens against the cross-tenant
// index and classifies the overlap per counterparty account.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/ports"
	id "stmtguard/pkg/domain"
	dErrors "stmtguard/pkg/domain-errors"
	strutil "stmtguard/pkg/platform/strings"
)

// ErrLookupFailure wraps any token index error. An incomplete lookup must
// never be reported as "no match".
var ErrLookupFailure = errors.New("token index lookup failed")

var tracer = otel.Tracer("stmtguard/correlation")

// Request is one account section to correlate.
type Request struct {
	UserID        id.UserID
	RealmID       id.RealmID
	AccountNumber id.AccountNumber
	HashType      models.HashType
	// Tokens are the requester's per-transaction tokens. Duplicates and
	// blanks are ignored.
	Tokens []string
	// StatementToken is the combined token, empty when not computed.
	StatementToken string
	// Accounts are the accounts found in the requester's statement, aligned
	// by position with Customers.
	Accounts  []models.AccountRef
	Customers []models.CustomerDetails
}

type Engine struct {
	index     ports.TokenIndex
	directory ports.AccountDirectory
	bands     *BandTable
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithBandTable(t *BandTable) Option {
	return func(e *Engine) {
		if t != nil {
			e.bands = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(index ports.TokenIndex, directory ports.AccountDirectory, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("token index is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("account directory is required")
	}
	e := &Engine{
		index:     index,
		directory: directory,
		bands:     DefaultBandTable(),
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Bands exposes the classification table in use.
func (e *Engine) Bands() *BandTable {
	return e.bands
}

// Correlate looks up req's tokens, groups the hits by counterparty account
// and classifies each group. The directory lookup runs alongside the index
// lookup; its failure only empties OtherAccounts.
func (e *Engine) Correlate(ctx context.Context, req Request) (*models.CorrelationReport, error) {
	ctx, span := tracer.Start(ctx, "correlation.Correlate", trace.WithAttributes(
		attribute.String("hash_type", req.HashType.String()),
		attribute.Int("token_count", len(req.Tokens)),
	))
	defer span.End()

	own := strutil.DedupeAndTrim(req.Tokens)
	lookup := own
	if req.StatementToken != "" {
		lookup = append(append(make([]string, 0, len(own)+1), own...), req.StatementToken)
	}

	report := &models.CorrelationReport{
		UserID:        req.UserID,
		RealmID:       req.RealmID,
		AccountNumber: req.AccountNumber,
		HashType:      req.HashType,
		Customer:      e.customerFor(req),
		Status:        e.bands.Lowest().Status,
		Accounts:      req.Accounts,
		GeneratedAt:   e.now().UTC(),
	}

	var matches []models.IndexMatch
	g, gctx := errgroup.WithContext(ctx)
	if len(own) > 0 {
		g.Go(func() error {
			found, err := e.index.LookupMatches(gctx, lookup, req.UserID, req.HashType)
			if err != nil {
				return dErrors.Wrap(fmt.Errorf("%w: %w", ErrLookupFailure, err),
					dErrors.CodeUnavailable, "token index unavailable")
			}
			matches = found
			return nil
		})
	}
	g.Go(func() error {
		accounts, err := e.directory.ListOtherAccounts(gctx, req.UserID, req.RealmID)
		if err != nil {
			e.logger.WarnContext(ctx, "account directory lookup failed",
				"user_id", req.UserID.String(),
				"realm_id", req.RealmID.String(),
				"error", err,
			)
			return nil
		}
		report.OtherAccounts = excludeAccount(accounts, req.AccountNumber)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}
	if report.OtherAccounts == nil {
		report.OtherAccounts = []models.AccountRef{}
	}

	report.Groups = e.group(own, matches, req.HashType)
	for _, grp := range report.Groups {
		report.Transactions = append(report.Transactions, models.MatchEntry{
			Section:             req.HashType,
			CounterpartyUserID:  grp.CounterpartyUserID,
			CounterpartyRealmID: grp.CounterpartyRealmID,
			CounterpartyAccount: grp.CounterpartyAccount,
			MatchScore:          grp.MatchPercentage,
			MatchedCount:        grp.MatchedCount,
			Band:                grp.Band,
		})
	}
	report.Statements = e.statementMatches(req, matches)

	report.Status = e.overallStatus(report)
	if !report.HasMatches() {
		report.Remarks = fmt.Sprintf("No matching records found for the user %s.", req.UserID)
	}

	span.SetAttributes(
		attribute.Int("match_groups", len(report.Groups)),
		attribute.Int("statement_matches", len(report.Statements)),
		attribute.String("status", string(report.Status)),
	)
	e.logger.DebugContext(ctx, "correlation complete",
		"hash_type", req.HashType.String(),
		"own_tokens", len(own),
		"index_matches", len(matches),
		"match_groups", len(report.Groups),
		"status", string(report.Status),
	)
	return report, nil
}

type groupAcc struct {
	userID  id.UserID
	realmID id.RealmID
	tokens  map[string]struct{}
}

// group buckets transaction matches by counterparty account and counts the
// distinct own tokens each bucket matched.
func (e *Engine) group(own []string, matches []models.IndexMatch, h models.HashType) []models.MatchGroup {
	if len(own) == 0 || len(matches) == 0 {
		return []models.MatchGroup{}
	}
	ownSet := make(map[string]struct{}, len(own))
	for _, t := range own {
		ownSet[t] = struct{}{}
	}

	accs := make(map[id.AccountNumber]*groupAcc)
	for _, m := range matches {
		if m.Combined || m.HashType != h {
			continue
		}
		if _, ok := ownSet[m.Token]; !ok {
			continue
		}
		acc, ok := accs[m.AccountNumber]
		if !ok {
			acc = &groupAcc{userID: m.UserID, realmID: m.RealmID, tokens: make(map[string]struct{})}
			accs[m.AccountNumber] = acc
		}
		acc.tokens[m.Token] = struct{}{}
	}

	total := len(own)
	groups := make([]models.MatchGroup, 0, len(accs))
	for account, acc := range accs {
		matched := len(acc.tokens)
		pct := MatchPercentage(matched, total)
		groups = append(groups, models.MatchGroup{
			CounterpartyUserID:  acc.userID,
			CounterpartyRealmID: acc.realmID,
			CounterpartyAccount: account,
			MatchedCount:        matched,
			TotalCount:          total,
			MatchPercentage:     pct,
			Band:                e.bands.classifyLogged(e.logger, pct),
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].MatchPercentage != groups[j].MatchPercentage {
			return groups[i].MatchPercentage > groups[j].MatchPercentage
		}
		return groups[i].CounterpartyAccount < groups[j].CounterpartyAccount
	})
	return groups
}

// statementMatches lists counterparty accounts holding our exact statement.
func (e *Engine) statementMatches(req Request, matches []models.IndexMatch) []models.MatchEntry {
	out := []models.MatchEntry{}
	if req.StatementToken == "" {
		return out
	}
	seen := make(map[id.AccountNumber]struct{})
	for _, m := range matches {
		if !m.Combined || m.Token != req.StatementToken {
			continue
		}
		if _, dup := seen[m.AccountNumber]; dup {
			continue
		}
		seen[m.AccountNumber] = struct{}{}
		out = append(out, models.MatchEntry{
			Section:             req.HashType,
			CounterpartyUserID:  m.UserID,
			CounterpartyRealmID: m.RealmID,
			CounterpartyAccount: m.AccountNumber,
			MatchScore:          100,
			MatchedCount:        1,
			Band:                e.bands.classifyLogged(e.logger, 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CounterpartyAccount < out[j].CounterpartyAccount
	})
	return out
}

func (e *Engine) overallStatus(r *models.CorrelationReport) models.RiskStatus {
	status := e.bands.Lowest().Status
	for _, entries := range [][]models.MatchEntry{r.Transactions, r.Statements} {
		for _, m := range entries {
			if m.Band.Status.Severity() > status.Severity() {
				status = m.Band.Status
			}
		}
	}
	return status
}

// customerFor picks the customer details of the requested account. When the
// account is not among req.Accounts the first entry is used.
func (e *Engine) customerFor(req Request) models.CustomerDetails {
	idx := -1
	for i, a := range req.Accounts {
		if a.AccountNumber == req.AccountNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.logger.Warn("requested account not found among statement accounts, using first",
			"account", req.AccountNumber.Masked(),
			"accounts", len(req.Accounts),
		)
		idx = 0
	}
	if idx >= len(req.Customers) {
		return models.CustomerDetails{}
	}
	return req.Customers[idx]
}

// MatchPercentage is 100 * matched / total, zero when total is zero.
func MatchPercentage(matched, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

func excludeAccount(accounts []models.AccountRef, account id.AccountNumber) []models.AccountRef {
	out := make([]models.AccountRef, 0, len(accounts))
	for _, a := range accounts {
		if a.AccountNumber == account {
			continue
		}
		out = append(out, a)
	}
	return out
}
