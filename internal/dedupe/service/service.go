// Package service orchestrates the two statement operations: ingest (detect,
// extract, tokenize, persist) and dedupe (detect, extract, tokenize,
// correlate, flag).
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stmtguard/internal/anonymizer"
	"stmtguard/internal/dedupe/correlation"
	"stmtguard/internal/dedupe/metrics"
	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/ports"
	"stmtguard/internal/provider"
	id "stmtguard/pkg/domain"
	dErrors "stmtguard/pkg/domain-errors"
	"stmtguard/pkg/requestcontext"
)

var tracer = otel.Tracer("stmtguard/service")

// Extractor turns a detected upload into the canonical statement.
type Extractor interface {
	Extract(format provider.Format, raw []byte) (*models.Statement, error)
}

// Upload is the statement file as received.
type Upload struct {
	Filename    string
	ContentType string
	Body        []byte
}

type IngestRequest struct {
	UserID     id.UserID
	RealmID    id.RealmID
	SourceType models.SourceType
	MediaLink  string
	Upload     Upload
}

// IngestedAccount summarises what was persisted for one account and section.
type IngestedAccount struct {
	AccountNumber  id.AccountNumber
	HashType       models.HashType
	BankName       string
	Transactions   int
	StatementToken string
}

type IngestResult struct {
	Provider models.Provider
	Format   provider.Format
	Accounts []IngestedAccount
}

// DedupeRequest checks one account and section. An empty AccountNumber means
// the first account of the statement; the zero HashType is BANK_TRANSACTION.
type DedupeRequest struct {
	UserID        id.UserID
	RealmID       id.RealmID
	AccountNumber id.AccountNumber
	HashType      models.HashType
	Upload        Upload
}

type Service struct {
	extractor  Extractor
	anonymizer *anonymizer.Anonymizer
	engine     *correlation.Engine
	store      ports.TokenStore
	publisher  ports.EventPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets where flag events go. Without one they are dropped.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(extractor Extractor, anon *anonymizer.Anonymizer, engine *correlation.Engine, store ports.TokenStore, opts ...Option) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if anon == nil {
		return nil, fmt.Errorf("anonymizer is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("correlation engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	s := &Service{
		extractor:  extractor,
		anonymizer: anon,
		engine:     engine,
		store:      store,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest tokenizes every section of the statement and persists one batch per
// account and section. Re-ingesting the same statement is idempotent.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.Ingest", trace.WithAttributes(
		attribute.String("realm_id", req.RealmID.String()),
	))
	defer span.End()

	format, stmt, err := s.load(ctx, req.Upload)
	if err != nil {
		return nil, s.fail(span, err)
	}
	owner := anonymizer.Owner{UserID: req.UserID, RealmID: req.RealmID}
	tokens, err := s.anonymizer.TokenizeAll(owner, stmt)
	if err != nil {
		return nil, s.fail(span, err)
	}

	createdAt := requestcontext.Now(ctx).UTC()
	createdBy := req.UserID.String()
	if caller, ok := requestcontext.CallerFrom(ctx); ok && caller.Subject != "" {
		createdBy = caller.Subject
	}

	result := &IngestResult{Provider: format.Provider(), Format: format}
	for _, at := range tokens {
		if len(at.Transactions) == 0 && at.Statement == nil {
			s.logger.DebugContext(ctx, "no tokens for account section",
				"account", at.AccountNumber.Masked(),
				"hash_type", at.HashType.String(),
			)
			continue
		}
		customer := customerOf(stmt, at.AccountNumber)
		batch := models.TokenBatch{
			UserID:        req.UserID,
			RealmID:       req.RealmID,
			AccountNumber: at.AccountNumber,
			HashType:      at.HashType,
			Provider:      format.Provider(),
			SourceType:    req.SourceType,
			BankName:      customer.BankName,
			PhoneNumber:   customer.MobileNo,
			MediaLink:     req.MediaLink,
			Transactions:  at.TokenValues(),
			CreatedBy:     createdBy,
			CreatedAt:     createdAt,
		}
		if at.Statement != nil {
			batch.StatementToken = at.Statement.Token
		}
		if err := s.store.Persist(ctx, batch); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist tokens",
				"user_id", req.UserID.String(),
				"account", at.AccountNumber.Masked(),
				"hash_type", at.HashType.String(),
				"error", err,
			)
			return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist statement tokens"))
		}
		s.metrics.AddTokensPersisted(at.HashType.String(), len(batch.Transactions))
		result.Accounts = append(result.Accounts, IngestedAccount{
			AccountNumber:  at.AccountNumber,
			HashType:       at.HashType,
			BankName:       customer.BankName,
			Transactions:   len(batch.Transactions),
			StatementToken: batch.StatementToken,
		})
	}

	s.metrics.IncStatement("ingest", format.Provider().String())
	s.metrics.ObserveOperation("ingest", time.Since(start))
	span.SetAttributes(attribute.Int("batches", len(result.Accounts)))
	s.logger.InfoContext(ctx, "bank statement ingested",
		"user_id", req.UserID.String(),
		"realm_id", req.RealmID.String(),
		"provider", format.Provider().String(),
		"batches", len(result.Accounts),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// Dedupe correlates one account section of the statement against everyone
// else's tokens. A non-GREEN outcome is published as a flag event; publish
// failures are logged and never fail the request.
func (s *Service) Dedupe(ctx context.Context, req DedupeRequest) (*models.CorrelationReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.Dedupe", trace.WithAttributes(
		attribute.String("realm_id", req.RealmID.String()),
		attribute.String("hash_type", req.HashType.String()),
	))
	defer span.End()

	if !req.HashType.IsValid() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeInvalidInput, "invalid hash type"))
	}
	format, stmt, err := s.load(ctx, req.Upload)
	if err != nil {
		return nil, s.fail(span, err)
	}

	account := req.AccountNumber
	if account == "" {
		if len(stmt.AccountXns) == 0 || stmt.AccountXns[0].AccountNo == "" {
			return nil, s.fail(span, dErrors.New(dErrors.CodeInvalidInput, "no account number found in statement"))
		}
		account, err = id.ParseAccountNumber(stmt.AccountXns[0].AccountNo)
		if err != nil {
			return nil, s.fail(span, err)
		}
	}

	owner := anonymizer.Owner{UserID: req.UserID, RealmID: req.RealmID}
	sections, err := s.anonymizer.Tokenize(owner, stmt, req.HashType)
	if err != nil {
		return nil, s.fail(span, err)
	}
	corrReq := correlation.Request{
		UserID:        req.UserID,
		RealmID:       req.RealmID,
		AccountNumber: account,
		HashType:      req.HashType,
		Accounts:      accountRefs(stmt),
		Customers:     stmt.CustomerDetails,
	}
	for _, at := range sections {
		if at.AccountNumber != account {
			continue
		}
		corrReq.Tokens = at.TokenValues()
		if at.Statement != nil {
			corrReq.StatementToken = at.Statement.Token
		}
		break
	}

	report, err := s.engine.Correlate(ctx, corrReq)
	if err != nil {
		s.logger.ErrorContext(ctx, "correlation failed",
			"user_id", req.UserID.String(),
			"hash_type", req.HashType.String(),
			"error", err,
		)
		return nil, s.fail(span, err)
	}

	s.metrics.IncStatement("dedupe", format.Provider().String())
	s.metrics.IncOutcome(string(report.Status), req.HashType.String())
	s.metrics.ObserveOperation("dedupe", time.Since(start))
	span.SetAttributes(attribute.String("status", string(report.Status)))

	if report.Status != s.engine.Bands().Lowest().Status {
		s.flag(ctx, report)
	}
	s.logger.InfoContext(ctx, "dedupe completed",
		"user_id", req.UserID.String(),
		"realm_id", req.RealmID.String(),
		"hash_type", req.HashType.String(),
		"status", string(report.Status),
		"match_groups", len(report.Groups),
		"request_id", requestcontext.RequestID(ctx),
	)
	return report, nil
}

func (s *Service) flag(ctx context.Context, report *models.CorrelationReport) {
	if s.publisher == nil {
		return
	}
	event := models.FlagEvent{
		EventID:         uuid.New(),
		UserID:          report.UserID,
		RealmID:         report.RealmID,
		AccountMasked:   report.AccountNumber.Masked(),
		HashType:        report.HashType,
		Status:          report.Status,
		TopMatchScore:   report.TopScore(),
		MatchedAccounts: matchedAccounts(report),
		OccurredAt:      report.GeneratedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish flag event",
			"event_id", event.EventID.String(),
			"user_id", report.UserID.String(),
			"status", string(report.Status),
			"error", err,
		)
	}
}

func (s *Service) load(ctx context.Context, up Upload) (provider.Format, *models.Statement, error) {
	if len(bytes.TrimSpace(up.Body)) == 0 {
		return provider.FormatUnknown, nil, dErrors.New(dErrors.CodeInvalidInput, "bank statement file cannot be empty")
	}
	format, err := provider.Detect(up.Filename, up.ContentType, up.Body)
	if err != nil {
		s.logger.WarnContext(ctx, "unsupported bank statement",
			"file_name", up.Filename,
			"content_type", up.ContentType,
			"format", format.String(),
			"error", err,
		)
		return format, nil, err
	}
	stmt, err := s.extractor.Extract(format, up.Body)
	if err != nil {
		return format, nil, err
	}
	return format, stmt, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

// customerOf returns the details aligned with account, or the first entry.
func customerOf(stmt *models.Statement, account id.AccountNumber) models.CustomerDetails {
	idx := stmt.AccountIndex(account.String())
	if idx < 0 {
		idx = 0
	}
	return stmt.Customer(idx)
}

// accountRefs keeps positions aligned with the customer details; an
// unparseable account number stays empty so it never matches.
func accountRefs(stmt *models.Statement) []models.AccountRef {
	out := make([]models.AccountRef, 0, len(stmt.AccountXns))
	for i, a := range stmt.AccountXns {
		account, _ := id.ParseAccountNumber(a.AccountNo)
		out = append(out, models.AccountRef{
			AccountNumber: account,
			BankName:      stmt.Customer(i).BankName,
		})
	}
	return out
}

func matchedAccounts(r *models.CorrelationReport) int {
	seen := make(map[id.AccountNumber]struct{})
	for _, e := range r.Transactions {
		seen[e.CounterpartyAccount] = struct{}{}
	}
	for _, e := range r.Statements {
		seen[e.CounterpartyAccount] = struct{}{}
	}
	return len(seen)
}
