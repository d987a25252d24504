package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"stmtguard/internal/anonymizer"
	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/dedupe/correlation"
	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/ports"
	"stmtguard/internal/dedupe/ports/mocks"
	"stmtguard/internal/dedupe/store/memory"
	"stmtguard/internal/provider"
	id "stmtguard/pkg/domain"
	dErrors "stmtguard/pkg/domain-errors"
	"stmtguard/pkg/requestcontext"
)

const perfiosStatement = `{
  "customerInfo": {"name": "Ravi Kumar", "mobile": "9876543210", "pan": "ABCDE1234F", "bank": "HDFC Bank"},
  "accountXns": [{
    "accountNo": "50100012345678",
    "accountType": "SAVINGS",
    "xns": [
      {"date": "2024-01-01", "narration": "SALARY JAN", "amount": 50000.00, "balance": 75000.50},
      {"date": "2024-01-03", "narration": "UPI/SWIGGY", "amount": -450, "balance": 74550.5}
    ]
  }],
  "accountAnalysis": [{"eODBalances": [{"date": "2024-01-01", "balance": 75000.5}]}]
}`

// =============================================================================
// Service Test Suite
// =============================================================================
// Justification: the service is glue between detection, extraction,
// tokenization, correlation and storage. Real components run against the
// in-memory index; only the publisher (and the store in failure cases) is
// mocked.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockEventPublisher
	index     *memory.Store
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.index = memory.New()
	s.service = s.build(s.index)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// build wires real components; store receives the batches, the memory index
// answers lookups.
func (s *ServiceSuite) build(store ports.TokenStore) *Service {
	f, err := flatten.New(flatten.NewPathMapCache())
	s.Require().NoError(err)
	extractor, err := provider.New(f)
	s.Require().NoError(err)
	anon, err := anonymizer.New(f)
	s.Require().NoError(err)
	engine, err := correlation.New(s.index, s.index)
	s.Require().NoError(err)
	svc, err := New(extractor, anon, engine, store, WithPublisher(s.publisher))
	s.Require().NoError(err)
	return svc
}

func upload(body string) Upload {
	return Upload{Filename: "statement.json", ContentType: "application/json", Body: []byte(body)}
}

func (s *ServiceSuite) ingest(user id.UserID, realm id.RealmID) *IngestResult {
	res, err := s.service.Ingest(s.ctx, IngestRequest{
		UserID:  user,
		RealmID: realm,
		Upload:  upload(perfiosStatement),
	})
	s.Require().NoError(err)
	return res
}

// =============================================================================
// Ingest
// =============================================================================

func (s *ServiceSuite) TestIngestPersistsEverySection() {
	res := s.ingest(1, "lender-a")

	s.Equal(models.ProviderPerfios, res.Provider)
	s.Require().Len(res.Accounts, 3)
	for _, a := range res.Accounts {
		s.Equal(id.AccountNumber("50100012345678"), a.AccountNumber)
		s.Equal("HDFC Bank", a.BankName)
		s.NotEmpty(a.StatementToken)
	}
	s.Equal(models.HashTypeBankTransaction, res.Accounts[0].HashType)
	s.Equal(2, res.Accounts[0].Transactions)
	s.Equal(1, res.Accounts[2].Transactions)

	accounts, err := s.index.ListOtherAccounts(s.ctx, 1, "lender-a")
	s.Require().NoError(err)
	s.Equal([]models.AccountRef{{AccountNumber: "50100012345678", BankName: "HDFC Bank"}}, accounts)
}

func (s *ServiceSuite) TestIngestFillsBatchMetadata() {
	store := mocks.NewMockTokenStore(s.ctrl)
	svc := s.build(store)

	var batches []models.TokenBatch
	store.EXPECT().Persist(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b models.TokenBatch) error {
			batches = append(batches, b)
			return nil
		}).Times(3)

	ctx := requestcontext.WithCaller(s.ctx, requestcontext.Caller{Subject: "ops@lender-a"})
	_, err := svc.Ingest(ctx, IngestRequest{
		UserID:     9,
		RealmID:    "lender-a",
		SourceType: models.SourceRealTime,
		MediaLink:  "s3://bucket/statement.json",
		Upload:     upload(perfiosStatement),
	})
	s.Require().NoError(err)

	s.Require().Len(batches, 3)
	b := batches[0]
	s.Equal(models.ProviderPerfios, b.Provider)
	s.Equal(models.SourceRealTime, b.SourceType)
	s.Equal("9876543210", b.PhoneNumber)
	s.Equal("s3://bucket/statement.json", b.MediaLink)
	s.Equal("ops@lender-a", b.CreatedBy)
	s.Equal(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), b.CreatedAt)
}

func (s *ServiceSuite) TestIngestStoreFailureIsUnavailable() {
	store := mocks.NewMockTokenStore(s.ctrl)
	svc := s.build(store)
	store.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	_, err := svc.Ingest(s.ctx, IngestRequest{UserID: 1, RealmID: "lender-a", Upload: upload(perfiosStatement)})

	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestIngestRejectsBadUploads() {
	tests := []struct {
		name   string
		upload Upload
		code   dErrors.Code
	}{
		{"empty body", upload("  "), dErrors.CodeInvalidInput},
		{"truncated excel workbook", Upload{Filename: "s.xlsx", Body: []byte("PK\x03\x04")}, dErrors.CodeInvalidInput},
		{"unknown provider", upload(`{"statement": []}`), dErrors.CodeUnsupported},
		{"statement without accounts", upload(`{"accountXns": []}`), dErrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Ingest(s.ctx, IngestRequest{UserID: 1, RealmID: "lender-a", Upload: tt.upload})
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

// =============================================================================
// Dedupe
// =============================================================================

func (s *ServiceSuite) TestDedupeSameStatementFromAnotherUserIsRed() {
	s.ingest(1, "lender-a")

	var event models.FlagEvent
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.FlagEvent) error {
			event = e
			return nil
		})

	report, err := s.service.Dedupe(s.ctx, DedupeRequest{UserID: 2, RealmID: "lender-b", Upload: upload(perfiosStatement)})
	s.Require().NoError(err)

	s.Equal(models.StatusRed, report.Status)
	s.Equal(id.AccountNumber("50100012345678"), report.AccountNumber)
	s.Equal("Ravi Kumar", report.Customer.Name)
	s.Require().Len(report.Transactions, 1)
	s.Equal(100.0, report.Transactions[0].MatchScore)
	s.Equal(id.UserID(1), report.Transactions[0].CounterpartyUserID)
	s.Require().Len(report.Statements, 1)
	s.Empty(report.Remarks)

	s.Equal(models.StatusRed, event.Status)
	s.Equal(id.UserID(2), event.UserID)
	s.Equal("XXXXXXXXXX5678", event.AccountMasked)
	s.Equal(1, event.MatchedAccounts)
	s.Equal(100.0, event.TopMatchScore)
}

func (s *ServiceSuite) TestDedupeOwnStatementIsGreen() {
	s.ingest(1, "lender-a")

	report, err := s.service.Dedupe(s.ctx, DedupeRequest{UserID: 1, RealmID: "lender-a", Upload: upload(perfiosStatement)})
	s.Require().NoError(err)

	s.Equal(models.StatusGreen, report.Status)
	s.Equal("No matching records found for the user 1.", report.Remarks)
	s.Empty(report.OtherAccounts, "the requested account is not its own other account")
}

func (s *ServiceSuite) TestDedupePublishFailureDoesNotFailRequest() {
	s.ingest(1, "lender-a")
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	report, err := s.service.Dedupe(s.ctx, DedupeRequest{UserID: 2, RealmID: "lender-b", Upload: upload(perfiosStatement)})

	s.Require().NoError(err)
	s.Equal(models.StatusRed, report.Status)
}

func (s *ServiceSuite) TestDedupeUnknownAccountHasNoTokens() {
	s.ingest(1, "lender-a")

	report, err := s.service.Dedupe(s.ctx, DedupeRequest{
		UserID:        2,
		RealmID:       "lender-b",
		AccountNumber: "999",
		HashType:      models.HashTypeAccountXns,
		Upload:        upload(perfiosStatement),
	})
	s.Require().NoError(err)

	s.Equal(models.StatusGreen, report.Status)
	s.Equal("Ravi Kumar", report.Customer.Name, "falls back to the first customer")
}

func (s *ServiceSuite) TestDedupePaddedAccountNumberResolvesRequestedAccount() {
	padded := strings.Replace(perfiosStatement, `"50100012345678"`, `"  50100012345678 "`, 1)

	report, err := s.service.Dedupe(s.ctx, DedupeRequest{UserID: 2, RealmID: "lender-b", Upload: upload(padded)})
	s.Require().NoError(err)

	s.Equal(id.AccountNumber("50100012345678"), report.AccountNumber)
	s.Equal([]models.AccountRef{{AccountNumber: "50100012345678", BankName: "HDFC Bank"}}, report.Accounts)
}

func (s *ServiceSuite) TestDedupeRejectsInvalidHashType() {
	_, err := s.service.Dedupe(s.ctx, DedupeRequest{UserID: 2, RealmID: "lender-b", HashType: 7, Upload: upload(perfiosStatement)})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, nil, nil, nil)
	s.Error(err)
}
