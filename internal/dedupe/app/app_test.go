package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/service"
	"stmtguard/internal/dedupe/store/memory"
)

const statement = `{
  "customerInfo": {"name": "Asha Rao", "mobile": "9000000001", "pan": "PQRSX9876K", "bank": "ICICI Bank"},
  "accountXns": [{
    "accountNo": "000401234567",
    "xns": [
      {"date": "2024-03-01", "narration": "NEFT RENT", "amount": -18000, "balance": 42000},
      {"date": "2024-03-02", "narration": "ATM", "amount": -2000, "balance": 40000}
    ]
  }]
}`

func TestNewWiresAWorkingPipeline(t *testing.T) {
	index := memory.New()
	c, err := New(index, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	up := service.Upload{Filename: "s.json", Body: []byte(statement)}
	_, err = c.Service.Ingest(ctx, service.IngestRequest{UserID: 1, RealmID: "r", Upload: up})
	require.NoError(t, err)

	report, err := c.Service.Dedupe(ctx, service.DedupeRequest{UserID: 2, RealmID: "r", Upload: up})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRed, report.Status)
}

func TestDisableCombinedSkipsStatementTokens(t *testing.T) {
	c, err := New(memory.New(), Options{DisableCombined: true})
	require.NoError(t, err)

	res, err := c.Service.Ingest(context.Background(), service.IngestRequest{
		UserID: 1, RealmID: "r",
		Upload: service.Upload{Filename: "s.json", Body: []byte(statement)},
	})
	require.NoError(t, err)
	for _, a := range res.Accounts {
		assert.Empty(t, a.StatementToken)
	}
}

func TestLoadCatalogExtendsBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`specs:
  - name: ACME/v2/BANK_TRANSACTION
    provider: ACME
    version: v2
    paths:
      - $.lines[*].date
      - $.lines[*].amount
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	_, ok := catalog.Lookup("ACME/v2/BANK_TRANSACTION")
	assert.True(t, ok)
	_, ok = catalog.Lookup(pathspec.CanonicalAccountXns)
	assert.True(t, ok)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
