package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtguard/internal/anonymizer/pathspec"
)

const statement = `{
  "customerInfo": {"name": "Meera Iyer", "mobile": "9811122233", "pan": "AAAPL1234C", "bank": "Axis Bank"},
  "accountXns": [{
    "accountNo": "917010045678123",
    "xns": [
      {"date": "2024-05-01", "narration": "SALARY MAY", "amount": 81000, "balance": 95000},
      {"date": "2024-05-04", "narration": "EMI HOME LOAN", "amount": -32000, "balance": 63000}
    ]
  }]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.json")
	require.NoError(t, os.WriteFile(path, []byte(statement), 0o600))
	return path
}

func TestSpecsListsBuiltins(t *testing.T) {
	out, err := run(t, "specs")
	require.NoError(t, err)
	assert.Contains(t, out, pathspec.CanonicalAccountXns)
	assert.Contains(t, out, "template")
}

func TestTokenizeIsDeterministic(t *testing.T) {
	file := writeStatement(t)

	first, err := run(t, "tokenize", file, "--hash-type", "ACCOUNT_XNS")
	require.NoError(t, err)
	second, err := run(t, "tokenize", file, "--hash-type", "account_xns")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var tokens []tokenOutput
	require.NoError(t, json.Unmarshal([]byte(first), &tokens))
	require.Len(t, tokens, 1)
	assert.Len(t, tokens[0].Transactions, 2)
	assert.NotEmpty(t, tokens[0].Statement)
	assert.NotContains(t, tokens[0].AccountNumber, "917010045")
}

func TestTokenizeRejectsUnknownHashType(t *testing.T) {
	_, err := run(t, "tokenize", writeStatement(t), "--hash-type", "LEDGER")
	assert.Error(t, err)
}

func TestIngestThenDedupeFromAnotherUser(t *testing.T) {
	file := writeStatement(t)
	index := filepath.Join(t.TempDir(), "index")

	_, err := run(t, "--index", index, "ingest", file, "--user", "11", "--realm", "lender-a")
	require.NoError(t, err)

	out, err := run(t, "--index", index, "dedupe", file, "--user", "12", "--realm", "lender-b")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "RED", report.Status)
}

func TestDedupeRequiresOwner(t *testing.T) {
	_, err := run(t, "dedupe", writeStatement(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTokenMintsJWT(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "local-test-key")
	out, err := run(t, "token", "--subject", "ops", "--realm", "lender-a")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestFlattenPrintsOneLinePerTransaction(t *testing.T) {
	out, err := run(t, "flatten", pathspec.PerfiosBankTransaction, writeStatement(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2024-05-01")
	assert.Contains(t, lines[1], "2024-05-04")
}

func TestFlattenUnknownSpec(t *testing.T) {
	_, err := run(t, "flatten", "NOPE/v1/X", writeStatement(t))
	assert.ErrorContains(t, err, "unknown path spec")
}
