package provider

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/dedupe/models"
	dErrors "stmtguard/pkg/domain-errors"
)

// Justification for unit tests: the workbook layout is positional, so each
// edge case is built cell by cell rather than kept as another binary fixture.

type cell struct {
	ref   string
	value any
}

// workbook writes a Scoreme-shaped workbook with the given number of sheets.
// Sheet indexes key the cells.
func workbook(t *testing.T, sheets int, cells map[int][]cell, merges ...[2]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	names := []string{"Sheet1"}
	for i := 1; i < sheets; i++ {
		name := fmt.Sprintf("Sheet%d", i+1)
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		names = append(names, name)
	}
	for idx, cs := range cells {
		for _, c := range cs {
			require.NoError(t, f.SetCellValue(names[idx], c.ref, c.value))
		}
	}
	for _, m := range merges {
		require.NoError(t, f.MergeCell(names[0], m[0], m[1]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func summaryCells(title string) []cell {
	return []cell{
		{"E7", title},
		{"G9", "Axis Bank"},
		{"G10", "917010012345"},
		{"G13", "CURRENT"},
	}
}

func newScoremeExtractor(t *testing.T) *Extractor {
	t.Helper()
	f, err := flatten.New(flatten.NewPathMapCache())
	require.NoError(t, err)
	e, err := New(f)
	require.NoError(t, err)
	return e
}

// =============================================================================
// Ledger
// =============================================================================

func TestScoremeLedgerRows(t *testing.T) {
	raw := workbook(t, 2, map[int][]cell{
		0: summaryCells("Bank Statement Analysis Report - Asha Rao"),
		1: {
			{"C5", "Date"},
			{"C6", "05-Feb-2024"}, {"D6", "NEFT IN"}, {"F6", "-"}, {"G6", "1,200.00"}, {"H6", "-3,400.25"},
			{"C8", "2024/02/07"}, {"D8", "ATM"}, {"F8", 500}, {"G8", ""}, {"H8", "n/a"},
			{"C9", "08-Feb-2024"}, {"D9", "REVERSAL"}, {"F9", "-"}, {"G9", "-"}, {"H9", "2,900.25"},
			{"D10", "Total"}, {"F10", 500}, {"G10", "1,200.00"},
		},
	}, [2]string{"E7", "H7"})

	stmt, err := newScoremeExtractor(t).Extract(FormatScoreme, raw)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", stmt.CustomerDetails[0].Name)
	assert.Equal(t, "CURRENT", stmt.AccountXns[0].AccountType)
	assert.Equal(t, []models.Xn{
		{Date: "2024-02-05", Amount: "1200", Balance: "3400.25", Narration: "NEFT IN"},
		{Date: "2024/02/07", Amount: "-500", Balance: "0", Narration: "ATM"},
		{Date: "2024-02-08", Balance: "2900.25", Narration: "REVERSAL"},
	}, stmt.AccountXns[0].Xns, "blank row and totals row are skipped")
	assert.Equal(t, []models.BankTransaction{
		{Date: "2024-02-05", Amount: "1200", Balance: "3400.25"},
		{Date: "2024/02/07", Amount: "-500", Balance: "0"},
		{Date: "2024-02-08", Balance: "2900.25"},
	}, stmt.BankTransactions[0].Transactions)
	assert.Equal(t, "917010012345", stmt.BankTransactions[0].AccountNo)
	assert.Empty(t, stmt.EOD[0].Balances, "workbook without an eod sheet")
}

func TestScoremeUnmergedTitle(t *testing.T) {
	raw := workbook(t, 2, map[int][]cell{0: summaryCells("Bank Statement Analysis Report - Asha Rao ")})

	stmt, err := newScoremeExtractor(t).Extract(FormatScoreme, raw)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", stmt.CustomerDetails[0].Name)
	assert.Empty(t, stmt.AccountXns[0].Xns)
}

func TestScoremeRejects(t *testing.T) {
	t.Run("single sheet", func(t *testing.T) {
		raw := workbook(t, 1, map[int][]cell{0: summaryCells("x")})
		_, err := newScoremeExtractor(t).Extract(FormatScoreme, raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("invalid credit", func(t *testing.T) {
		raw := workbook(t, 2, map[int][]cell{
			0: summaryCells("x"),
			1: {{"C6", "05-Feb-2024"}, {"G6", "12abc"}, {"D7", "Total"}},
		})
		_, err := newScoremeExtractor(t).Extract(FormatScoreme, raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// EOD grid
// =============================================================================

func TestScoremeEODColumnsFollowHeaders(t *testing.T) {
	raw := workbook(t, 10, map[int][]cell{
		0: summaryCells("x"),
		9: {
			{"B6", "Month/Year"}, {"J6", "Last Day"}, {"K6", "10"}, {"P6", "1"},
			{"B8", "Apr 2023"}, {"J8", "₹ -1,234.50"}, {"K8", "900"}, {"P8", "1,000"},
			{"B9", "Totals"}, {"J9", "5"},
			{"B10", "Feb 2023"}, {"J10", "700"},
			{"B11", "Average"}, {"J11", "1,000"},
		},
	})

	stmt, err := newScoremeExtractor(t).Extract(FormatScoreme, raw)
	require.NoError(t, err)

	assert.Equal(t, "917010012345", stmt.EOD[0].AccountNo)
	assert.Equal(t, []models.EODBalance{
		{Date: "2023-04-01", Balance: "1000"},
		{Date: "2023-04-10", Balance: "900"},
		{Date: "2023-04-30", Balance: "1234.5"},
		{Date: "2023-02-28", Balance: "700"},
	}, stmt.EOD[0].Balances, "unparseable months and the trailing row are skipped")
}

// =============================================================================
// Cell helpers
// =============================================================================

func TestMergeDebitCredit(t *testing.T) {
	tests := []struct {
		name          string
		debit, credit string
		want          json.Number
	}{
		{"credit wins", "10", "20", "20"},
		{"debit negated", "1,500.50", "-", "-1500.5"},
		{"blank credit", "7", " ", "-7"},
		{"both empty", "-", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mergeDebitCredit(tt.debit, tt.credit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMonthYear(t *testing.T) {
	got, ok := parseMonthYear("Dec 2024")
	require.True(t, ok)
	assert.Equal(t, "2024-12-01", got.Format("2006-01-02"))

	for _, bad := range []string{"", "Dec", "Month 2024", "Dec twenty"} {
		_, ok := parseMonthYear(bad)
		assert.False(t, ok, bad)
	}
}
