package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"stmtguard/internal/dedupe/models"
	dErrors "stmtguard/pkg/domain-errors"
)

// Scoreme workbook layout, zero-based. The summary sheet carries the
// customer block, the second sheet the transaction ledger and the tenth the
// monthly EOD grid.
const (
	scoremeSummarySheet = 0
	scoremeLedgerSheet  = 1
	scoremeEODSheet     = 9

	scoremeNameRow     = 6
	scoremeNameFirst   = 4
	scoremeNameLast    = 7
	scoremeBankRow     = 8
	scoremeAccountRow  = 9
	scoremeTypeRow     = 12
	scoremeSummaryCol  = 6
	scoremeNamePrefix  = "Bank Statement Analysis Report - "
	scoremeLedgerStart = 5

	colDate      = 2
	colNarration = 3
	colDebit     = 5
	colCredit    = 6
	colBalance   = 7

	scoremeEODHeader   = 5
	scoremeEODStart    = 7
	scoremeEODMonthCol = 1
	scoremeEODFirstCol = 9
	scoremeEODLastCol  = 15

	scoremeLedgerDate = "02-Jan-2006"
	eodLastDayKey     = "Last Day"
)

// eodDayKeys are the EOD grid headers in calendar order.
var eodDayKeys = []string{"1", "5", "10", "15", "20", "25", eodLastDayKey}

// scoreme reads the analysis workbook. The ledger's last row holds totals and
// is skipped, as are rows with no date and no amounts.
func (e *Extractor) scoreme(raw []byte) (*models.Statement, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unreadable excel workbook")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("close workbook", "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) <= scoremeLedgerSheet {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "scoreme workbook has no transaction sheet")
	}
	summary := sheets[scoremeSummarySheet]

	name, err := scoremeName(f, summary)
	if err != nil {
		return nil, err
	}
	bank, err := cellText(f, summary, scoremeBankRow, scoremeSummaryCol)
	if err != nil {
		return nil, err
	}
	accountNo, err := cellText(f, summary, scoremeAccountRow, scoremeSummaryCol)
	if err != nil {
		return nil, err
	}
	accountType, err := cellText(f, summary, scoremeTypeRow, scoremeSummaryCol)
	if err != nil {
		return nil, err
	}

	xns, err := e.scoremeLedger(f, sheets[scoremeLedgerSheet])
	if err != nil {
		return nil, err
	}
	balances := []models.EODBalance{}
	if len(sheets) > scoremeEODSheet {
		if balances, err = e.scoremeEOD(f, sheets[scoremeEODSheet]); err != nil {
			return nil, err
		}
	} else {
		e.logger.Debug("scoreme workbook has no eod sheet", "sheets", len(sheets))
	}

	txns := make([]models.BankTransaction, 0, len(xns))
	for _, x := range xns {
		txns = append(txns, models.BankTransaction{Date: x.Date, Amount: x.Amount, Balance: x.Balance})
	}

	stmt := emptyStatement()
	stmt.CustomerDetails = append(stmt.CustomerDetails, models.CustomerDetails{Name: name, BankName: bank})
	stmt.AccountXns = append(stmt.AccountXns, models.AccountXns{AccountNo: accountNo, AccountType: accountType, Xns: xns})
	stmt.EOD = append(stmt.EOD, models.EODAccount{AccountNo: accountNo, Balances: balances})
	stmt.BankTransactions = append(stmt.BankTransactions, models.BankTransactionSet{AccountNo: accountNo, Transactions: txns})
	return stmt, nil
}

// scoremeName reads the report title merged across E7:H7. An unmerged title
// cell is read directly.
func scoremeName(f *excelize.File, sheet string) (string, error) {
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "read merged cells")
	}
	title := ""
	found := false
	for _, m := range merged {
		startCol, startRow, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		endCol, _, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		if startRow-1 == scoremeNameRow && startCol-1 >= scoremeNameFirst && endCol-1 <= scoremeNameLast {
			title, found = m.GetCellValue(), true
			break
		}
	}
	if !found {
		if title, err = cellText(f, sheet, scoremeNameRow, scoremeNameFirst); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(strings.Replace(title, scoremeNamePrefix, "", 1)), nil
}

func (e *Extractor) scoremeLedger(f *excelize.File, sheet string) ([]models.Xn, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read scoreme ledger")
	}
	xns := []models.Xn{}
	for i := scoremeLedgerStart; i < len(rows)-1; i++ {
		row := rows[i]
		date := rowCell(row, colDate)
		debit, credit := rowCell(row, colDebit), rowCell(row, colCredit)
		if date == "" && blankAmount(debit) && blankAmount(credit) {
			continue
		}
		amount, err := mergeDebitCredit(debit, credit)
		if err != nil {
			return nil, err
		}
		xns = append(xns, models.Xn{
			Date:      ledgerDate(date),
			Amount:    amount,
			Balance:   absoluteBalance(rowCell(row, colBalance)),
			Narration: rowCell(row, colNarration),
		})
	}
	e.logger.Debug("scoreme ledger read", "sheet", sheet, "rows", len(xns))
	return xns, nil
}

// scoremeEOD expands the monthly grid into dated balances. Rows from the
// eighth up to, but excluding, the last are months; the header row names the
// day each column holds.
func (e *Extractor) scoremeEOD(f *excelize.File, sheet string) ([]models.EODBalance, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read scoreme eod")
	}
	out := []models.EODBalance{}
	if len(rows) <= scoremeEODStart+1 {
		return out, nil
	}
	header := rows[scoremeEODHeader]
	for i := scoremeEODStart; i < len(rows)-1; i++ {
		row := rows[i]
		start, ok := parseMonthYear(rowCell(row, scoremeEODMonthCol))
		if !ok {
			continue
		}
		byDay := make(map[string]string, scoremeEODLastCol-scoremeEODFirstCol+1)
		for c := scoremeEODFirstCol; c <= scoremeEODLastCol; c++ {
			if key := rowCell(header, c); key != "" {
				byDay[key] = rowCell(row, c)
			}
		}
		for _, key := range eodDayKeys {
			v := byDay[key]
			if v == "" {
				continue
			}
			day := start.AddDate(0, 1, -1).Day()
			if key != eodLastDayKey {
				day, _ = strconv.Atoi(key)
			}
			out = append(out, models.EODBalance{
				Date:    time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly),
				Balance: digitsBalance(v),
			})
		}
	}
	return out, nil
}

// mergeDebitCredit signs the ledger amount: a credit wins, otherwise the
// debit is negated. "-" marks an empty side.
func mergeDebitCredit(debit, credit string) (json.Number, error) {
	switch {
	case !blankAmount(credit):
		return normalizeAmount(credit, false)
	case !blankAmount(debit):
		return normalizeAmount(debit, true)
	}
	return "", nil
}

func blankAmount(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}

// ledgerDate rewrites 02-Jan-2006 dates as ISO dates and keeps anything else
// as written.
func ledgerDate(s string) string {
	t, err := time.Parse(scoremeLedgerDate, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.Format(time.DateOnly)
}

// absoluteBalance drops the sign and thousands separators. Unreadable
// balances become zero.
func absoluteBalance(s string) json.Number {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0"
	}
	return json.Number(d.Abs().String())
}

// digitsBalance keeps only digits and the decimal point, so currency marks
// and signs in the EOD grid are ignored.
func digitsBalance(s string) json.Number {
	kept := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	d, err := decimal.NewFromString(kept)
	if err != nil {
		return "0"
	}
	return json.Number(d.String())
}

// parseMonthYear reads "Jan 2024" as the first day of that month.
func parseMonthYear(s string) (time.Time, bool) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return time.Time{}, false
	}
	month, err := time.Parse("Jan", parts[0])
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

func rowCell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

// cellText reads a zero-based cell.
func cellText(f *excelize.File, sheet string, row, col int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "cell reference")
	}
	v, err := f.GetCellValue(sheet, name)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "read cell "+name)
	}
	return strings.TrimSpace(v), nil
}
