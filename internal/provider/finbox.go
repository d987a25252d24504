package provider

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/models"
)

// finbox extracts every entry of accounts[] with the bound Finbox tables.
// Debits carry positive amounts upstream and are negated here.
func (e *Extractor) finbox(raw []byte) (*models.Statement, error) {
	doc, err := flatten.Decode(raw)
	if err != nil {
		return nil, err
	}
	stmt := emptyStatement()
	for i := 0; i < arrayLen(doc, "accounts"); i++ {
		base := fmt.Sprintf("$.accounts[%d].data.", i)

		details, err := e.flattenBound(doc, pathspec.FinboxAccountDetails, i)
		if err != nil {
			return nil, err
		}
		var d map[string]string
		if len(details) > 0 {
			d = fieldsOf(details[0], base+"account_details.")
		}
		accountNo := d["account_number"]

		stmt.CustomerDetails = append(stmt.CustomerDetails, models.CustomerDetails{
			Name:         d["name"],
			MobileNo:     d["phone_number"],
			PAN:          d["pan_number"],
			AadharMasked: d["aadhar_masked"],
			BankName:     d["bank"],
		})

		records, err := e.flattenBound(doc, pathspec.FinboxDataTransaction, i)
		if err != nil {
			return nil, err
		}
		xns := make([]models.Xn, 0, len(records))
		txns := make([]models.BankTransaction, 0, len(records))
		for _, r := range records {
			f := fieldsOf(r, base+"transactions[*].")
			amount, err := normalizeAmount(f["amount"], f["transaction_type"] == "debit")
			if err != nil {
				return nil, err
			}
			balance, err := normalizeAmount(f["balance"], false)
			if err != nil {
				return nil, err
			}
			date := truncateDate(f["date"])
			xns = append(xns, models.Xn{Date: date, Amount: amount, Balance: balance, Narration: f["transaction_note"]})
			txns = append(txns, models.BankTransaction{Date: date, Amount: amount, Balance: balance})
		}

		stmt.AccountXns = append(stmt.AccountXns, models.AccountXns{
			AccountNo:   accountNo,
			AccountType: d["account_category"],
			Xns:         xns,
		})
		stmt.BankTransactions = append(stmt.BankTransactions, models.BankTransactionSet{
			AccountNo:    accountNo,
			Transactions: txns,
		})

		balances, err := e.finboxEOD(doc, i)
		if err != nil {
			return nil, err
		}
		stmt.EOD = append(stmt.EOD, models.EODAccount{AccountNo: accountNo, Balances: balances})
	}
	return stmt, nil
}

// finboxEOD expands eod_balances, keyed by month ("Jan-24") with one balance
// per day, into dated balances in calendar order. Keys that are not months
// are ignored; days beyond the month's length are dropped.
func (e *Extractor) finboxEOD(doc any, index int) ([]models.EODBalance, error) {
	months := finboxEODMonths(doc, index)
	keys := make([]string, 0, len(months))
	starts := make(map[string]time.Time, len(months))
	for k := range months {
		start, ok := parseMonthKey(k)
		if !ok {
			if k != "Months_order" && k != "start_date" {
				e.logger.Debug("ignoring eod balance key", "key", k)
			}
			continue
		}
		keys = append(keys, k)
		starts[k] = start
	}
	sort.Slice(keys, func(i, j int) bool { return starts[keys[i]].Before(starts[keys[j]]) })

	out := []models.EODBalance{}
	for _, k := range keys {
		days, _ := months[k].([]any)
		start := starts[k]
		limit := start.AddDate(0, 1, -1).Day()
		for day, v := range days {
			if day >= limit {
				break
			}
			balance, err := normalizeAmount(scalarText(v), false)
			if err != nil {
				return nil, err
			}
			if balance == "" {
				balance = "0"
			}
			out = append(out, models.EODBalance{
				Date:    start.AddDate(0, 0, day).Format(time.DateOnly),
				Balance: balance,
			})
		}
	}
	return out, nil
}

func finboxEODMonths(doc any, index int) map[string]any {
	root, _ := doc.(map[string]any)
	accounts, _ := root["accounts"].([]any)
	if index >= len(accounts) {
		return nil
	}
	account, _ := accounts[index].(map[string]any)
	data, _ := account["data"].(map[string]any)
	months, _ := data["eod_balances"].(map[string]any)
	return months
}

// parseMonthKey reads "Jan-24" as the first day of January 2024.
func parseMonthKey(k string) (time.Time, bool) {
	name, yy, ok := strings.Cut(k, "-")
	if !ok || len(yy) != 2 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi("20" + yy)
	if err != nil {
		return time.Time{}, false
	}
	month, err := time.Parse("Jan", name)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
