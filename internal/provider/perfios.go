package provider

import (
	"bytes"
	"encoding/json"

	"stmtguard/internal/dedupe/models"
	dErrors "stmtguard/pkg/domain-errors"
)

// text accepts a JSON string, number or boolean; null stays empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		*t = text(b)
	}
	return nil
}

type perfiosReport struct {
	CustomerInfo struct {
		Name         text `json:"name"`
		Mobile       text `json:"mobile"`
		PAN          text `json:"pan"`
		AadharMasked text `json:"aadharMasked"`
		Bank         text `json:"bank"`
	} `json:"customerInfo"`
	AccountXns []struct {
		AccountNo   text `json:"accountNo"`
		AccountType text `json:"accountType"`
		Xns         []struct {
			Date      text        `json:"date"`
			Amount    json.Number `json:"amount"`
			Balance   json.Number `json:"balance"`
			Narration text        `json:"narration"`
		} `json:"xns"`
	} `json:"accountXns"`
	AccountAnalysis []struct {
		AccountNo   text `json:"accountNo"`
		EODBalances []struct {
			Date    text        `json:"date"`
			Balance json.Number `json:"balance"`
		} `json:"eODBalances"`
	} `json:"accountAnalysis"`
}

func (e *Extractor) perfios(raw []byte) (*models.Statement, error) {
	var r perfiosReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed perfios statement")
	}
	return e.fromPerfios(&r)
}

func (e *Extractor) perfiosNinjacart(raw []byte) (*models.Statement, error) {
	var doc struct {
		Report perfiosReport `json:"report"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed perfios statement")
	}
	return e.fromPerfios(&doc.Report)
}

// fromPerfios repeats the single customerInfo block per account. EOD entries
// are matched to accounts by position when they carry no account number.
func (e *Extractor) fromPerfios(r *perfiosReport) (*models.Statement, error) {
	stmt := emptyStatement()
	accountNos := make([]string, 0, len(r.AccountXns))

	for _, acc := range r.AccountXns {
		stmt.CustomerDetails = append(stmt.CustomerDetails, models.CustomerDetails{
			Name:         string(r.CustomerInfo.Name),
			MobileNo:     string(r.CustomerInfo.Mobile),
			PAN:          string(r.CustomerInfo.PAN),
			AadharMasked: string(r.CustomerInfo.AadharMasked),
			BankName:     string(r.CustomerInfo.Bank),
		})
		accountNos = append(accountNos, string(acc.AccountNo))

		xns := make([]models.Xn, 0, len(acc.Xns))
		txns := make([]models.BankTransaction, 0, len(acc.Xns))
		for _, x := range acc.Xns {
			amount, err := normalizeAmount(x.Amount.String(), false)
			if err != nil {
				return nil, err
			}
			balance, err := normalizeAmount(x.Balance.String(), false)
			if err != nil {
				return nil, err
			}
			xns = append(xns, models.Xn{
				Date:      string(x.Date),
				Amount:    amount,
				Balance:   balance,
				Narration: string(x.Narration),
			})
			txns = append(txns, models.BankTransaction{Date: string(x.Date), Amount: amount, Balance: balance})
		}
		stmt.AccountXns = append(stmt.AccountXns, models.AccountXns{
			AccountNo:   string(acc.AccountNo),
			AccountType: string(acc.AccountType),
			Xns:         xns,
		})
		stmt.BankTransactions = append(stmt.BankTransactions, models.BankTransactionSet{
			AccountNo:    string(acc.AccountNo),
			Transactions: txns,
		})
	}

	for i, analysis := range r.AccountAnalysis {
		accountNo := string(analysis.AccountNo)
		if accountNo == "" {
			if i >= len(accountNos) {
				e.logger.Warn("skipping eod balances without a matching account",
					"analysis_index", i,
				)
				continue
			}
			accountNo = accountNos[i]
		}
		balances := make([]models.EODBalance, 0, len(analysis.EODBalances))
		for _, b := range analysis.EODBalances {
			balance, err := normalizeAmount(b.Balance.String(), false)
			if err != nil {
				return nil, err
			}
			balances = append(balances, models.EODBalance{Date: string(b.Date), Balance: balance})
		}
		stmt.EOD = append(stmt.EOD, models.EODAccount{AccountNo: accountNo, Balances: balances})
	}
	return stmt, nil
}
