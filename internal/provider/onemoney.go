package provider

import (
	"fmt"

	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/models"
)

// oneMoney extracts every entry of data[]. Account aggregator feeds carry no
// end-of-day balances, so the EOD section stays empty.
func (e *Extractor) oneMoney(raw []byte) (*models.Statement, error) {
	doc, err := flatten.Decode(raw)
	if err != nil {
		return nil, err
	}
	stmt := emptyStatement()
	for i := 0; i < arrayLen(doc, "data"); i++ {
		base := fmt.Sprintf("$.data[%d].", i)

		profile, err := e.flattenBound(doc, pathspec.OneMoneyProfile, i)
		if err != nil {
			return nil, err
		}
		var p map[string]string
		if len(profile) > 0 {
			p = fieldsOf(profile[0], base)
		}
		accountNo := p["maskedAccNumber"]

		stmt.CustomerDetails = append(stmt.CustomerDetails, models.CustomerDetails{
			Name:         p["Profile.Holders.Holder.name"],
			MobileNo:     p["Profile.Holders.Holder.mobile"],
			PAN:          p["Profile.Holders.Holder.pan"],
			AadharMasked: p["Profile.Holders.Holder.aadharMasked"],
			BankName:     p["fipName"],
		})

		records, err := e.flattenBound(doc, pathspec.OneMoneyTransaction, i)
		if err != nil {
			return nil, err
		}
		xns := make([]models.Xn, 0, len(records))
		txns := make([]models.BankTransaction, 0, len(records))
		for _, r := range records {
			f := fieldsOf(r, base+"Transactions.Transaction[*].")
			amount, err := normalizeAmount(f["amount"], f["type"] == "DEBIT")
			if err != nil {
				return nil, err
			}
			balance, err := normalizeAmount(f["currentBalance"], false)
			if err != nil {
				return nil, err
			}
			xns = append(xns, models.Xn{Date: f["valueDate"], Amount: amount, Balance: balance, Narration: f["narration"]})
			txns = append(txns, models.BankTransaction{Date: f["valueDate"], Amount: amount, Balance: balance})
		}

		stmt.AccountXns = append(stmt.AccountXns, models.AccountXns{
			AccountNo:   accountNo,
			AccountType: p["Summary.type"],
			Xns:         xns,
		})
		stmt.BankTransactions = append(stmt.BankTransactions, models.BankTransactionSet{
			AccountNo:    accountNo,
			Transactions: txns,
		})
	}
	return stmt, nil
}
