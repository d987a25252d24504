package models

import (
	"encoding/json"
	"strings"
)

// Statement is the provider-neutral document every extractor produces.
// Sections hold one entry per account, aligned by position with
// CustomerDetails.
type Statement struct {
	CustomerDetails  []CustomerDetails    `json:"customerDetails"`
	AccountXns       []AccountXns         `json:"accountXns"`
	EOD              []EODAccount         `json:"eod"`
	BankTransactions []BankTransactionSet `json:"bankTransactions"`
}

type CustomerDetails struct {
	Name         string `json:"name"`
	MobileNo     string `json:"mobileNo"`
	PAN          string `json:"pan"`
	AadharMasked string `json:"aadharMasked"`
	BankName     string `json:"bankName"`
}

type AccountXns struct {
	AccountNo   string `json:"accountNo"`
	AccountType string `json:"accountType"`
	Xns         []Xn   `json:"xns"`
}

// Xn is one transaction line. Amount is signed: debits are negative.
type Xn struct {
	Date      string      `json:"date"`
	Amount    json.Number `json:"amount,omitempty"`
	Balance   json.Number `json:"balance,omitempty"`
	Narration string      `json:"narration,omitempty"`
	Mox       string      `json:"mox,omitempty"`
	ChqNo     string      `json:"chqNo,omitempty"`
}

type EODAccount struct {
	AccountNo string       `json:"accountNo"`
	Balances  []EODBalance `json:"balances"`
}

type EODBalance struct {
	Date    string      `json:"date"`
	Balance json.Number `json:"balance,omitempty"`
}

type BankTransactionSet struct {
	AccountNo    string            `json:"accountNo"`
	Transactions []BankTransaction `json:"transactions"`
}

type BankTransaction struct {
	Date    string      `json:"date"`
	Amount  json.Number `json:"amount,omitempty"`
	Balance json.Number `json:"balance,omitempty"`
}

// AccountNumbers lists accounts in accountXns order.
func (s *Statement) AccountNumbers() []string {
	out := make([]string, 0, len(s.AccountXns))
	for _, a := range s.AccountXns {
		out = append(out, a.AccountNo)
	}
	return out
}

// AccountIndex returns the position of account in accountXns, or -1.
func (s *Statement) AccountIndex(account string) int {
	for i, a := range s.AccountXns {
		if strings.TrimSpace(a.AccountNo) == account {
			return i
		}
	}
	return -1
}

// Customer returns the details at index, or the zero value.
func (s *Statement) Customer(index int) CustomerDetails {
	if index < 0 || index >= len(s.CustomerDetails) {
		return CustomerDetails{}
	}
	return s.CustomerDetails[index]
}

// SectionEntries returns the entries of one section as values ready for
// flattening, paired with their account numbers.
func (s *Statement) SectionEntries(h HashType) []SectionEntry {
	var out []SectionEntry
	switch h {
	case HashTypeAccountXns:
		for _, a := range s.AccountXns {
			out = append(out, SectionEntry{AccountNo: a.AccountNo, Entry: a})
		}
	case HashTypeEODBalance:
		for _, e := range s.EOD {
			out = append(out, SectionEntry{AccountNo: e.AccountNo, Entry: e})
		}
	default:
		for _, b := range s.BankTransactions {
			out = append(out, SectionEntry{AccountNo: b.AccountNo, Entry: b})
		}
	}
	return out
}

// SectionEntry is one account's slice of a statement section.
type SectionEntry struct {
	AccountNo string
	Entry     any
}
