package handler

import (
	"time"

	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/service"
	id "stmtguard/pkg/domain"
)

type accountResponse struct {
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
}

type counterPartyResponse struct {
	CounterPartyUserID        string  `json:"counterPartyUserId"`
	CounterPartyRealmID       string  `json:"counterPartyRealmId"`
	CounterPartyAccountNumber string  `json:"counterPartyAccountNumber"`
	MatchScore                float64 `json:"matchScore"`
	MatchType                 string  `json:"matchType"`
}

type matchResponse struct {
	Section                 string                 `json:"section"`
	Status                  string                 `json:"status"`
	MatchedCounterParty     []counterPartyResponse `json:"matchedCounterParty"`
	RiskLevel               string                 `json:"riskLevel"`
	ReasonForFlagging       string                 `json:"reasonForFlagging"`
	Recommendation          string                 `json:"recommendation"`
	NoOfMatchedTransactions int                    `json:"noOfMatchedTransactions,omitempty"`
}

// DedupeResponse keeps the field names lenders already consume.
type DedupeResponse struct {
	UserID        int64             `json:"userId"`
	RealmID       string            `json:"realmId"`
	Name          string            `json:"name"`
	PAN           string            `json:"pan"`
	AadharMasked  string            `json:"aadharMasked"`
	BankName      string            `json:"bankName"`
	HashType      string            `json:"hashType"`
	Status        string            `json:"status"`
	Accounts      []accountResponse `json:"accounts"`
	OtherAccounts []accountResponse `json:"otherAccounts"`
	Statements    []matchResponse   `json:"statements,omitempty"`
	Transactions  []matchResponse   `json:"transactions,omitempty"`
	Remarks       string            `json:"remarks,omitempty"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

type ingestedAccountResponse struct {
	AccountNumber     string `json:"accountNumber"`
	BankName          string `json:"bankName"`
	HashType          string `json:"hashType"`
	TransactionTokens int    `json:"transactionTokens"`
	StatementToken    string `json:"statementToken,omitempty"`
}

type IngestResponse struct {
	UserID   int64                     `json:"userId"`
	RealmID  string                    `json:"realmId"`
	Provider string                    `json:"provider"`
	Accounts []ingestedAccountResponse `json:"accounts"`
}

func NewIngestResponse(userID id.UserID, realmID id.RealmID, res *service.IngestResult) IngestResponse {
	out := IngestResponse{
		UserID:   int64(userID),
		RealmID:  realmID.String(),
		Provider: res.Provider.String(),
		Accounts: make([]ingestedAccountResponse, 0, len(res.Accounts)),
	}
	for _, a := range res.Accounts {
		out.Accounts = append(out.Accounts, ingestedAccountResponse{
			AccountNumber:     a.AccountNumber.String(),
			BankName:          a.BankName,
			HashType:          a.HashType.String(),
			TransactionTokens: a.Transactions,
			StatementToken:    a.StatementToken,
		})
	}
	return out
}

func NewDedupeResponse(r *models.CorrelationReport) DedupeResponse {
	out := DedupeResponse{
		UserID:        int64(r.UserID),
		RealmID:       r.RealmID.String(),
		Name:          r.Customer.Name,
		PAN:           r.Customer.PAN,
		AadharMasked:  r.Customer.AadharMasked,
		BankName:      r.Customer.BankName,
		HashType:      r.HashType.String(),
		Status:        string(r.Status),
		Accounts:      []accountResponse{requestedAccount(r)},
		OtherAccounts: make([]accountResponse, 0, len(r.OtherAccounts)),
		Remarks:       r.Remarks,
		GeneratedAt:   r.GeneratedAt,
	}
	for _, a := range r.OtherAccounts {
		out.OtherAccounts = append(out.OtherAccounts, accountResponse{AccountNumber: a.AccountNumber.String(), BankName: a.BankName})
	}
	for _, e := range r.Statements {
		out.Statements = append(out.Statements, toMatchResponse(e, false))
	}
	for _, e := range r.Transactions {
		out.Transactions = append(out.Transactions, toMatchResponse(e, true))
	}
	return out
}

func requestedAccount(r *models.CorrelationReport) accountResponse {
	for _, a := range r.Accounts {
		if a.AccountNumber == r.AccountNumber {
			return accountResponse{AccountNumber: a.AccountNumber.String(), BankName: a.BankName}
		}
	}
	return accountResponse{AccountNumber: r.AccountNumber.String(), BankName: r.Customer.BankName}
}

func toMatchResponse(e models.MatchEntry, withCount bool) matchResponse {
	m := matchResponse{
		Section: e.Section.String(),
		Status:  string(e.Band.Status),
		MatchedCounterParty: []counterPartyResponse{{
			CounterPartyUserID:        e.CounterpartyUserID.String(),
			CounterPartyRealmID:       e.CounterpartyRealmID.String(),
			CounterPartyAccountNumber: e.CounterpartyAccount.String(),
			MatchScore:                e.MatchScore,
			MatchType:                 e.Band.MatchType,
		}},
		RiskLevel:         e.Band.RiskLevel,
		ReasonForFlagging: e.Band.ReasonForFlagging,
		Recommendation:    e.Band.Recommendation,
	}
	if withCount {
		m.NoOfMatchedTransactions = e.MatchedCount
	}
	return m
}
