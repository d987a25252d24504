package models

import (
	"time"

	id "stmtguard/pkg/domain"
)

// AnonymousToken is an opaque content token tied to its owner. It never
// carries the field values it was derived from.
type AnonymousToken struct {
	UserID          id.UserID
	RealmID         id.RealmID
	AccountNumber   id.AccountNumber
	HashType        HashType
	Token           string
	IsPrimaryOwner  bool
	IsCombinedToken bool
}

// AccountTokens are the tokens of one account for one section.
type AccountTokens struct {
	AccountNumber id.AccountNumber
	HashType      HashType
	// Transactions holds one token per distinct transaction, in statement order.
	Transactions []AnonymousToken
	// Statement is the combined token, nil when there are no transactions or
	// combined tokens are disabled.
	Statement *AnonymousToken
}

// TokenValues returns the transaction token strings.
func (a AccountTokens) TokenValues() []string {
	out := make([]string, len(a.Transactions))
	for i, t := range a.Transactions {
		out[i] = t.Token
	}
	return out
}

// TokenBatch is what ingest persists for one account and section.
type TokenBatch struct {
	UserID         id.UserID
	RealmID        id.RealmID
	AccountNumber  id.AccountNumber
	HashType       HashType
	Provider       Provider
	SourceType     SourceType
	BankName       string
	PhoneNumber    string
	MediaLink      string
	StatementToken string
	Transactions   []string
	CreatedBy      string
	CreatedAt      time.Time
}

// IndexMatch is one stored token owned by someone else that equals one of ours.
type IndexMatch struct {
	UserID        id.UserID
	RealmID       id.RealmID
	AccountNumber id.AccountNumber
	HashType      HashType
	Token         string
	Combined      bool
}

// AccountRef is an account known to the directory.
type AccountRef struct {
	AccountNumber id.AccountNumber
	BankName      string
}
