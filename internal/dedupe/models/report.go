package models

import (
	"math"
	"time"

	"github.com/google/uuid"

	id "stmtguard/pkg/domain"
)

// RiskStatus is the traffic-light outcome of a correlation.
type RiskStatus string

const (
	StatusGreen RiskStatus = "GREEN"
	StatusAmber RiskStatus = "AMBER"
	StatusRed   RiskStatus = "RED"
)

// Severity orders statuses; higher is worse.
func (s RiskStatus) Severity() int {
	switch s {
	case StatusRed:
		return 2
	case StatusAmber:
		return 1
	default:
		return 0
	}
}

// RiskBand maps a closed-open match-percentage range [Min, Max) to an outcome.
type RiskBand struct {
	Status            RiskStatus
	MatchType         string
	RiskLevel         string
	ReasonForFlagging string
	Recommendation    string
	Min               float64
	Max               float64
}

func (b RiskBand) Contains(pct float64) bool {
	return pct >= b.Min && pct < b.Max
}

// Unbounded is the upper limit of the most severe band.
var Unbounded = math.Inf(1)

// MatchGroup aggregates the matches against one counterparty account.
type MatchGroup struct {
	CounterpartyUserID  id.UserID
	CounterpartyRealmID id.RealmID
	CounterpartyAccount id.AccountNumber
	MatchedCount        int
	TotalCount          int
	MatchPercentage     float64
	Band                RiskBand
}

// MatchEntry is one line of a report.
type MatchEntry struct {
	Section             HashType
	CounterpartyUserID  id.UserID
	CounterpartyRealmID id.RealmID
	CounterpartyAccount id.AccountNumber
	MatchScore          float64
	MatchedCount        int
	Band                RiskBand
}

// CorrelationReport is the outcome of one dedupe check.
type CorrelationReport struct {
	UserID        id.UserID
	RealmID       id.RealmID
	AccountNumber id.AccountNumber
	HashType      HashType
	Customer      CustomerDetails
	Status        RiskStatus
	Accounts      []AccountRef
	OtherAccounts []AccountRef
	Statements    []MatchEntry
	Transactions  []MatchEntry
	Groups        []MatchGroup
	Remarks       string
	GeneratedAt   time.Time
}

// HasMatches reports whether any counterparty was found.
func (r *CorrelationReport) HasMatches() bool {
	return len(r.Transactions) > 0 || len(r.Statements) > 0
}

// TopScore is the highest match score in the report.
func (r *CorrelationReport) TopScore() float64 {
	top := 0.0
	for _, e := range r.Transactions {
		top = math.Max(top, e.MatchScore)
	}
	for _, e := range r.Statements {
		top = math.Max(top, e.MatchScore)
	}
	return top
}

// FlagEvent is published when a dedupe check is not GREEN. It carries no
// counterparty identity.
type FlagEvent struct {
	EventID         uuid.UUID
	UserID          id.UserID
	RealmID         id.RealmID
	AccountMasked   string
	HashType        HashType
	Status          RiskStatus
	TopMatchScore   float64
	MatchedAccounts int
	OccurredAt      time.Time
}
