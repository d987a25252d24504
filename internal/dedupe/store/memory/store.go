// Package memory is an in-process token index for tests and single-node
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
)

type owner struct {
	userID   id.UserID
	realmID  id.RealmID
	account  id.AccountNumber
	combined bool
}

type tokenKey struct {
	hashType models.HashType
	token    string
}

type userKey struct {
	userID  id.UserID
	realmID id.RealmID
}

// Store implements ports.Index.
type Store struct {
	mu       sync.RWMutex
	tokens   map[tokenKey]map[owner]struct{}
	accounts map[userKey]map[id.AccountNumber]string
}

func New() *Store {
	return &Store{
		tokens:   make(map[tokenKey]map[owner]struct{}),
		accounts: make(map[userKey]map[id.AccountNumber]string),
	}
}

func (s *Store) Persist(_ context.Context, batch models.TokenBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	add := func(token string, combined bool) {
		k := tokenKey{hashType: batch.HashType, token: token}
		owners, ok := s.tokens[k]
		if !ok {
			owners = make(map[owner]struct{})
			s.tokens[k] = owners
		}
		owners[owner{userID: batch.UserID, realmID: batch.RealmID, account: batch.AccountNumber, combined: combined}] = struct{}{}
	}
	for _, t := range batch.Transactions {
		add(t, false)
	}
	if batch.StatementToken != "" {
		add(batch.StatementToken, true)
	}

	uk := userKey{userID: batch.UserID, realmID: batch.RealmID}
	if s.accounts[uk] == nil {
		s.accounts[uk] = make(map[id.AccountNumber]string)
	}
	s.accounts[uk][batch.AccountNumber] = batch.BankName
	return nil
}

func (s *Store) LookupMatches(_ context.Context, tokens []string, excludeUserID id.UserID, hashType models.HashType) ([]models.IndexMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.IndexMatch
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		for o := range s.tokens[tokenKey{hashType: hashType, token: t}] {
			if o.userID == excludeUserID {
				continue
			}
			out = append(out, models.IndexMatch{
				UserID:        o.userID,
				RealmID:       o.realmID,
				AccountNumber: o.account,
				HashType:      hashType,
				Token:         t,
				Combined:      o.combined,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountNumber != out[j].AccountNumber {
			return out[i].AccountNumber < out[j].AccountNumber
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func (s *Store) ListOtherAccounts(_ context.Context, userID id.UserID, realmID id.RealmID) ([]models.AccountRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := s.accounts[userKey{userID: userID, realmID: realmID}]
	out := make([]models.AccountRef, 0, len(accounts))
	for acc, bank := range accounts {
		out = append(out, models.AccountRef{AccountNumber: acc, BankName: bank})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}
