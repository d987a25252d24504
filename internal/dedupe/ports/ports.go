// Package ports declares the collaborators the dedupe core depends on. Stores
// under internal/dedupe/store implement them; tests use the gomock doubles in
// ports/mocks.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks TokenIndex,AccountDirectory,TokenStore,EventPublisher

import (
	"context"

	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
)

// TokenIndex finds stored tokens equal to any of the given tokens, owned by
// anyone except excludeUserID, within one section.
type TokenIndex interface {
	LookupMatches(ctx context.Context, tokens []string, excludeUserID id.UserID, hashType models.HashType) ([]models.IndexMatch, error)
}

// AccountDirectory lists the accounts registered for a user within a realm.
type AccountDirectory interface {
	ListOtherAccounts(ctx context.Context, userID id.UserID, realmID id.RealmID) ([]models.AccountRef, error)
}

// TokenStore persists one account's tokens. Implementations must be
// idempotent for a repeated batch.
type TokenStore interface {
	Persist(ctx context.Context, batch models.TokenBatch) error
}

// EventPublisher emits flag events for non-GREEN dedupe outcomes.
type EventPublisher interface {
	Publish(ctx context.Context, event models.FlagEvent) error
}

// Index is the full storage surface a backend provides.
type Index interface {
	TokenIndex
	AccountDirectory
	TokenStore
}
