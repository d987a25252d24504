// Package badger keeps the token index in an embedded BadgerDB, used by the
// stmtctl CLI and single-node deployments.
//
// Key layout (NUL separated; account numbers cannot contain control
// characters):
//
//	t \0 <hash type> \0 <token> \0 <user> \0 <account> \0 <0|1>  -> realm
//	a \0 <realm> \0 <user> \0 <account>                         -> bank name
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
)

const sep = "\x00"

// Config holds the database location and mode.
type Config struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements ports.Index on BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway database for tests.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func tokenPrefix(h models.HashType, token string) string {
	return "t" + sep + strconv.Itoa(int(h)) + sep + token + sep
}

func tokenKey(h models.HashType, token string, user id.UserID, account id.AccountNumber, combined bool) []byte {
	flag := "0"
	if combined {
		flag = "1"
	}
	return []byte(tokenPrefix(h, token) + user.String() + sep + account.String() + sep + flag)
}

func accountPrefix(realm id.RealmID, user id.UserID) string {
	return "a" + sep + realm.String() + sep + user.String() + sep
}

func (s *Store) Persist(_ context.Context, batch models.TokenBatch) error {
	realm := []byte(batch.RealmID.String())
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, t := range batch.Transactions {
			if err := txn.Set(tokenKey(batch.HashType, t, batch.UserID, batch.AccountNumber, false), realm); err != nil {
				return err
			}
		}
		if batch.StatementToken != "" {
			if err := txn.Set(tokenKey(batch.HashType, batch.StatementToken, batch.UserID, batch.AccountNumber, true), realm); err != nil {
				return err
			}
		}
		key := accountPrefix(batch.RealmID, batch.UserID) + batch.AccountNumber.String()
		return txn.Set([]byte(key), []byte(batch.BankName))
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return s.persistChunked(batch)
	}
	if err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// persistChunked spreads a batch too large for one transaction over a write
// batch. Keys are idempotent so a partial failure can simply be retried.
func (s *Store) persistChunked(batch models.TokenBatch) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	realm := []byte(batch.RealmID.String())
	for _, t := range batch.Transactions {
		if err := wb.Set(tokenKey(batch.HashType, t, batch.UserID, batch.AccountNumber, false), realm); err != nil {
			return fmt.Errorf("persist tokens: %w", err)
		}
	}
	if batch.StatementToken != "" {
		if err := wb.Set(tokenKey(batch.HashType, batch.StatementToken, batch.UserID, batch.AccountNumber, true), realm); err != nil {
			return fmt.Errorf("persist tokens: %w", err)
		}
	}
	key := accountPrefix(batch.RealmID, batch.UserID) + batch.AccountNumber.String()
	if err := wb.Set([]byte(key), []byte(batch.BankName)); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

func (s *Store) LookupMatches(_ context.Context, tokens []string, excludeUserID id.UserID, hashType models.HashType) ([]models.IndexMatch, error) {
	var out []models.IndexMatch
	seen := make(map[string]struct{}, len(tokens))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, t := range tokens {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}

			prefix := []byte(tokenPrefix(hashType, t))
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				rest := strings.Split(string(item.Key()[len(prefix):]), sep)
				if len(rest) != 3 {
					it.Close()
					return fmt.Errorf("malformed token key %q", item.Key())
				}
				user, err := strconv.ParseInt(rest[0], 10, 64)
				if err != nil {
					it.Close()
					return fmt.Errorf("malformed token key %q: %w", item.Key(), err)
				}
				if id.UserID(user) == excludeUserID {
					continue
				}
				realm, err := item.ValueCopy(nil)
				if err != nil {
					it.Close()
					return err
				}
				out = append(out, models.IndexMatch{
					UserID:        id.UserID(user),
					RealmID:       id.RealmID(realm),
					AccountNumber: id.AccountNumber(rest[1]),
					HashType:      hashType,
					Token:         t,
					Combined:      rest[2] == "1",
				})
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup token matches: %w", err)
	}
	return out, nil
}

func (s *Store) ListOtherAccounts(_ context.Context, userID id.UserID, realmID id.RealmID) ([]models.AccountRef, error) {
	out := []models.AccountRef{}
	prefix := []byte(accountPrefix(realmID, userID))
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			bank, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, models.AccountRef{
				AccountNumber: id.AccountNumber(item.Key()[len(prefix):]),
				BankName:      string(bank),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}
