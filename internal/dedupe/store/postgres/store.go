// Package postgres persists tokens in PostgreSQL: one statement row per
// account and section, its transaction hashes, and the bank details of every
// account a user has uploaded.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"

	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
	"stmtguard/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Tables lists every table the store owns, for test truncation.
var Tables = []string{"user_bank_transaction", "user_bank_statement", "user_bank_details"}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ports.Index on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure token schema: %w", err)
	}
	return nil
}

func (s *Store) conn(ctx context.Context) dbtx {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// Persist writes the statement row, its transaction hashes and the bank
// details in one transaction. Re-ingesting the same batch changes nothing.
func (s *Store) Persist(ctx context.Context, batch models.TokenBatch) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := s.conn(ctx)

		var statementID int64
		err := q.QueryRowContext(ctx, `
			INSERT INTO user_bank_statement (
				user_id, realm_id, account_number, phone_number, root_hash,
				hash_type, provider, source_type, media_link, created_by, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, realm_id, account_number, hash_type, root_hash) DO UPDATE SET
				media_link = EXCLUDED.media_link
			RETURNING id
		`,
			int64(batch.UserID), batch.RealmID.String(), batch.AccountNumber.String(), batch.PhoneNumber,
			batch.StatementToken, int(batch.HashType), int(batch.Provider), int(batch.SourceType),
			batch.MediaLink, batch.CreatedBy, batch.CreatedAt,
		).Scan(&statementID)
		if err != nil {
			return fmt.Errorf("insert statement: %w", err)
		}

		if len(batch.Transactions) > 0 {
			_, err = q.ExecContext(ctx, `
				INSERT INTO user_bank_transaction (
					statement_id, user_id, realm_id, account_number, hash, hash_type, provider, created_at
				)
				SELECT $1, $2, $3, $4, h, $5, $6, $7
				FROM unnest($8::text[]) AS h
				ON CONFLICT (user_id, realm_id, account_number, hash_type, hash) DO NOTHING
			`,
				statementID, int64(batch.UserID), batch.RealmID.String(), batch.AccountNumber.String(),
				int(batch.HashType), int(batch.Provider), batch.CreatedAt, pq.Array(batch.Transactions),
			)
			if err != nil {
				return fmt.Errorf("insert transactions: %w", err)
			}
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO user_bank_details (user_id, realm_id, account_number, bank_name, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, realm_id, account_number) DO UPDATE SET
				bank_name = CASE WHEN EXCLUDED.bank_name = '' THEN user_bank_details.bank_name ELSE EXCLUDED.bank_name END
		`, int64(batch.UserID), batch.RealmID.String(), batch.AccountNumber.String(), batch.BankName, batch.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert bank details: %w", err)
		}
		return nil
	})
}

func (s *Store) LookupMatches(ctx context.Context, tokens []string, excludeUserID id.UserID, hashType models.HashType) ([]models.IndexMatch, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		WITH hash_list AS (SELECT DISTINCT unnest($1::text[]) AS hash)
		SELECT t.user_id, t.realm_id, t.account_number, t.hash, FALSE
		FROM user_bank_transaction t
		JOIN hash_list h ON t.hash = h.hash
		WHERE t.hash_type = $2 AND t.user_id != $3
		UNION ALL
		SELECT s.user_id, s.realm_id, s.account_number, s.root_hash, TRUE
		FROM user_bank_statement s
		JOIN hash_list h ON s.root_hash = h.hash
		WHERE s.hash_type = $2 AND s.user_id != $3 AND s.root_hash != ''
		ORDER BY 3, 4
	`, pq.Array(tokens), int(hashType), int64(excludeUserID))
	if err != nil {
		return nil, fmt.Errorf("lookup token matches: %w", err)
	}
	defer rows.Close()

	var out []models.IndexMatch
	for rows.Next() {
		var (
			userID   int64
			realmID  string
			account  string
			token    string
			combined bool
		)
		if err := rows.Scan(&userID, &realmID, &account, &token, &combined); err != nil {
			return nil, fmt.Errorf("scan token match: %w", err)
		}
		out = append(out, models.IndexMatch{
			UserID:        id.UserID(userID),
			RealmID:       id.RealmID(realmID),
			AccountNumber: id.AccountNumber(account),
			HashType:      hashType,
			Token:         token,
			Combined:      combined,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token matches: %w", err)
	}
	return out, nil
}

func (s *Store) ListOtherAccounts(ctx context.Context, userID id.UserID, realmID id.RealmID) ([]models.AccountRef, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT account_number, bank_name
		FROM user_bank_details
		WHERE user_id = $1 AND realm_id = $2
		ORDER BY account_number
	`, int64(userID), realmID.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []models.AccountRef{}
	for rows.Next() {
		var account, bank string
		if err := rows.Scan(&account, &bank); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, models.AccountRef{AccountNumber: id.AccountNumber(account), BankName: bank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}
