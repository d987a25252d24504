// Package redis keeps the token index in Redis sets, one set per section and
// token, for deployments that share the index across instances without a
// relational database.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"stmtguard/internal/dedupe/models"
	id "stmtguard/pkg/domain"
)

var lookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "stmtguard_redis_token_lookup_duration_ms",
	Help:    "Latency of Redis token index lookups in milliseconds",
	Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
})

const (
	tokenKeyPrefix   = "stmtguard:tok:"
	accountKeyPrefix = "stmtguard:acct:"
)

// member is the set entry for one owner of a token. Field order is fixed so
// the encoding is stable and SADD stays idempotent.
type member struct {
	UserID   int64  `json:"u"`
	RealmID  string `json:"r"`
	Account  string `json:"a"`
	Combined bool   `json:"c,omitempty"`
}

// Store implements ports.Index on Redis.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func tokenKey(h models.HashType, token string) string {
	return tokenKeyPrefix + strconv.Itoa(int(h)) + ":" + token
}

func accountKey(userID id.UserID, realmID id.RealmID) string {
	return accountKeyPrefix + realmID.String() + ":" + userID.String()
}

// Persist adds the batch owner to every token set and records the account.
// Uses a transactional pipeline so a batch lands whole.
func (s *Store) Persist(ctx context.Context, batch models.TokenBatch) error {
	encode := func(combined bool) (string, error) {
		b, err := json.Marshal(member{
			UserID:   int64(batch.UserID),
			RealmID:  batch.RealmID.String(),
			Account:  batch.AccountNumber.String(),
			Combined: combined,
		})
		return string(b), err
	}
	txnMember, err := encode(false)
	if err != nil {
		return fmt.Errorf("encode token owner: %w", err)
	}
	stmtMember, err := encode(true)
	if err != nil {
		return fmt.Errorf("encode token owner: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range batch.Transactions {
			pipe.SAdd(ctx, tokenKey(batch.HashType, t), txnMember)
		}
		if batch.StatementToken != "" {
			pipe.SAdd(ctx, tokenKey(batch.HashType, batch.StatementToken), stmtMember)
		}
		pipe.HSet(ctx, accountKey(batch.UserID, batch.RealmID), batch.AccountNumber.String(), batch.BankName)
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

func (s *Store) LookupMatches(ctx context.Context, tokens []string, excludeUserID id.UserID, hashType models.HashType) ([]models.IndexMatch, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	if len(tokens) == 0 {
		return nil, nil
	}

	unique := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(unique))
	for i, t := range unique {
		cmds[i] = pipe.SMembers(ctx, tokenKey(hashType, t))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("lookup token matches: %w", err)
	}

	var out []models.IndexMatch
	for i, cmd := range cmds {
		for _, raw := range cmd.Val() {
			var m member
			if err := json.Unmarshal([]byte(raw), &m); err != nil {
				return nil, fmt.Errorf("decode token owner: %w", err)
			}
			if id.UserID(m.UserID) == excludeUserID {
				continue
			}
			out = append(out, models.IndexMatch{
				UserID:        id.UserID(m.UserID),
				RealmID:       id.RealmID(m.RealmID),
				AccountNumber: id.AccountNumber(m.Account),
				HashType:      hashType,
				Token:         unique[i],
				Combined:      m.Combined,
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

func (s *Store) ListOtherAccounts(ctx context.Context, userID id.UserID, realmID id.RealmID) ([]models.AccountRef, error) {
	fields, err := s.client.HGetAll(ctx, accountKey(userID, realmID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]models.AccountRef, 0, len(fields))
	for acc, bank := range fields {
		out = append(out, models.AccountRef{AccountNumber: id.AccountNumber(acc), BankName: bank})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}
