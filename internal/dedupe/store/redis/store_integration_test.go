//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"stmtguard/internal/dedupe/models"
	redisstore "stmtguard/internal/dedupe/store/redis"
	id "stmtguard/pkg/domain"
	"stmtguard/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstore.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = redisstore.New(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func batch(user id.UserID, account id.AccountNumber, tokens ...string) models.TokenBatch {
	return models.TokenBatch{
		UserID:         user,
		RealmID:        "lender-a",
		AccountNumber:  account,
		HashType:       models.HashTypeBankTransaction,
		BankName:       "SBI",
		StatementToken: "stmt-" + string(account),
		Transactions:   tokens,
	}
}

func (s *RedisStoreSuite) TestLookupMatches() {
	ctx := context.Background()
	s.Require().NoError(s.store.Persist(ctx, batch(1, "A-1", "t1", "t2")))
	s.Require().NoError(s.store.Persist(ctx, batch(2, "B-1", "t2")))
	s.Require().NoError(s.store.Persist(ctx, batch(2, "B-1", "t2")))

	matches, err := s.store.LookupMatches(ctx, []string{"t1", "t2", "stmt-B-1"}, 1, models.HashTypeBankTransaction)
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal("stmt-B-1", matches[0].Token)
	s.True(matches[0].Combined)
	s.Equal("t2", matches[1].Token)
	s.Equal(id.AccountNumber("B-1"), matches[1].AccountNumber)

	matches, err = s.store.LookupMatches(ctx, []string{"t2"}, 1, models.HashTypeAccountXns)
	s.Require().NoError(err)
	s.Empty(matches)
}

func (s *RedisStoreSuite) TestListOtherAccounts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Persist(ctx, batch(1, "A-2", "t1")))
	s.Require().NoError(s.store.Persist(ctx, batch(1, "A-1", "t2")))

	accounts, err := s.store.ListOtherAccounts(ctx, 1, "lender-a")
	s.Require().NoError(err)
	s.Equal([]models.AccountRef{
		{AccountNumber: "A-1", BankName: "SBI"},
		{AccountNumber: "A-2", BankName: "SBI"},
	}, accounts)
}
