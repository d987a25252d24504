//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"stmtguard/internal/platform/config"
	"stmtguard/internal/platform/kafka"
	"stmtguard/pkg/testutil/containers"
)

// =============================================================================
// Producer Integration Suite
// =============================================================================
// Justification: acks, topic creation and header encoding are broker
// behaviour; only a real Kafka-protocol broker can confirm them.

type ProducerIntegrationSuite struct {
	suite.Suite
	broker   *containers.KafkaContainer
	producer *kafka.Producer
	topic    string
}

func TestProducerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.broker = containers.GetManager().GetKafka(s.T())
}

func (s *ProducerIntegrationSuite) SetupTest() {
	s.topic = "flags-" + time.Now().Format("150405.000000")
	p, err := kafka.NewProducer(config.KafkaConfig{
		Brokers:   []string{s.broker.Broker},
		FlagTopic: s.topic,
		ClientID:  "stmtguard-test",
	})
	s.Require().NoError(err)
	s.producer = p

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(s.producer.Ping(ctx))
	s.Require().NoError(s.producer.EnsureTopic(ctx, 1, -1))
}

func (s *ProducerIntegrationSuite) TearDownTest() {
	s.NoError(s.producer.Close(context.Background()))
}

func (s *ProducerIntegrationSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(s.producer.EnsureTopic(context.Background(), 1, -1))
}

func (s *ProducerIntegrationSuite) TestProducedRecordIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.producer.Produce(ctx, kafka.Message{
		Key:     []byte("lender-a:42"),
		Value:   []byte(`{"status":"RED"}`),
		Headers: map[string]string{"event_type": "bank_statement.flagged"},
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)

	rec := records[0]
	s.Equal("lender-a:42", string(rec.Key))
	s.JSONEq(`{"status":"RED"}`, string(rec.Value))
	s.Require().Len(rec.Headers, 1)
	s.Equal("event_type", rec.Headers[0].Key)
	s.Equal("bank_statement.flagged", string(rec.Headers[0].Value))
}
