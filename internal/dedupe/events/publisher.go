// Package events publishes flag events for dedupe checks that were not GREEN.
//
// The Kafka publisher is fail-open: a broker outage never fails the dedupe
// request. Consecutive produce failures open a circuit breaker, after which
// events are dropped (and counted) until a probe succeeds.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"stmtguard/internal/dedupe/metrics"
	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/platform/kafka"
	"stmtguard/pkg/platform/circuit"
	"stmtguard/pkg/platform/sentinel"
)

const eventType = "bank_statement.flagged"

// Producer is the slice of the Kafka client the publisher needs.
type Producer interface {
	Produce(ctx context.Context, msg kafka.Message) error
}

// payload is the wire shape. Counterparty identities are never included.
type payload struct {
	EventID         string  `json:"eventId"`
	EventType       string  `json:"eventType"`
	UserID          int64   `json:"userId"`
	RealmID         string  `json:"realmId"`
	AccountMasked   string  `json:"accountMasked"`
	HashType        string  `json:"hashType"`
	Status          string  `json:"status"`
	TopMatchScore   float64 `json:"topMatchScore"`
	MatchedAccounts int     `json:"matchedAccounts"`
	OccurredAt      string  `json:"occurredAt"`
}

func encode(e models.FlagEvent) ([]byte, error) {
	return json.Marshal(payload{
		EventID:         e.EventID.String(),
		EventType:       eventType,
		UserID:          int64(e.UserID),
		RealmID:         e.RealmID.String(),
		AccountMasked:   e.AccountMasked,
		HashType:        e.HashType.String(),
		Status:          string(e.Status),
		TopMatchScore:   e.TopMatchScore,
		MatchedAccounts: e.MatchedAccounts,
		OccurredAt:      e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}

// KafkaPublisher produces flag events keyed by realm and user so one user's
// events stay ordered on a partition.
type KafkaPublisher struct {
	producer Producer
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *KafkaPublisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

// WithTimeout bounds one produce call.
func WithTimeout(d time.Duration) Option {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewKafkaPublisher(producer Producer, opts ...Option) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	p := &KafkaPublisher{
		producer: producer,
		breaker:  circuit.New("flag-events", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		logger:   slog.New(slog.DiscardHandler),
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish returns sentinel.ErrCircuitOpen when the event was dropped and the
// wrapped produce error when it failed. Callers log and carry on.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.FlagEvent) error {
	if !p.breaker.Allow() {
		p.metrics.IncEventsDropped()
		p.logger.WarnContext(ctx, "flag event dropped: circuit open",
			"event_id", event.EventID,
			"user_id", event.UserID,
			"status", event.Status,
		)
		return sentinel.ErrCircuitOpen
	}

	value, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode flag event: %w", err)
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.producer.Produce(produceCtx, kafka.Message{
		Key:   []byte(event.RealmID.String() + ":" + event.UserID.String()),
		Value: value,
		Headers: map[string]string{
			"event_type": eventType,
			"event_id":   event.EventID.String(),
		},
	})
	if err != nil {
		p.metrics.IncEventFailures()
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.metrics.SetCircuitBreakerState(true)
			p.logger.ErrorContext(ctx, "flag event circuit opened", "breaker", p.breaker.Name(), "error", err)
		}
		return fmt.Errorf("publish flag event: %w", err)
	}

	_, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.metrics.SetCircuitBreakerState(false)
		p.logger.InfoContext(ctx, "flag event circuit closed", "breaker", p.breaker.Name())
	}
	p.metrics.IncEventsPublished()
	return nil
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.FlagEvent) error {
	p.logger.InfoContext(ctx, "bank statement flagged",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"realm_id", event.RealmID,
		"account", event.AccountMasked,
		"hash_type", event.HashType.String(),
		"status", event.Status,
		"top_match_score", event.TopMatchScore,
	)
	return nil
}
