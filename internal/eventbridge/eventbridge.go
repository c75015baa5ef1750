// Package eventbridge forwards a Store's change notifications to a
// Kafka topic, letting out-of-process subscribers follow the same
// StoreEvent stream in-process subscribers (querycache, snapshot's
// Writer) react to directly.
package eventbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/rerun-io/rerun-sub038/internal/logging"
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
)

// SASLConfig holds SASL authentication parameters for the producer
// connection.
type SASLConfig struct {
	Mechanism string // "plain", "scram-sha-256", "scram-sha-512"
	User      string
	Password  string //nolint:gosec // config field, not a hardcoded credential
}

// Config holds Publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	TLS     bool
	SASL    *SASLConfig
	Logger  *slog.Logger
}

// Publisher is a storeevent.Subscriber that publishes every event
// batch it receives to a Kafka topic, one record per event, keyed by
// entity so a single entity's history stays in order within a
// partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	failed atomic.Uint64
}

var _ storeevent.Subscriber = (*Publisher)(nil)

// New dials a Kafka producer client per cfg.
func New(cfg Config) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}

	if cfg.TLS {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))
	}

	if cfg.SASL != nil {
		mech, err := buildSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka producer client: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		logger: logging.Default(cfg.Logger).With("component", "eventbridge", "type", "kafka"),
	}, nil
}

// OnEvents implements storeevent.Subscriber. Publishing is
// fire-and-forget from the writer's perspective: produce errors are
// logged and counted, not returned, since a subscriber must not block
// or fail the insertion transaction that produced the events.
func (p *Publisher) OnEvents(events []storeevent.StoreEvent) {
	for _, ev := range events {
		data, err := json.Marshal(toWire(ev))
		if err != nil {
			p.logger.Error("failed to marshal store event", "event_id", ev.EventID, "error", err)
			continue
		}

		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(ev.Diff.Entity.String()),
			Value: data,
		}
		p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
			if err != nil {
				p.failed.Add(1)
				p.logger.Error("failed to publish store event", "event_id", ev.EventID, "error", err)
			}
		})
	}
}

// Failed returns the number of events that failed to publish so far.
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

// Flush blocks until every produced record has either been
// acknowledged or failed.
func (p *Publisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close closes the underlying Kafka client. It does not flush records
// still buffered; Flush is the call that waits for them.
func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}

func buildSASLMechanism(cfg *SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "plain":
		return plain.Auth{User: cfg.User, Pass: cfg.Password}.AsMechanism(), nil
	case "scram-sha-256":
		return scram.Auth{User: cfg.User, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case "scram-sha-512":
		return scram.Auth{User: cfg.User, Pass: cfg.Password}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %q", cfg.Mechanism)
	}
}
