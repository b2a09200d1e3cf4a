// Package kafka publishes completed assessments to tier-specific topics so
// downstream case-management systems can subscribe to the severity band they
// handle.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"finrisk/internal/pipeline"
	"finrisk/internal/scoring"
)

// Publisher routes assessments to transactions.{high,medium,low}_risk topics
// keyed by transaction ID, so one transaction's assessments stay ordered
// within a partition.
type Publisher struct {
	client      *kgo.Client
	topicPrefix string
	logger      *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects to the brokers. topicPrefix is typically "transactions".
func New(brokers []string, topicPrefix string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close flushes and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}

// EnsureTopics creates the three tier topics when missing. Called once at
// process start.
func (p *Publisher) EnsureTopics(ctx context.Context, partitions int32) error {
	adm := kadm.NewClient(p.client)

	topics := []string{
		p.topicFor(scoring.TierHigh),
		p.topicFor(scoring.TierMedium),
		p.topicFor(scoring.TierLow),
	}
	existing, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	var missing []string
	for _, t := range topics {
		if !existing.Has(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	resp, err := adm.CreateTopics(ctx, partitions, 1, nil, missing...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
		p.logger.Info("created kafka topic", "topic", r.Topic, "partitions", partitions)
	}
	return nil
}

// Publish sends the assessment to its tier topic and waits for the broker
// acknowledgement.
func (p *Publisher) Publish(ctx context.Context, a pipeline.Assessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topicFor(a.Tier),
		Key:   []byte(a.TransactionID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", record.Topic, err)
	}
	p.logger.Debug("published assessment",
		"topic", record.Topic,
		"transaction_id", a.TransactionID,
		"assessment_id", a.ID,
	)
	return nil
}

func (p *Publisher) topicFor(tier scoring.Tier) string {
	suffix := strings.ToLower(string(tier))
	if suffix == "" {
		suffix = "low"
	}
	return fmt.Sprintf("%s.%s_risk", p.topicPrefix, suffix)
}
