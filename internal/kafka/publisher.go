// Package kafka publishes aggregated routes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// RouteMessage is the JSON value of every published message.
type RouteMessage struct {
	RunID       int64              `json:"run_id,omitempty"`
	Source      string             `json:"source"`
	Region      string             `json:"region,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Route       routes.RouteRecord `json:"route"`
}

// Key identifies a route by its departure and arrival cell centres, so all
// updates of one route land in the same partition.
func (m RouteMessage) Key() string {
	r := m.Route
	return fmt.Sprintf("%.5f,%.5f>%.5f,%.5f", r.DepLat, r.DepLon, r.ArrLat, r.ArrLon)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes route messages to one topic.
type Publisher struct {
	topic string
	w     messageWriter
}

// NewPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		topic: cfg.Topic,
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Topic returns the target topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishRoutes sends one message per record in a single batch.
func (p *Publisher) PublishRoutes(ctx context.Context, meta RouteMessage, records []routes.RouteRecord) error {
	if len(records) == 0 {
		return nil
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}

	msgs := make([]kafka.Message, len(records))
	for i, r := range records {
		m := meta
		m.Route = r
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode route %d: %w", i, err)
		}
		msgs[i] = kafka.Message{Key: []byte(m.Key()), Value: b}
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d routes to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
