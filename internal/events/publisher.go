// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-intake-service/internal/models"
	"voice-intake-service/internal/observability/metrics"
)

// Validator checks an event before it is published.
type Validator interface {
	Validate(event any) error
}

// Mirror receives a copy of every published event.
type Mirror interface {
	Broadcast(event any)
}

// Publisher publishes intake events to separate Kafka topics.
type Publisher struct {
	writerTurns   *kafka.Writer
	writerRecords *kafka.Writer
	principal     string
	topicTurns    string
	topicRecords  string
	enabled       bool
	validator     Validator
	mirror        Mirror
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicTurns   string
	TopicRecords string
	Principal    string
	Enabled      bool
	Validator    Validator
	Metrics      *metrics.Metrics
}

// New creates a new Kafka event publisher with separate topics for turn and record events.
func New(cfg *Config) *Publisher {
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: metrics.DefaultMetrics}
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	p := &Publisher{
		principal:    cfg.Principal,
		topicTurns:   cfg.TopicTurns,
		topicRecords: cfg.TopicRecords,
		validator:    cfg.Validator,
		metrics:      m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerTurns = newWriter(cfg.Brokers, cfg.TopicTurns, transport)
	p.writerRecords = newWriter(cfg.Brokers, cfg.TopicRecords, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicRecords", cfg.TopicRecords).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// SetMirror attaches a local fan-out (the live websocket hub).
func (p *Publisher) SetMirror(m Mirror) {
	p.mirror = m
}

// Principal returns the producer identity stamped on events.
func (p *Publisher) Principal() string {
	return p.principal
}

// PublishTurn publishes a turn event keyed by session id.
func (p *Publisher) PublishTurn(ctx context.Context, event *models.TurnEvent) error {
	return p.publish(ctx, p.writerTurns, p.topicTurns, models.EventTypeTurn, event.SessionID, event)
}

// PublishRecord publishes a completed-record event keyed by session id.
func (p *Publisher) PublishRecord(ctx context.Context, event *models.RecordCompleted) error {
	return p.publish(ctx, p.writerRecords, p.topicRecords, models.EventTypeRecordCompleted, event.SessionID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if p.validator != nil {
		if err := p.validator.Validate(event); err != nil {
			log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Event failed schema validation")
			p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if p.mirror != nil {
		p.mirror.Broadcast(json.RawMessage(payload))
	}

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurns != nil {
		if e := p.writerTurns.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing turn writer")
			err = e
		}
	}
	if p.writerRecords != nil {
		if e := p.writerRecords.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing record writer")
			err = e
		}
	}
	return err
}
