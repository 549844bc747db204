package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-intake-service/internal/models"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/schema"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTurns != nil {
				t.Error("expected nil turn writer when disabled")
			}
			if p.writerRecords != nil {
				t.Error("expected nil record writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicTurns:   "test.turns",
		TopicRecords: "test.records",
		Principal:    "test-principal",
	})

	if p.Principal() != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.Principal())
	}
	if p.topicTurns != "test.turns" {
		t.Errorf("expected turn topic 'test.turns', got %s", p.topicTurns)
	}
	if p.topicRecords != "test.records" {
		t.Errorf("expected record topic 'test.records', got %s", p.topicRecords)
	}
}

func TestNew_Enabled(t *testing.T) {
	p := New(&Config{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		TopicTurns:   "test.turns",
		TopicRecords: "test.records",
	})
	defer p.Close()

	if !p.enabled {
		t.Error("expected publisher to be enabled")
	}
	if p.writerTurns == nil || p.writerTurns.Topic != "test.turns" {
		t.Error("expected turn writer bound to test.turns")
	}
	if p.writerRecords == nil || p.writerRecords.Topic != "test.records" {
		t.Error("expected record writer bound to test.records")
	}
}

type recordingMirror struct {
	events []any
}

func (m *recordingMirror) Broadcast(event any) {
	m.events = append(m.events, event)
}

func validTurn() *models.TurnEvent {
	return &models.TurnEvent{
		EventType: models.EventTypeTurn,
		SessionID: "s-1",
		Timestamp: 1700000000000,
		State:     "CONFIRMING",
		Field:     "name",
	}
}

func TestPublisher_PublishTurn_DisabledMirrors(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(&Config{TopicTurns: "test.turns", Validator: schema.New(), Metrics: m})
	mirror := &recordingMirror{}
	p.SetMirror(mirror)

	if err := p.PublishTurn(context.Background(), validTurn()); err != nil {
		t.Fatalf("expected no error when disabled, got %v", err)
	}

	if len(mirror.events) != 1 {
		t.Fatalf("expected 1 mirrored event, got %d", len(mirror.events))
	}
	raw, ok := mirror.events[0].(json.RawMessage)
	if !ok {
		t.Fatalf("expected json.RawMessage, got %T", mirror.events[0])
	}
	var decoded models.TurnEvent
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.SessionID != "s-1" {
		t.Errorf("expected sessionId 's-1', got %s", decoded.SessionID)
	}

	got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("test.turns", models.EventTypeTurn))
	if got != 1 {
		t.Errorf("expected 1 publish recorded, got %v", got)
	}
}

func TestPublisher_PublishRecord_ValidationFailure(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(&Config{TopicRecords: "test.records", Validator: schema.New(), Metrics: m})
	mirror := &recordingMirror{}
	p.SetMirror(mirror)

	err := p.PublishRecord(context.Background(), &models.RecordCompleted{
		EventType: models.EventTypeRecordCompleted,
		SessionID: "s-1",
		Timestamp: 1,
	})
	if !errors.Is(err, schema.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if len(mirror.events) != 0 {
		t.Error("expected invalid event not to be mirrored")
	}
	got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("test.records", models.EventTypeRecordCompleted))
	if got != 1 {
		t.Errorf("expected 1 publish error recorded, got %v", got)
	}
}

func TestPublisher_PublishRecord_Valid(t *testing.T) {
	p := New(&Config{Enabled: false, TopicRecords: "test.records", Principal: "test-svc"})

	err := p.PublishRecord(context.Background(), &models.RecordCompleted{
		EventType: models.EventTypeRecordCompleted,
		SessionID: "s-1",
		Timestamp: 1,
		Fields:    map[string]string{"name": "John"},
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
