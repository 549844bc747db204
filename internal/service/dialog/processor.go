// Package dialog runs the intake confirmation loop: ask for a field, capture
// an answer, confirm it, then advance or retry.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"voice-intake-service/internal/models"
	"voice-intake-service/internal/observability/logging"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/extract"
	"voice-intake-service/internal/service/field"
	"voice-intake-service/internal/service/session"
	"voice-intake-service/internal/service/tts"
	"voice-intake-service/internal/store"
)

var (
	ErrPersistence   = errors.New("persist completed record")
	ErrSynthesis     = errors.New("synthesize prompt")
	ErrInvalidConfig = errors.New("invalid dialog config")
)

// PersistPolicy decides what a failed save does to the final turn.
type PersistPolicy string

const (
	// PersistStrict fails the turn; the session stays in CONFIRMING(last
	// field) and the caller can confirm again.
	PersistStrict PersistPolicy = "strict"
	// PersistBestEffort logs the failure and finishes anyway.
	PersistBestEffort PersistPolicy = "best_effort"
)

// ParsePersistPolicy accepts "strict" or "best_effort"; "" means strict.
func ParsePersistPolicy(s string) (PersistPolicy, error) {
	switch PersistPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PersistStrict:
		return PersistStrict, nil
	case PersistBestEffort:
		return PersistBestEffort, nil
	default:
		return "", fmt.Errorf("%w: unknown persist policy %q", ErrInvalidConfig, s)
	}
}

// Turn outcomes, used for metrics and events.
const (
	OutcomeStarted      = "started"
	OutcomeCaptured     = "captured"
	OutcomeRejected     = "rejected"
	OutcomeConfirmed    = "confirmed"
	OutcomeDisconfirmed = "disconfirmed"
	OutcomeCompleted    = "completed"
)

var (
	affirmative = regexp.MustCompile(`(?i)\byes\b`)
	bareY       = regexp.MustCompile(`(?i)^\W*y\W*$`)
	negative    = regexp.MustCompile(`(?i)\b(no|not|nope|wrong|incorrect)\b`)
)

// IsAffirmative reports whether text is a plain confirmation: a whole-word
// "yes" (or a bare "y") with no negative word anywhere in the reply.
func IsAffirmative(text string) bool {
	if negative.MatchString(text) {
		return false
	}
	return affirmative.MatchString(text) || bareY.MatchString(text)
}

// Speaker turns prompt text into an audio handle.
type Speaker interface {
	Speak(ctx context.Context, text string) (*tts.AudioHandle, error)
}

// Recorder saves completed records. store.Store satisfies it.
type Recorder interface {
	Save(ctx context.Context, rec store.Record) (store.Record, error)
}

// EventPublisher receives turn and completion events.
type EventPublisher interface {
	PublishTurn(ctx context.Context, event *models.TurnEvent) error
	PublishRecord(ctx context.Context, event *models.RecordCompleted) error
}

// Config wires a Processor. Catalog, Sessions and Records are required.
type Config struct {
	Catalog   *field.Catalog
	Sessions  *session.Store
	Records   Recorder
	Speaker   Speaker
	Publisher EventPublisher
	Policy    PersistPolicy
	Backend   string
	Principal string
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// TurnResult is what a caller receives for every turn.
type TurnResult struct {
	SessionID     string             `json:"session_id"`
	AssistantText string             `json:"assistant_text"`
	Finished      bool               `json:"finished"`
	Fields        map[string]*string `json:"fields"`
	Audio         *tts.AudioHandle   `json:"audio,omitempty"`
	State         string             `json:"state"`
	CurrentField  string             `json:"current_field,omitempty"`
	Outcome       string             `json:"outcome"`
	RecordID      string             `json:"record_id,omitempty"`
	Persisted     bool               `json:"persisted"`
}

// Processor is the turn state machine. It is safe for concurrent use across
// different sessions; turns for one session must not overlap (see Serial).
type Processor struct {
	catalog   *field.Catalog
	sessions  *session.Store
	records   Recorder
	speaker   Speaker
	publisher EventPublisher
	policy    PersistPolicy
	backend   string
	principal string
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New validates cfg and creates a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Catalog == nil || cfg.Sessions == nil || cfg.Records == nil {
		return nil, fmt.Errorf("%w: catalog, sessions and records are required", ErrInvalidConfig)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PersistStrict
	}
	if policy != PersistStrict && policy != PersistBestEffort {
		return nil, fmt.Errorf("%w: unknown persist policy %q", ErrInvalidConfig, policy)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "unknown"
	}
	return &Processor{
		catalog:   cfg.Catalog,
		sessions:  cfg.Sessions,
		records:   cfg.Records,
		speaker:   cfg.Speaker,
		publisher: cfg.Publisher,
		policy:    policy,
		backend:   backend,
		principal: cfg.Principal,
		metrics:   m,
		now:       now,
	}, nil
}

// Catalog returns the field table.
func (p *Processor) Catalog() *field.Catalog {
	return p.catalog
}

// Start creates a fresh session, replacing any existing one, and returns the
// first prompt. An empty id is generated.
func (p *Processor) Start(ctx context.Context, id string) (*TurnResult, error) {
	if id == "" {
		id = uuid.NewString()
	}
	start := time.Now()
	first := p.catalog.First()

	audio, err := p.speak(ctx, first.Prompt)
	if err != nil {
		return nil, err
	}

	existed := p.sessions.Remove(id)
	sess := p.sessions.Create(id)
	if !existed {
		p.metrics.RecordSessionStarted()
	}

	logger := logging.WithTurn(id, first.Name, sess.State().String())
	logger.Info().Msg("Session started")

	res := p.result(sess, first.Prompt, OutcomeStarted, audio)
	p.publishTurn(ctx, sess, "", first.Name, res)
	p.metrics.RecordTurn(OutcomeStarted, time.Since(start).Seconds())
	return res, nil
}

// Reset removes the session. It is a no-op for unknown ids.
func (p *Processor) Reset(_ context.Context, id string) {
	if p.sessions.Remove(id) {
		p.metrics.RecordSessionReset()
		logger := logging.WithSession(id)
		logger.Info().Msg("Session reset")
	}
}

// transition is the pure outcome of applying one answer to a session.
type transition struct {
	field    field.Field
	prompt   string
	outcome  string
	finished bool
}

// step applies text to sess in place.
func (p *Processor) step(sess *session.Session, text string) (transition, error) {
	f, ok := p.catalog.Lookup(sess.CurrentField)
	if !ok {
		return transition{}, fmt.Errorf("session %s is at unknown field %q", sess.ID, sess.CurrentField)
	}

	if sess.AwaitingConfirmation {
		sess.AwaitingConfirmation = false
		if !IsAffirmative(text) {
			// The provisional value stays until the next accepted answer
			// overwrites it.
			return transition{field: f, prompt: f.Prompt, outcome: OutcomeDisconfirmed}, nil
		}
		next, ok := p.catalog.Next(f.Name)
		if !ok {
			sess.CurrentField = ""
			return transition{field: f, prompt: p.summary(sess), outcome: OutcomeCompleted, finished: true}, nil
		}
		sess.CurrentField = next.Name
		return transition{field: f, prompt: next.Prompt, outcome: OutcomeConfirmed}, nil
	}

	value, ok := f.Accept(text)
	if !ok {
		return transition{field: f, prompt: f.RetryPrompt(), outcome: OutcomeRejected}, nil
	}
	sess.Fields[f.Name] = value
	sess.AwaitingConfirmation = true
	return transition{field: f, prompt: f.ConfirmPrompt(value), outcome: OutcomeCaptured}, nil
}

// summary enumerates every field:value pair of a completed session.
func (p *Processor) summary(sess *session.Session) string {
	fields := p.catalog.Fields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Label, sess.Fields[f.Name])
	}
	return "Thank you. We have recorded your details. " + strings.Join(parts, ", ") + "."
}

// ProcessTurn applies one caller answer. An unknown id starts a fresh session.
// The session is only updated once the prompt audio exists and, on the last
// confirmation, the record is saved, so a failed turn leaves it unchanged.
func (p *Processor) ProcessTurn(ctx context.Context, id, text string) (*TurnResult, error) {
	start := time.Now()

	current, created := p.sessions.GetOrCreate(id)
	if created {
		p.metrics.RecordSessionStarted()
	}
	work := current.Clone()
	work.Turns++
	work.Transcript = append(work.Transcript, text)

	fromState := work.State().String()
	tr, err := p.step(work, text)
	if err != nil {
		return nil, err
	}

	logger := logging.WithTurn(id, tr.field.Name, fromState)
	switch tr.outcome {
	case OutcomeRejected:
		p.metrics.RecordRejection(tr.field.Name)
		logger.Info().Str("text", text).Msg("Answer rejected")
	case OutcomeConfirmed, OutcomeCompleted:
		p.metrics.RecordConfirmation(tr.field.Name, true)
	case OutcomeDisconfirmed:
		p.metrics.RecordConfirmation(tr.field.Name, false)
	}

	audio, err := p.speak(ctx, tr.prompt)
	if err != nil {
		p.metrics.RecordTurn("error", time.Since(start).Seconds())
		return nil, err
	}

	res := p.result(work, tr.prompt, tr.outcome, audio)

	if tr.finished {
		rec, persisted, err := p.persist(ctx, work)
		if err != nil {
			p.metrics.RecordTurn("error", time.Since(start).Seconds())
			return nil, err
		}
		res.RecordID = rec.ID
		res.Persisted = persisted

		p.sessions.Remove(id)
		p.metrics.RecordSessionCompleted()
		p.publishRecord(ctx, work, rec, persisted)
	} else {
		p.sessions.Put(work)
	}

	logger.Info().
		Str("outcome", tr.outcome).
		Str("to", res.State).
		Str("nextField", res.CurrentField).
		Int("turn", work.Turns).
		Msg("Turn processed")

	p.publishTurn(ctx, work, text, tr.field.Name, res)
	p.metrics.RecordTurn(tr.outcome, time.Since(start).Seconds())
	return res, nil
}

// persist saves the completed record once. persisted is false only under
// PersistBestEffort when the save failed.
func (p *Processor) persist(ctx context.Context, sess *session.Session) (store.Record, bool, error) {
	rec := store.Record{
		SessionID:     sess.ID,
		Fields:        make(map[string]string, p.catalog.Len()),
		ContactStatus: extract.ContactStatus(strings.Join(sess.Transcript, " ")),
	}
	for _, name := range p.catalog.Names() {
		rec.Fields[name] = sess.Fields[name]
	}

	start := time.Now()
	saved, err := p.records.Save(ctx, rec)
	p.metrics.RecordPersist(p.backend, string(p.policy), err, time.Since(start).Seconds())

	logger := logging.WithSession(sess.ID)
	if err == nil {
		logger.Info().Str("recordId", saved.ID).Str("backend", p.backend).Msg("Completed record saved")
		return saved, true, nil
	}

	if p.policy == PersistStrict {
		logger.Error().Err(err).Str("backend", p.backend).Msg("Failed to save completed record, session kept")
		return store.Record{}, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	logger.Error().Err(err).Str("backend", p.backend).Msg("Failed to save completed record, finishing anyway")
	return rec, false, nil
}

func (p *Processor) speak(ctx context.Context, text string) (*tts.AudioHandle, error) {
	if p.speaker == nil {
		return nil, nil
	}
	h, err := p.speaker.Speak(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return h, nil
}

func (p *Processor) result(sess *session.Session, prompt, outcome string, audio *tts.AudioHandle) *TurnResult {
	return &TurnResult{
		SessionID:     sess.ID,
		AssistantText: prompt,
		Finished:      sess.State() == session.StateFinished,
		Fields:        sess.Snapshot(p.catalog.Names()),
		Audio:         audio,
		State:         sess.State().String(),
		CurrentField:  sess.CurrentField,
		Outcome:       outcome,
	}
}

func (p *Processor) publishTurn(ctx context.Context, sess *session.Session, text, fieldName string, res *TurnResult) {
	if p.publisher == nil {
		return
	}
	ev := &models.TurnEvent{
		EventType:     models.EventTypeTurn,
		SessionID:     sess.ID,
		Principal:     p.principal,
		Timestamp:     p.now().UnixMilli(),
		Turn:          sess.Turns,
		Field:         fieldName,
		State:         res.State,
		Outcome:       res.Outcome,
		UserText:      text,
		AssistantText: res.AssistantText,
		Finished:      res.Finished,
		Fields:        res.Fields,
	}
	if err := p.publisher.PublishTurn(ctx, ev); err != nil {
		logger := logging.WithSession(sess.ID)
		logger.Warn().Err(err).Msg("Failed to publish turn event")
	}
}

func (p *Processor) publishRecord(ctx context.Context, sess *session.Session, rec store.Record, persisted bool) {
	if p.publisher == nil {
		return
	}
	ev := &models.RecordCompleted{
		EventType:     models.EventTypeRecordCompleted,
		SessionID:     sess.ID,
		Principal:     p.principal,
		Timestamp:     p.now().UnixMilli(),
		RecordID:      rec.ID,
		Fields:        rec.Fields,
		ContactStatus: rec.ContactStatus,
		Persisted:     persisted,
	}
	if err := p.publisher.PublishRecord(ctx, ev); err != nil {
		logger := logging.WithSession(sess.ID)
		logger.Warn().Err(err).Msg("Failed to publish record event")
	}
}
