package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-intake-service/internal/models"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/field"
	"voice-intake-service/internal/service/session"
	"voice-intake-service/internal/service/tts"
	"voice-intake-service/internal/store"
)

type fakeRecorder struct {
	mu    sync.Mutex
	saved []store.Record
	err   error
}

func (f *fakeRecorder) Save(_ context.Context, rec store.Record) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.Record{}, f.err
	}
	rec.ID = fmt.Sprintf("rec-%d", len(f.saved)+1)
	f.saved = append(f.saved, rec)
	return rec, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) (*tts.AudioHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	id := fmt.Sprintf("clip-%d", len(f.texts))
	return &tts.AudioHandle{ID: id, URL: "/v1/audio/" + id, ContentType: "audio/wav"}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	turns   []*models.TurnEvent
	records []*models.RecordCompleted
	err     error
}

func (f *fakePublisher) PublishTurn(_ context.Context, ev *models.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, ev)
	return f.err
}

func (f *fakePublisher) PublishRecord(_ context.Context, ev *models.RecordCompleted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ev)
	return f.err
}

type harness struct {
	p        *Processor
	sessions *session.Store
	rec      *fakeRecorder
	speaker  *fakeSpeaker
	pub      *fakePublisher
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, policy PersistPolicy) *harness {
	t.Helper()
	catalog := field.Default()
	h := &harness{
		sessions: session.NewStore(catalog.First().Name),
		rec:      &fakeRecorder{},
		speaker:  &fakeSpeaker{},
		pub:      &fakePublisher{},
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	p, err := New(Config{
		Catalog:   catalog,
		Sessions:  h.sessions,
		Records:   h.rec,
		Speaker:   h.speaker,
		Publisher: h.pub,
		Policy:    policy,
		Backend:   "fake",
		Principal: "test-svc",
		Metrics:   h.metrics,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.p = p
	return h
}

func (h *harness) turn(t *testing.T, id, text string) *TurnResult {
	t.Helper()
	res, err := h.p.ProcessTurn(context.Background(), id, text)
	if err != nil {
		t.Fatalf("turn %q: unexpected error: %v", text, err)
	}
	return res
}

// answers walks the default catalog with accepted answers.
var answers = []struct {
	field string
	text  string
	value string
}{
	{field.Name, "My name is John", "John"},
	{field.Location, "I live in Chennai", "Chennai"},
	{field.Wage, "my wage is 4500 rupees", "4500"},
	{field.PhoneNumber, "nine nine one two three four five six seven eight", "9912345678"},
	{field.Age, "twenty five", "25"},
}

func TestProcessTurn_EndToEnd(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-1"

	res := h.turn(t, id, "My name is John")
	if res.State != "CONFIRMING" || res.CurrentField != field.Name {
		t.Fatalf("expected CONFIRMING(name), got %s(%s)", res.State, res.CurrentField)
	}
	if res.AssistantText != "Is this your name: John? Say yes to confirm, no to repeat." {
		t.Errorf("unexpected confirmation prompt %q", res.AssistantText)
	}
	if res.Audio == nil || res.Audio.ID == "" {
		t.Error("expected an audio handle")
	}
	if res.Fields[field.Location] != nil {
		t.Error("expected unset fields to be nil")
	}

	res = h.turn(t, id, "yes")
	if res.State != "COLLECTING" || res.CurrentField != field.Location {
		t.Fatalf("expected COLLECTING(location), got %s(%s)", res.State, res.CurrentField)
	}
	if res.AssistantText != "What area or city are you located in?" {
		t.Errorf("unexpected prompt %q", res.AssistantText)
	}

	for _, a := range answers[1:] {
		res = h.turn(t, id, a.text)
		if res.CurrentField != a.field || res.State != "CONFIRMING" {
			t.Fatalf("%s: expected CONFIRMING(%s), got %s(%s)", a.text, a.field, res.State, res.CurrentField)
		}
		if got := res.Fields[a.field]; got == nil || *got != a.value {
			t.Fatalf("%s: expected provisional value %q, got %v", a.field, a.value, got)
		}
		if h.rec.count() != 0 {
			t.Fatalf("expected no persistence before final confirmation")
		}
		res = h.turn(t, id, "Yes")
	}

	if !res.Finished || res.State != "FINISHED" {
		t.Fatalf("expected finished, got %s", res.State)
	}
	want := "Thank you. We have recorded your details. name: John, location: Chennai, wage: 4500, phone number: 9912345678, age: 25."
	if res.AssistantText != want {
		t.Errorf("unexpected summary:\n got: %s\nwant: %s", res.AssistantText, want)
	}
	if res.RecordID != "rec-1" || !res.Persisted {
		t.Errorf("expected persisted record rec-1, got %q (%v)", res.RecordID, res.Persisted)
	}

	if h.rec.count() != 1 {
		t.Fatalf("expected exactly one save, got %d", h.rec.count())
	}
	saved := h.rec.saved[0]
	for _, a := range answers {
		if saved.Fields[a.field] != a.value {
			t.Errorf("record %s: expected %q, got %q", a.field, a.value, saved.Fields[a.field])
		}
	}
	if saved.SessionID != id {
		t.Errorf("expected session id %s, got %s", id, saved.SessionID)
	}

	if _, ok := h.sessions.Get(id); ok {
		t.Error("expected session to be removed after completion")
	}
	if len(h.pub.records) != 1 || h.pub.records[0].RecordID != "rec-1" {
		t.Errorf("expected one record event, got %d", len(h.pub.records))
	}

	// Same id starts over at the first field.
	res = h.turn(t, id, "My name is Priya")
	if res.CurrentField != field.Name || res.State != "CONFIRMING" {
		t.Errorf("expected fresh session at name, got %s(%s)", res.State, res.CurrentField)
	}
	if res.Fields[field.Location] != nil {
		t.Error("expected fresh session without old values")
	}
}

func TestProcessTurn_FieldOrder(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-order"

	var visited []string
	for _, a := range answers {
		res := h.turn(t, id, a.text)
		visited = append(visited, res.CurrentField)
		h.turn(t, id, "y")
	}

	names := field.Default().Names()
	if fmt.Sprint(visited) != fmt.Sprint(names) {
		t.Errorf("expected fields visited in order %v, got %v", names, visited)
	}
}

func TestProcessTurn_DisconfirmIsRepeatable(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-no"

	h.turn(t, id, "My name is John")
	for _, reply := range []string{"no", "", "yeah", "eyes", "nope"} {
		res := h.turn(t, id, reply)
		if res.State != "COLLECTING" || res.CurrentField != field.Name {
			t.Fatalf("reply %q: expected COLLECTING(name), got %s(%s)", reply, res.State, res.CurrentField)
		}
		if res.AssistantText != "Please state your full name." {
			t.Errorf("reply %q: expected original prompt, got %q", reply, res.AssistantText)
		}
		h.turn(t, id, "My name is John")
	}

	if got := testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues(field.Name, "no")); got != 5 {
		t.Errorf("expected 5 negative confirmations, got %v", got)
	}
}

func TestProcessTurn_DisconfirmedValueIsOverwritten(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-over"

	h.turn(t, id, "My name is Jon")
	h.turn(t, id, "no")
	res := h.turn(t, id, "My name is John")

	if got := res.Fields[field.Name]; got == nil || *got != "John" {
		t.Errorf("expected new value John, got %v", got)
	}
}

func TestProcessTurn_RejectionDoesNotMutateFields(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-reject"

	h.turn(t, id, "My name is John")
	h.turn(t, id, "yes")
	h.turn(t, id, "Chennai")
	h.turn(t, id, "yes")
	h.turn(t, id, "500")
	h.turn(t, id, "yes")

	// Phone: provisional, disconfirmed, then rejected.
	h.turn(t, id, "nine nine one two three four five six seven eight")
	h.turn(t, id, "no")
	before, _ := h.sessions.Get(id)
	prev := before.Fields[field.PhoneNumber]

	res := h.turn(t, id, "one two three")
	if res.State != "COLLECTING" || res.CurrentField != field.PhoneNumber {
		t.Fatalf("expected COLLECTING(phone_number), got %s(%s)", res.State, res.CurrentField)
	}
	if res.AssistantText != "Sorry, I didn't catch that. Please repeat your phone number." {
		t.Errorf("unexpected retry prompt %q", res.AssistantText)
	}
	after, _ := h.sessions.Get(id)
	if after.Fields[field.PhoneNumber] != prev {
		t.Errorf("expected phone to stay %q, got %q", prev, after.Fields[field.PhoneNumber])
	}
	if got := testutil.ToFloat64(h.metrics.Rejections.WithLabelValues(field.PhoneNumber)); got != 1 {
		t.Errorf("expected 1 rejection, got %v", got)
	}
}

func TestProcessTurn_AgeValidation(t *testing.T) {
	tests := []struct {
		text     string
		accepted bool
	}{
		{"twenty five", true},
		{"fifteen", false},
		{"eighteen", false},
		{"nineteen", true},
		{"one hundred and twenty", false},
		{"I am old", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHarness(t, PersistStrict)
			const id = "s-age"
			for _, a := range answers[:4] {
				h.turn(t, id, a.text)
				h.turn(t, id, "yes")
			}
			res := h.turn(t, id, tt.text)
			if got := res.State == "CONFIRMING"; got != tt.accepted {
				t.Errorf("expected accepted=%v, got state %s (%q)", tt.accepted, res.State, res.AssistantText)
			}
		})
	}
}

func TestProcessTurn_EmptyNameRejected(t *testing.T) {
	h := newHarness(t, PersistStrict)

	res := h.turn(t, "s-empty", "   ")
	if res.Outcome != OutcomeRejected {
		t.Errorf("expected rejection, got %s", res.Outcome)
	}
	if res.Fields[field.Name] != nil {
		t.Error("expected name to stay unset")
	}
}

func TestProcessTurn_RunawaySpokenNumberRejected(t *testing.T) {
	h := newHarness(t, PersistStrict)
	for _, a := range answers[:3] {
		h.turn(t, "s-runaway", a.text)
		h.turn(t, "s-runaway", "yes")
	}

	res := h.turn(t, "s-runaway", strings.Repeat("hundred ", 10))
	if res.Outcome != OutcomeRejected {
		t.Fatalf("expected rejection, got %s (state %s)", res.Outcome, res.State)
	}
	if res.Fields[field.PhoneNumber] != nil {
		t.Errorf("expected phone number to stay unset, got %v", res.Fields[field.PhoneNumber])
	}
}

func completeAllButLastYes(t *testing.T, h *harness, id string) {
	t.Helper()
	for i, a := range answers {
		h.turn(t, id, a.text)
		if i < len(answers)-1 {
			h.turn(t, id, "yes")
		}
	}
}

func TestProcessTurn_StrictPersistenceFailure(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-strict"
	completeAllButLastYes(t, h, id)

	h.rec.err = errors.New("connection refused")
	_, err := h.p.ProcessTurn(context.Background(), id, "yes")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	sess, ok := h.sessions.Get(id)
	if !ok {
		t.Fatal("expected session to be kept")
	}
	if sess.State() != session.StateConfirming || sess.CurrentField != field.Age {
		t.Errorf("expected CONFIRMING(age), got %s(%s)", sess.State(), sess.CurrentField)
	}

	// Retry succeeds once the store recovers.
	h.rec.err = nil
	res := h.turn(t, id, "yes")
	if !res.Finished || h.rec.count() != 1 {
		t.Errorf("expected finish with one save, got finished=%v saves=%d", res.Finished, h.rec.count())
	}
}

func TestProcessTurn_BestEffortPersistenceFailure(t *testing.T) {
	h := newHarness(t, PersistBestEffort)
	const id = "s-best"
	completeAllButLastYes(t, h, id)

	h.rec.err = errors.New("connection refused")
	res := h.turn(t, id, "yes")

	if !res.Finished {
		t.Error("expected turn to finish")
	}
	if res.Persisted {
		t.Error("expected persisted=false")
	}
	if _, ok := h.sessions.Get(id); ok {
		t.Error("expected session to be removed")
	}
	if got := testutil.ToFloat64(h.metrics.PersistErrors.WithLabelValues("fake", "best_effort")); got != 1 {
		t.Errorf("expected 1 persist error, got %v", got)
	}
	if len(h.pub.records) != 1 || h.pub.records[0].Persisted {
		t.Error("expected record event with persisted=false")
	}
}

func TestProcessTurn_SynthesisFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-tts"

	h.turn(t, id, "My name is John")
	h.speaker.err = errors.New("tts down")

	_, err := h.p.ProcessTurn(context.Background(), id, "yes")
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	sess, _ := h.sessions.Get(id)
	if sess.State() != session.StateConfirming || sess.CurrentField != field.Name {
		t.Errorf("expected CONFIRMING(name), got %s(%s)", sess.State(), sess.CurrentField)
	}
	if sess.Turns != 1 {
		t.Errorf("expected turn count 1, got %d", sess.Turns)
	}
}

func TestProcessTurn_FinalSynthesisFailureDoesNotPersist(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-tts-final"
	completeAllButLastYes(t, h, id)

	h.speaker.err = errors.New("tts down")
	if _, err := h.p.ProcessTurn(context.Background(), id, "yes"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if h.rec.count() != 0 {
		t.Errorf("expected no save, got %d", h.rec.count())
	}
}

func TestProcessTurn_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, PersistStrict)
	h.pub.err = errors.New("broker down")

	if _, err := h.p.ProcessTurn(context.Background(), "s-pub", "My name is John"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestProcessTurn_ContactStatusFromTranscript(t *testing.T) {
	h := newHarness(t, PersistStrict)
	const id = "s-contact"

	h.turn(t, id, "My name is John, please call me back")
	h.turn(t, id, "yes")
	for _, a := range answers[1:] {
		h.turn(t, id, a.text)
		h.turn(t, id, "yes")
	}

	if got := h.rec.saved[0].ContactStatus; got != "reachable" {
		t.Errorf("expected contact status 'reachable', got %q", got)
	}
}

func TestStartAndReset(t *testing.T) {
	h := newHarness(t, PersistStrict)
	ctx := context.Background()

	res, err := h.p.Start(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if res.AssistantText != "Please state your full name." || res.State != "COLLECTING" {
		t.Errorf("unexpected start result: %+v", res)
	}

	h.turn(t, res.SessionID, "My name is John")
	restarted, _ := h.p.Start(ctx, res.SessionID)
	if restarted.Fields[field.Name] != nil {
		t.Error("expected start to replace the existing session")
	}

	h.p.Reset(ctx, res.SessionID)
	h.p.Reset(ctx, res.SessionID)
	h.p.Reset(ctx, "never-seen")
	if h.sessions.Len() != 0 {
		t.Errorf("expected no sessions, got %d", h.sessions.Len())
	}
	if got := testutil.ToFloat64(h.metrics.SessionsActive); got != 0 {
		t.Errorf("expected 0 active sessions, got %v", got)
	}
}

func TestProcessTurn_WithoutSpeaker(t *testing.T) {
	catalog := field.Default()
	p, err := New(Config{
		Catalog:  catalog,
		Sessions: session.NewStore(catalog.First().Name),
		Records:  &fakeRecorder{},
		Metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := p.ProcessTurn(context.Background(), "s-quiet", "My name is John")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Audio != nil {
		t.Error("expected no audio without a speaker")
	}
}

func TestNew_Validation(t *testing.T) {
	catalog := field.Default()
	sessions := session.NewStore(catalog.First().Name)

	if _, err := New(Config{Sessions: sessions, Records: &fakeRecorder{}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without catalog, got %v", err)
	}
	if _, err := New(Config{Catalog: catalog, Sessions: sessions, Records: &fakeRecorder{}, Policy: "sometimes"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for bad policy, got %v", err)
	}
}

func TestParsePersistPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PersistPolicy
		wantErr bool
	}{
		{"", PersistStrict, false},
		{"strict", PersistStrict, false},
		{"BEST_EFFORT", PersistBestEffort, false},
		{"lenient", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePersistPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePersistPolicy(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePersistPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"yes", true},
		{"YES", true},
		{"Yes, that's right", true},
		{"y", true},
		{"oh yes.", true},
		{"no", false},
		{"yeah", false},
		{"eyes", false},
		{"", false},
		{"no, not yes", false},
		{"no y'know it's wrong", false},
		{"yes-man? no", false},
		{"yes, that is not my name", false},
		{"Y.", true},
	}

	for _, tt := range tests {
		if got := IsAffirmative(tt.text); got != tt.want {
			t.Errorf("IsAffirmative(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSerial_ConcurrentTurnsSameSession(t *testing.T) {
	h := newHarness(t, PersistStrict)
	s := NewSerial(h.p)
	const id = "s-serial"

	// Each "no" flips the session between capture and disconfirmation.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ProcessTurn(context.Background(), id, "no")
		}()
	}
	wg.Wait()

	sess, ok := h.sessions.Get(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if sess.Turns != 20 {
		t.Errorf("expected 20 turns, got %d", sess.Turns)
	}
	if len(s.locks) != 0 {
		t.Errorf("expected lock table to be empty, got %d", len(s.locks))
	}
}
