package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"voice-intake-service/internal/observability"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/dialog"
	"voice-intake-service/internal/service/field"
	"voice-intake-service/internal/service/session"
	"voice-intake-service/internal/store"
)

type failingRecorder struct{}

func (failingRecorder) Save(context.Context, store.Record) (store.Record, error) {
	return store.Record{}, errors.New("disk full")
}

func newClient(t *testing.T, records dialog.Recorder) *Client {
	t.Helper()
	catalog := field.Default()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p, err := dialog.New(dialog.Config{
		Catalog:  catalog,
		Sessions: session.NewStore(catalog.First().Name),
		Records:  records,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)))
	Register(srv, dialog.NewSerial(p))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func TestIntakeService_Conversation(t *testing.T) {
	c := newClient(t, store.NewMemory())
	ctx := context.Background()

	start, err := c.StartSession(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := str(start, "session_id")
	if id == "" {
		t.Fatal("expected generated session id")
	}
	if str(start, "assistant_text") != "Please state your full name." {
		t.Errorf("unexpected first prompt %q", str(start, "assistant_text"))
	}

	answers := []string{
		"My name is John", "yes",
		"I live in Chennai", "yes",
		"500", "yes",
		"nine eight seven six five four three two one zero", "yes",
		"twenty five", "yes",
	}
	var last *structpb.Struct
	for _, a := range answers {
		last, err = c.ProcessTurn(ctx, id, a)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", a, err)
		}
	}

	if !last.GetFields()["finished"].GetBoolValue() {
		t.Error("expected finished")
	}
	fields := last.GetFields()["fields"].GetStructValue()
	if got := str(fields, field.PhoneNumber); got != "9876543210" {
		t.Errorf("expected phone 9876543210, got %q", got)
	}
	if str(last, "record_id") == "" {
		t.Error("expected record id")
	}

	reset, err := c.ResetSession(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if str(reset, "status") != "reset" {
		t.Errorf("expected reset status, got %v", reset)
	}
}

func TestIntakeService_Errors(t *testing.T) {
	c := newClient(t, failingRecorder{})
	ctx := context.Background()

	if _, err := c.ProcessTurn(ctx, "", "hello"); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if _, err := c.ResetSession(ctx, " "); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}

	const id = "grpc-fail"
	for _, a := range []string{
		"My name is John", "yes", "Chennai", "yes", "500", "yes",
		"9876543210", "yes", "30",
	} {
		if _, err := c.ProcessTurn(ctx, id, a); err != nil {
			t.Fatalf("%q: unexpected error: %v", a, err)
		}
	}

	_, err := c.ProcessTurn(ctx, id, "yes")
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected Unavailable on strict persistence failure, got %v", err)
	}
}
