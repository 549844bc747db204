package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-intake-service/internal/observability/metrics"
)

func TestHandler_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordSessionStarted()

	ready := false
	h := Handler(reg, func() bool { return ready })

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
		if tt.path == "/metrics" && !strings.Contains(rec.Body.String(), "voice_intake_sessions_started_total") {
			t.Error("expected intake metrics in /metrics output")
		}
	}

	ready = true
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 once ready, got %d", rec.Code)
	}
}

func TestUnaryServerInterceptor_RecordsCode(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	interceptor := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/voice.intake.v1.IntakeService/ProcessTurn"}

	ok := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }
	fail := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	if resp, err := interceptor(context.Background(), nil, info, ok); err != nil || resp != "ok" {
		t.Errorf("expected passthrough, got %v, %v", resp, err)
	}
	_, err := interceptor(context.Background(), nil, info, fail)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, errors.New("plain")
	})
	if err == nil {
		t.Error("expected error")
	}

	if got := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(info.FullMethod, "OK")); got != 1 {
		t.Errorf("expected 1 OK call, got %v", got)
	}
	if got := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(info.FullMethod, "InvalidArgument")); got != 1 {
		t.Errorf("expected 1 InvalidArgument call, got %v", got)
	}
	if got := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(info.FullMethod, "Unknown")); got != 1 {
		t.Errorf("expected 1 Unknown call, got %v", got)
	}
}
