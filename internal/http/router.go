package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"voice-intake-service/internal/auth"
	"voice-intake-service/internal/live"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/audio"
	"voice-intake-service/internal/service/clips"
	"voice-intake-service/internal/service/dialog"
	"voice-intake-service/internal/store"
)

// Deps are the components served over HTTP. Verifier and Hub are optional:
// without a verifier the records API answers 404, without a hub the event
// feed does.
type Deps struct {
	Dialog      *dialog.Serial
	Transcriber *audio.Transcriber
	Clips       clips.Store
	Records     store.Store
	Verifier    *auth.Verifier
	Hub         *live.Hub
	Metrics     *metrics.Metrics
	// Ready reports whether the service accepts traffic. Nil means always.
	Ready func() bool
	// MaxUploadBytes caps a multipart /v1/ivr request body.
	MaxUploadBytes int64
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(d Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = metrics.DefaultMetrics
	}
	h := &handlers{deps: d}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(d.Metrics))
	r.NotFound(notFound)

	// Health endpoints
	r.Get("/health", h.health)
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if d.Ready != nil && !d.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/sessions", h.startSession)
			r.Post("/reset", h.reset)
			r.Post("/ivr", h.ivr)
			r.Post("/turns", h.turn)
			r.Post("/extract", h.extract)
			r.Get("/audio/{id}", h.audio)
		})

		if d.Verifier != nil {
			r.Route("/records", func(r chi.Router) {
				r.Use(d.Verifier.Middleware)
				r.Get("/", h.listRecords)
				r.Patch("/{id}/status", h.updateRecordStatus)
			})
		}

		if d.Hub != nil {
			r.Get("/events/ws", d.Hub.ServeWS)
		}
	})

	return r
}

// requestMetrics counts requests by route pattern so ids in paths do not
// explode label cardinality.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTP(route, r.Method, status)
		})
	}
}
