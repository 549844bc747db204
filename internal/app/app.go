package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "voice-intake-service/internal/api/grpc"
	"voice-intake-service/internal/auth"
	"voice-intake-service/internal/config"
	"voice-intake-service/internal/events"
	httpapi "voice-intake-service/internal/http"
	"voice-intake-service/internal/live"
	"voice-intake-service/internal/observability"
	"voice-intake-service/internal/observability/logging"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/schema"
	"voice-intake-service/internal/service/audio"
	"voice-intake-service/internal/service/clips"
	"voice-intake-service/internal/service/dialog"
	"voice-intake-service/internal/service/field"
	"voice-intake-service/internal/service/session"
	"voice-intake-service/internal/service/stt"
	sttgoogle "voice-intake-service/internal/service/stt/google"
	sttmock "voice-intake-service/internal/service/stt/mock"
	"voice-intake-service/internal/service/stt/whisper"
	"voice-intake-service/internal/service/tts"
	ttsgoogle "voice-intake-service/internal/service/tts/google"
	ttsmock "voice-intake-service/internal/service/tts/mock"
	"voice-intake-service/internal/store"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Metrics     *metrics.Metrics

	ready   atomic.Bool
	cancel  context.CancelFunc
	closers []func() error

	publisher  *events.Publisher
	records    store.Store
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	obsServer  *observability.Server
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)

	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
		Logger: logging.WithComponent("application").With().
			Str("service", "voice-intake-service").
			Logger(),
	}

	a.Logger.Info().
		Str("environment", cfg.Service.Env).
		Str("logLevel", cfg.Observability.LogLevel).
		Msg("Voice intake service application created")
	return a
}

// Ready reports whether the service accepts traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Start builds every component and starts the gRPC, HTTP and observability
// servers. Listeners are bound before Start returns.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().Str("method", "Start").Logger()
	a.StartupTime = time.Now().UTC()

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.obsServer = observability.NewServer(":"+a.Cfg.Observability.MetricsPort, nil, a.Ready)
	a.obsServer.Start()

	factory, err := a.newRecognizer(ctx)
	if err != nil {
		return err
	}
	speaker, clipStore, err := a.newSpeaker(ctx)
	if err != nil {
		return err
	}
	records, err := a.newRecordStore(ctx)
	if err != nil {
		return err
	}
	a.records = records

	hub := live.NewHub(a.Cfg.Service.AllowedOrigins)
	go hub.Run(runCtx)

	a.publisher = events.New(&events.Config{
		Enabled:      a.Cfg.Kafka.Enabled,
		Brokers:      a.Cfg.Kafka.Brokers,
		TopicTurns:   a.Cfg.Kafka.TopicTurns,
		TopicRecords: a.Cfg.Kafka.TopicRecords,
		Principal:    a.Cfg.Kafka.Principal,
		Validator:    schema.New(),
		Metrics:      a.Metrics,
	})
	a.publisher.SetMirror(hub)

	policy, err := dialog.ParsePersistPolicy(a.Cfg.Intake.PersistPolicy)
	if err != nil {
		return err
	}
	catalog := field.Default()
	processor, err := dialog.New(dialog.Config{
		Catalog:   catalog,
		Sessions:  session.NewStore(catalog.First().Name),
		Records:   records,
		Speaker:   speaker,
		Publisher: a.publisher,
		Policy:    policy,
		Backend:   a.Cfg.Store.Backend,
		Principal: a.Cfg.Service.Principal,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return err
	}
	serial := dialog.NewSerial(processor)

	limits := audio.Limits{
		MaxAudioBytes: a.Cfg.AudioLimits.MaxAudioBytes,
		MaxDuration:   a.Cfg.AudioLimits.MaxDuration,
		MaxPartials:   a.Cfg.AudioLimits.MaxPartials,
		ChunkBytes:    audio.DefaultLimits().ChunkBytes,
		RawSampleRate: a.Cfg.AudioLimits.RawSampleRate,
	}

	var verifier *auth.Verifier
	if a.Cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(a.Cfg.Auth.JWTSecret, a.Cfg.Auth.Issuer)
	} else {
		startLogger.Warn().Msg("RECORDS_JWT_SECRET not set, records API disabled")
	}

	if err := a.startGRPC(serial); err != nil {
		return err
	}
	if err := a.startHTTP(httpapi.Deps{
		Dialog:         serial,
		Transcriber:    audio.NewTranscriber(factory, a.Cfg.STT.Provider, limits, a.Metrics),
		Clips:          clipStore,
		Records:        records,
		Verifier:       verifier,
		Hub:            hub,
		Metrics:        a.Metrics,
		Ready:          a.Ready,
		MaxUploadBytes: limits.MaxAudioBytes + 1<<20,
	}); err != nil {
		return err
	}

	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("stt", a.Cfg.STT.Provider).
		Str("tts", a.Cfg.TTS.Provider).
		Str("store", a.Cfg.Store.Backend).
		Str("clips", a.Cfg.Clips.Backend).
		Str("persistPolicy", string(policy)).
		Bool("kafka", a.Cfg.Kafka.Enabled).
		Msg("Voice intake service started")
	return nil
}

func (a *Application) newRecognizer(ctx context.Context) (stt.Factory, error) {
	switch a.Cfg.STT.Provider {
	case "mock", "":
		return sttmock.Factory, nil
	case "google":
		r, err := sttgoogle.NewRecognizer(ctx, sttgoogle.Config{
			LanguageCode:   a.Cfg.STT.LanguageCode,
			SampleRateHz:   a.Cfg.STT.SampleRateHz,
			InterimResults: a.Cfg.STT.InterimResults,
			AudioEncoding:  a.Cfg.STT.AudioEncoding,
			Model:          a.Cfg.STT.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create google speech client: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return r.Factory, nil
	case "whisper":
		lang, _, _ := strings.Cut(a.Cfg.STT.LanguageCode, "-")
		c := whisper.NewClient(whisper.Config{
			URL:      a.Cfg.STT.WhisperURL,
			Model:    a.Cfg.STT.Model,
			Language: lang,
			Timeout:  a.Cfg.STT.WhisperTimeout,
		}, nil)
		return c.Factory, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", a.Cfg.STT.Provider)
	}
}

// newSpeaker returns a nil speaker when TTS is disabled; the clip store is
// still created so /v1/audio answers 404 rather than panicking.
func (a *Application) newSpeaker(ctx context.Context) (dialog.Speaker, clips.Store, error) {
	var clipStore clips.Store
	switch a.Cfg.Clips.Backend {
	case "memory", "":
		clipStore = clips.NewMemory(a.Cfg.Clips.Capacity)
	case "s3":
		s, err := clips.NewS3(ctx, clips.S3Config{
			Bucket:       a.Cfg.Clips.S3Bucket,
			Prefix:       a.Cfg.Clips.S3Prefix,
			Region:       a.Cfg.Clips.S3Region,
			Endpoint:     a.Cfg.Clips.S3Endpoint,
			UsePathStyle: a.Cfg.Clips.S3PathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create s3 clip store: %w", err)
		}
		clipStore = s
	default:
		return nil, nil, fmt.Errorf("unknown clips backend %q", a.Cfg.Clips.Backend)
	}

	var synth tts.Synthesizer
	switch a.Cfg.TTS.Provider {
	case "none":
		return nil, clipStore, nil
	case "mock", "":
		synth = ttsmock.New()
	case "google":
		cfg := ttsgoogle.DefaultConfig()
		cfg.LanguageCode = a.Cfg.TTS.LanguageCode
		cfg.VoiceName = a.Cfg.TTS.VoiceName
		cfg.AudioEncoding = a.Cfg.TTS.AudioEncoding
		cfg.SpeakingRate = a.Cfg.TTS.SpeakingRate
		s, err := ttsgoogle.New(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create google tts client: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		synth = s
	default:
		return nil, nil, fmt.Errorf("unknown TTS provider %q", a.Cfg.TTS.Provider)
	}
	return tts.NewSpeaker(synth, clipStore, a.Cfg.Service.PublicURL, a.Metrics), clipStore, nil
}

func (a *Application) newRecordStore(ctx context.Context) (store.Store, error) {
	switch a.Cfg.Store.Backend {
	case "memory", "":
		return store.NewMemory(), nil
	case "postgres":
		if a.Cfg.Store.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		return store.OpenPostgres(ctx, store.PostgresConfig{
			URL:            a.Cfg.Store.DatabaseURL,
			MigrateOnStart: a.Cfg.Store.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.Cfg.Store.Backend)
	}
}

func (a *Application) startGRPC(d grpcapi.Dialog) error {
	lis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	a.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(observability.UnaryServerInterceptor(a.Metrics)))

	// Register gRPC health check service
	a.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.health)
	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpcapi.Register(a.grpcServer, d)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(a.grpcServer)

	go func() {
		a.Logger.Info().Str("port", a.Cfg.Service.GRPCPort).Msg("gRPC server listening")
		if err := a.grpcServer.Serve(lis); err != nil {
			a.Logger.Error().Err(err).Msg("gRPC serve failed")
		}
	}()
	return nil
}

func (a *Application) startHTTP(deps httpapi.Deps) error {
	lis, err := net.Listen("tcp", ":"+a.Cfg.Service.HTTPPort)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}

	a.httpServer = &http.Server{
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("port", a.Cfg.Service.HTTPPort).Msg("HTTP server listening")
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP serve failed")
		}
	}()
	return nil
}

// Shutdown stops accepting traffic, drains the servers and releases clients.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Voice intake service shutting down")
	a.ready.Store(false)

	if a.health != nil {
		a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
	}
	if a.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			a.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			a.grpcServer.Stop()
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close record store")
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close client")
		}
	}
	if a.obsServer != nil {
		a.obsServer.Shutdown(ctx)
	}
}
