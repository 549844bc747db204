// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	TTS           TTSConfig
	AudioLimits   AudioLimitsConfig
	Clips         ClipsConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Intake        IntakeConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
	Env       string
	// PublicURL prefixes audio handle URLs, e.g. "https://ivr.example.com".
	PublicURL      string
	AllowedOrigins []string
}

// STTConfig holds Speech-to-Text configuration.
type STTConfig struct {
	Provider       string // mock, google, whisper
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	Model          string
	WhisperURL     string
	WhisperTimeout time.Duration
}

// TTSConfig holds Text-to-Speech configuration.
type TTSConfig struct {
	Provider      string // mock, google, none
	LanguageCode  string
	VoiceName     string
	AudioEncoding string
	SpeakingRate  float64
}

// AudioLimitsConfig bounds one uploaded answer.
type AudioLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
	RawSampleRate int
}

// ClipsConfig selects where synthesized prompts are kept.
type ClipsConfig struct {
	Backend     string // memory, s3
	Capacity    int
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// StoreConfig selects the completed-record store.
type StoreConfig struct {
	Backend        string // memory, postgres
	DatabaseURL    string
	MigrateOnStart bool
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicTurns   string
	TopicRecords string
	Principal    string
}

// IntakeConfig holds dialogue policy.
type IntakeConfig struct {
	PersistPolicy string // strict, best_effort
}

// AuthConfig guards the records API. An empty secret disables it.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds metrics and logging configuration.
type ObservabilityConfig struct {
	MetricsPort string
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Configuration {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-intake")
	env := envOrDefault("ENV", "prod")

	logFormat := "json"
	if env == "dev" {
		logFormat = "console"
	}

	return &Configuration{
		Service: ServiceConfig{
			Principal:      principal,
			GRPCPort:       envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:       envOrDefault("HTTP_PORT", "8000"),
			Env:            env,
			PublicURL:      strings.TrimRight(envOrDefault("PUBLIC_URL", ""), "/"),
			AllowedOrigins: splitList(envOrDefault("ALLOWED_ORIGINS", "")),
		},
		STT: STTConfig{
			Provider:       strings.ToLower(envOrDefault("STT_PROVIDER", "mock")),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 8000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			Model:          envOrDefault("STT_MODEL", ""),
			WhisperURL:     envOrDefault("WHISPER_API_URL", "http://localhost:9000/transcribe"),
			WhisperTimeout: envOrDefaultDuration("WHISPER_TIMEOUT", 60*time.Second),
		},
		TTS: TTSConfig{
			Provider:      strings.ToLower(envOrDefault("TTS_PROVIDER", "mock")),
			LanguageCode:  envOrDefault("TTS_LANGUAGE_CODE", "en-US"),
			VoiceName:     envOrDefault("TTS_VOICE_NAME", ""),
			AudioEncoding: envOrDefault("TTS_AUDIO_ENCODING", "MP3"),
			SpeakingRate:  envOrDefaultFloat("TTS_SPEAKING_RATE", 0.95),
		},
		AudioLimits: AudioLimitsConfig{
			MaxAudioBytes: envOrDefaultInt64("AUDIO_MAX_BYTES", 10*1024*1024),
			MaxDuration:   envOrDefaultDuration("AUDIO_MAX_DURATION", 2*time.Minute),
			MaxPartials:   envOrDefaultInt("AUDIO_MAX_PARTIALS", 500),
			RawSampleRate: envOrDefaultInt("AUDIO_RAW_SAMPLE_RATE_HZ", 16000),
		},
		Clips: ClipsConfig{
			Backend:     strings.ToLower(envOrDefault("CLIPS_BACKEND", "memory")),
			Capacity:    envOrDefaultInt("CLIPS_CAPACITY", 1024),
			S3Bucket:    envOrDefault("CLIPS_S3_BUCKET", ""),
			S3Prefix:    envOrDefault("CLIPS_S3_PREFIX", "prompts/"),
			S3Region:    envOrDefault("CLIPS_S3_REGION", ""),
			S3Endpoint:  envOrDefault("CLIPS_S3_ENDPOINT", ""),
			S3PathStyle: envOrDefaultBool("CLIPS_S3_PATH_STYLE", false),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(envOrDefault("STORE_BACKEND", "memory")),
			DatabaseURL:    envOrDefault("DATABASE_URL", ""),
			MigrateOnStart: envOrDefaultBool("STORE_MIGRATE_ON_START", true),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
			TopicTurns:   envOrDefault("KAFKA_TOPIC_TURNS", "voice.intake.turn"),
			TopicRecords: envOrDefault("KAFKA_TOPIC_RECORDS", "voice.intake.record"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Intake: IntakeConfig{
			PersistPolicy: envOrDefault("INTAKE_PERSIST_POLICY", "strict"),
		},
		Auth: AuthConfig{
			JWTSecret: envOrDefault("RECORDS_JWT_SECRET", ""),
			Issuer:    envOrDefault("RECORDS_JWT_ISSUER", "voice-intake-service"),
		},
		Observability: ObservabilityConfig{
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", logFormat),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
