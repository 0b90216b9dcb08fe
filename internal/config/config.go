package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Governor GovernorConfig
	Resolver ResolverConfig
	Session  SessionConfig
	Ai       AIConfig
	Speech   SpeechConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	CorsAllowedOrigins string
	NatsURL            string
	NatsEnabled        bool
	RedisURL           string
	JwtSecret          string
	InstanceID         string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	// Empty Connection runs on the in-memory knowledge store.
	Connection string
}

type GovernorConfig struct {
	RequestCapacity   int
	OperationCapacity int
	MaxQueue          int
	RequestTimeout    time.Duration
	LookupTimeout     time.Duration
	LLMTimeout        time.Duration
	TranscribeTimeout time.Duration
	SynthesizeTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type ResolverConfig struct {
	TablesPath   string
	RecentLimit  int
	Threshold    float64
	SnippetLimit int
}

type SessionConfig struct {
	DedupCapacity     int
	DedupBackend      string // "memory" or "redis"
	DedupTTL          time.Duration
	PendingContextTTL time.Duration
	MaxContextChars   int
	ContextChunkSize  int
	MaxDocumentBytes  int
}

type AIConfig struct {
	LLMProvider   string // "ollama", "openai" or "none"
	LLMModel      string
	OllamaBaseURL string
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

type SpeechConfig struct {
	Enabled         bool
	BaseURL         string
	APIKey          string
	TranscribeModel string
	SynthesizeModel string
	Voice           string
	MaxChars        int
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	hostname, _ := os.Hostname()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			NatsEnabled:        getEnvAsBool("NATS_ENABLED", false),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			InstanceID:         getEnv("INSTANCE_ID", hostname),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Governor: GovernorConfig{
			RequestCapacity:   getEnvAsInt("GOVERNOR_REQUEST_CAPACITY", 8),
			OperationCapacity: getEnvAsInt("GOVERNOR_OPERATION_CAPACITY", 4),
			MaxQueue:          getEnvAsInt("GOVERNOR_MAX_QUEUE", 128),
			RequestTimeout:    getEnvAsDuration("GOVERNOR_REQUEST_TIMEOUT", 60*time.Second),
			LookupTimeout:     getEnvAsDuration("GOVERNOR_LOOKUP_TIMEOUT", 3*time.Second),
			LLMTimeout:        getEnvAsDuration("GOVERNOR_LLM_TIMEOUT", 30*time.Second),
			TranscribeTimeout: getEnvAsDuration("GOVERNOR_TRANSCRIBE_TIMEOUT", 20*time.Second),
			SynthesizeTimeout: getEnvAsDuration("GOVERNOR_SYNTHESIZE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:   getEnvAsDuration("GOVERNOR_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Resolver: ResolverConfig{
			TablesPath:   getEnv("RESOLVER_TABLES_PATH", ""),
			RecentLimit:  getEnvAsInt("RESOLVER_RECENT_LIMIT", 100),
			Threshold:    getEnvAsFloat("RESOLVER_FUZZY_THRESHOLD", 0.3),
			SnippetLimit: getEnvAsInt("RESOLVER_SNIPPET_LIMIT", 2),
		},
		Session: SessionConfig{
			DedupCapacity:     getEnvAsInt("DEDUP_CAPACITY", 1000),
			DedupBackend:      getEnv("DEDUP_BACKEND", "memory"),
			DedupTTL:          getEnvAsDuration("DEDUP_TTL", 24*time.Hour),
			PendingContextTTL: getEnvAsDuration("PENDING_CONTEXT_TTL", 30*time.Minute),
			MaxContextChars:   getEnvAsInt("PENDING_CONTEXT_MAX_CHARS", 20000),
			ContextChunkSize:  getEnvAsInt("PENDING_CONTEXT_CHUNK_SIZE", 1500),
			MaxDocumentBytes:  getEnvAsInt("MAX_DOCUMENT_BYTES", 5*1024*1024),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		},
		Speech: SpeechConfig{
			Enabled:         getEnvAsBool("SPEECH_ENABLED", false),
			BaseURL:         getEnv("SPEECH_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          getEnv("SPEECH_API_KEY", getEnv("OPENAI_API_KEY", "")),
			TranscribeModel: getEnv("SPEECH_TRANSCRIBE_MODEL", "whisper-1"),
			SynthesizeModel: getEnv("SPEECH_SYNTHESIZE_MODEL", "tts-1"),
			Voice:           getEnv("SPEECH_VOICE", "alloy"),
			MaxChars:        getEnvAsInt("SPEECH_MAX_CHARS", 1000),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("1500ms", "2m"). Bare integers are read as seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
