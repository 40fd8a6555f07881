// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.wearcast/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, embedder selection
//   - Agent: planning-loop bounds and request deadline
//   - Weather: OpenWeatherMap API access
//   - Search: DuckDuckGo instant-answer concurrency and retries
//   - Storage: PostgreSQL + pgvector connection for the knowledge store
//   - Observability: OTLP trace export and tracing log destination
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMaxTurns indicates the planning-cycle bound is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidRequestTimeout indicates the per-request deadline is out of range.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout")

	// ErrInvalidRetrieveTopK indicates the retrieval candidate count is out of range.
	ErrInvalidRetrieveTopK = errors.New("invalid retrieve top-k")

	// ErrInvalidRerankTopN indicates the rerank result count is out of range.
	ErrInvalidRerankTopN = errors.New("invalid rerank top-n")

	// ErrInvalidSearchConcurrency indicates the search permit-pool size is out of range.
	ErrInvalidSearchConcurrency = errors.New("invalid search concurrency")

	// ErrInvalidMaxRelated indicates the related-links limit is out of range.
	ErrInvalidMaxRelated = errors.New("invalid max related links")

	// ErrInvalidSourceCap indicates a source cap is out of range.
	ErrInvalidSourceCap = errors.New("invalid source cap")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidDatabaseURL indicates DATABASE_URL could not be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid DATABASE_URL")

	// ErrInvalidServerAddr indicates the HTTP listen address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`       // "googleai" (default), "openai", "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"`   // e.g. "gemini-2.5-flash", "gpt-4o", "llama3.3"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Planning loop
	MaxTurns          int `mapstructure:"max_turns" json:"max_turns"`                     // planning↔dispatch cycles per request
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" json:"request_timeout_sec"` // overall per-request deadline

	// Weather provider (OpenWeatherMap)
	OpenWeatherMapAPIKey string `mapstructure:"openweathermap_api_key" json:"openweathermap_api_key"`
	WeatherUnits         string `mapstructure:"weather_units" json:"weather_units"` // "metric" or "imperial"

	// Knowledge retrieval
	RetrieveTopK int `mapstructure:"retrieve_top_k" json:"retrieve_top_k"` // vector candidates
	RerankTopN   int `mapstructure:"rerank_top_n" json:"rerank_top_n"`     // passages kept after rerank

	// Web search (DuckDuckGo instant answers)
	SearchConcurrency int `mapstructure:"search_concurrency" json:"search_concurrency"` // process-wide permit pool
	SearchTimeoutSec  int `mapstructure:"search_timeout_sec" json:"search_timeout_sec"` // per-attempt deadline
	SearchMaxRelated  int `mapstructure:"search_max_related" json:"search_max_related"` // default related-links limit

	// Source extraction caps
	MaxRetrievalSources int `mapstructure:"max_retrieval_sources" json:"max_retrieval_sources"`
	MaxTotalSources     int `mapstructure:"max_total_sources" json:"max_total_sources"`

	// PostgreSQL connection (knowledge store)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// HTTP server
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Observability
	OtelEnabled     bool   `mapstructure:"otel_enabled" json:"otel_enabled"`
	OtelAgentHost   string `mapstructure:"otel_agent_host" json:"otel_agent_host"`
	OtelServiceName string `mapstructure:"otel_service_name" json:"otel_service_name"`
	OtelEnvironment string `mapstructure:"otel_environment" json:"otel_environment"`
	TracingLogPath  string `mapstructure:"tracing_log_path" json:"tracing_log_path"`
}

// Load reads configuration from file, environment, and defaults.
// It fails fast: a config that does not validate is never returned.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".wearcast")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults + env carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.applyDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("max_turns", 6)
	viper.SetDefault("request_timeout_sec", 120)

	viper.SetDefault("weather_units", "metric")

	viper.SetDefault("retrieve_top_k", 8)
	viper.SetDefault("rerank_top_n", 4)

	viper.SetDefault("search_concurrency", 3)
	viper.SetDefault("search_timeout_sec", 10)
	viper.SetDefault("search_max_related", 6)

	viper.SetDefault("max_retrieval_sources", 2)
	viper.SetDefault("max_total_sources", 8)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "wearcast")
	viper.SetDefault("postgres_password", "")
	viper.SetDefault("postgres_dbname", "wearcast")
	viper.SetDefault("postgres_sslmode", "prefer")

	viper.SetDefault("server_addr", "127.0.0.1:8000")

	viper.SetDefault("otel_enabled", false)
	viper.SetDefault("otel_agent_host", "localhost")
	viper.SetDefault("otel_service_name", "wearcast")
	viper.SetDefault("otel_environment", "development")
	viper.SetDefault("tracing_log_path", "tracing.log")
}

// bindEnvVariables binds the environment variables that override file values.
//
// Secrets stay in the environment:
//   - GEMINI_API_KEY / OPENAI_API_KEY: read directly by the Genkit plugins,
//     presence is checked in cfg.Validate()
//   - OPENWEATHERMAP_API_KEY: weather provider credential, required
//   - DATABASE_URL: full PostgreSQL URL, overrides the postgres_* fields
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openweathermap_api_key", "OPENWEATHERMAP_API_KEY")

	mustBind("provider", "WEARCAST_PROVIDER")
	mustBind("model_name", "WEARCAST_MODEL_NAME")
	mustBind("embedder_model", "WEARCAST_EMBEDDER_MODEL")
	mustBind("ollama_host", "WEARCAST_OLLAMA_HOST")

	mustBind("server_addr", "WEARCAST_SERVER_ADDR")
	mustBind("tracing_log_path", "WEARCAST_TRACING_LOG_PATH")

	mustBind("otel_enabled", "WEARCAST_OTEL_ENABLED")
	mustBind("otel_agent_host", "WEARCAST_OTEL_AGENT_HOST")
	mustBind("otel_environment", "WEARCAST_OTEL_ENVIRONMENT")
}

// applyDatabaseURL overrides the postgres_* fields from a DATABASE_URL value.
// An empty value is a no-op.
func (c *Config) applyDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDatabaseURL, u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: port %q", ErrInvalidDatabaseURL, p)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.PostgresDBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// DatabaseURL builds the pgx connection URL for the knowledge store.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	if c.PostgresUser != "" {
		if c.PostgresPassword != "" {
			u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
		} else {
			u.User = url.User(c.PostgresUser)
		}
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer ones keep the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - OpenWeatherMapAPIKey
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenWeatherMapAPIKey = maskSecret(a.OpenWeatherMapAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
