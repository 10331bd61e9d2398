package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	CORSOrigins      []string

	LogLevel  string
	LogFormat string

	AuthMode      string
	AuthJWTSecret string

	StoreDriver   string
	DatabaseURL   string
	StoreDatabase string

	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	ArkAPIKey     string
	ArkModel      string
	ArkBaseURL    string
	ArkRegion     string
	ProviderURL   string

	ReplyMaxAttempts    int
	ReplyBackoffBase    time.Duration
	ReplyBackoffMax     time.Duration
	ReplyAttemptTimeout time.Duration
	ReplyContextTurns   int
	ReplyRedactPII      bool
}

// LoadDotEnv loads variables from the given files (default .env) without
// overriding the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ""),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "repose"),
		CORSOrigins:      splitList(envOrDefault("APP_CORS_ORIGINS", "*")),
		LogLevel:         strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(envOrDefault("LOG_FORMAT", "json")),
		AuthMode:         strings.ToLower(envOrDefault("AUTH_MODE", "jwt")),
		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		StoreDriver:      strings.ToLower(envTrimmed("STORE_DRIVER")),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		StoreDatabase:    envOrDefault("STORE_DATABASE", "repose-of-mind"),
		Provider:         strings.ToLower(envOrDefault("PROVIDER", "auto")),
		GeminiAPIKey:     envTrimmed("GEMINI_API_KEY"),
		GeminiModel:      envTrimmed("GEMINI_MODEL"),
		OpenAIAPIKey:     envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:    envTrimmed("OPENAI_BASE_URL"),
		OpenAIModel:      envTrimmed("OPENAI_MODEL"),
		ArkAPIKey:        envTrimmed("ARK_API_KEY"),
		ArkModel:         envTrimmed("ARK_MODEL"),
		// Matches the Ark SDK default region endpoint.
		ArkBaseURL:  envOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:   envOrDefault("ARK_REGION", "cn-beijing"),
		ProviderURL: envTrimmed("PROVIDER_HTTP_URL"),

		ShutdownTimeout:     15 * time.Second,
		ReplyMaxAttempts:    3,
		ReplyBackoffBase:    time.Second,
		ReplyBackoffMax:     30 * time.Second,
		ReplyAttemptTimeout: 30 * time.Second,
		ReplyContextTurns:   10,
		ReplyRedactPII:      true,
	}
	if cfg.BindAddr == "" {
		// PORT is what most PaaS runtimes inject.
		if port := envTrimmed("PORT"); port != "" {
			cfg.BindAddr = ":" + strings.TrimPrefix(port, ":")
		} else {
			cfg.BindAddr = ":8080"
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyMaxAttempts, err = intFromEnv("REPLY_MAX_ATTEMPTS", cfg.ReplyMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyBackoffBase, err = durationFromEnv("REPLY_BACKOFF_BASE", cfg.ReplyBackoffBase)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyBackoffMax, err = durationFromEnv("REPLY_BACKOFF_MAX", cfg.ReplyBackoffMax)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyAttemptTimeout, err = durationFromEnv("REPLY_ATTEMPT_TIMEOUT", cfg.ReplyAttemptTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyContextTurns, err = intFromEnv("REPLY_CONTEXT_TURNS", cfg.ReplyContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyRedactPII, err = boolFromEnv("REPLY_REDACT_PII", cfg.ReplyRedactPII)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ReplyMaxAttempts < 1 {
		return fmt.Errorf("REPLY_MAX_ATTEMPTS must be at least 1")
	}
	if c.ReplyBackoffBase <= 0 {
		return fmt.Errorf("REPLY_BACKOFF_BASE must be positive")
	}
	if c.ReplyBackoffMax <= 0 {
		return fmt.Errorf("REPLY_BACKOFF_MAX must be positive")
	}
	if c.ReplyBackoffMax < c.ReplyBackoffBase {
		return fmt.Errorf("REPLY_BACKOFF_MAX must not be below REPLY_BACKOFF_BASE")
	}
	if c.ReplyAttemptTimeout < time.Second {
		return fmt.Errorf("REPLY_ATTEMPT_TIMEOUT must be at least 1s")
	}
	if c.ReplyContextTurns < 1 {
		return fmt.Errorf("REPLY_CONTEXT_TURNS must be positive")
	}
	switch c.AuthMode {
	case "jwt":
		if strings.TrimSpace(c.AuthJWTSecret) == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "header":
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or header")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := envTrimmed(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
