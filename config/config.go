package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/genai-gateway/services/tokens"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Channels      ChannelsConfig
	Environment   string

	// Warnings collects non-fatal problems found while loading, such as
	// malformed custom channel definitions. They are logged at startup.
	Warnings []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // per-request deadline passed to upstream calls
	BodyLimit       int64         // max request body in bytes
	CORSOrigins     []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// RateLimitConfig holds the per-client inbound limits for each route class
type RateLimitConfig struct {
	Enabled  bool
	Generate RateLimitPreset
	Optimize RateLimitPreset
	Read     RateLimitPreset
}

// RateLimitPreset is a token bucket: RPS sustained requests per second, Burst peak
type RateLimitPreset struct {
	RPS   float64
	Burst int
}

// ChannelsConfig holds upstream channel configuration
type ChannelsConfig struct {
	ModelScope   ModelScopeConfig
	Gitee        GiteeConfig
	HuggingFace  HuggingFaceConfig
	DeepSeek     UpstreamConfig
	A4F          UpstreamConfig
	Pollinations UpstreamConfig

	UpstreamTimeout time.Duration
	MaxRetries      int

	Custom []CustomChannel
}

// UpstreamConfig is the base URL and token pool of one built-in channel
type UpstreamConfig struct {
	BaseURL string
	Tokens  []string
}

// ModelScopeConfig adds async polling knobs to the upstream settings
type ModelScopeConfig struct {
	UpstreamConfig
	PollInterval    time.Duration
	MaxPollAttempts int
}

// GiteeConfig adds the video task base URL
type GiteeConfig struct {
	UpstreamConfig
	TaskBaseURL string
}

// HuggingFaceConfig adds per-model Gradio Space overrides
type HuggingFaceConfig struct {
	UpstreamConfig
	Spaces map[string]string
}

// hfSpaceModels are the image models whose Space can be overridden with
// HF_SPACE_<MODEL> (upper-cased, dashes as underscores)
var hfSpaceModels = []string{"z-image-turbo", "qwen-image-fast", "ovis-image", "flux-1-schnell"}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 120*time.Second),
			BodyLimit:       int64(getEnvAsInt("BODY_LIMIT_BYTES", 50*1024)),
			CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Generate: RateLimitPreset{
				RPS:   getEnvAsFloat("RATE_LIMIT_GENERATE_RPS", 0.5),
				Burst: getEnvAsInt("RATE_LIMIT_GENERATE_BURST", 10),
			},
			Optimize: RateLimitPreset{
				RPS:   getEnvAsFloat("RATE_LIMIT_OPTIMIZE_RPS", 1),
				Burst: getEnvAsInt("RATE_LIMIT_OPTIMIZE_BURST", 20),
			},
			Read: RateLimitPreset{
				RPS:   getEnvAsFloat("RATE_LIMIT_READ_RPS", 5),
				Burst: getEnvAsInt("RATE_LIMIT_READ_BURST", 60),
			},
		},
		Channels: ChannelsConfig{
			ModelScope: ModelScopeConfig{
				UpstreamConfig:  upstream("MODELSCOPE", ""),
				PollInterval:    getEnvAsDuration("MODELSCOPE_POLL_INTERVAL", 3*time.Second),
				MaxPollAttempts: getEnvAsInt("MODELSCOPE_MAX_POLL_ATTEMPTS", 35),
			},
			Gitee: GiteeConfig{
				UpstreamConfig: upstream("GITEE", ""),
				TaskBaseURL:    getEnv("GITEE_TASK_BASE_URL", ""),
			},
			HuggingFace: HuggingFaceConfig{
				UpstreamConfig: upstream("HUGGINGFACE", ""),
				Spaces:         loadSpaces(),
			},
			DeepSeek:        upstream("DEEPSEEK", ""),
			A4F:             upstream("A4F", ""),
			Pollinations:    UpstreamConfig{BaseURL: getEnv("POLLINATIONS_URL", "")},
			UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 120*time.Second),
			MaxRetries:      getEnvAsInt("TOKEN_MAX_RETRIES", tokens.DefaultMaxRetries),
		},
	}

	custom, warnings := LoadCustomChannels(os.Getenv)
	cfg.Channels.Custom = custom
	cfg.Warnings = append(cfg.Warnings, warnings...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("body limit must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Observability.LogLevel)
	}

	if c.RateLimit.Enabled {
		for name, p := range map[string]RateLimitPreset{
			"generate": c.RateLimit.Generate,
			"optimize": c.RateLimit.Optimize,
			"read":     c.RateLimit.Read,
		} {
			if p.RPS <= 0 || p.Burst <= 0 {
				return fmt.Errorf("rate limit preset %s must have positive rps and burst", name)
			}
		}
	}

	if c.Channels.ModelScope.PollInterval <= 0 || c.Channels.ModelScope.MaxPollAttempts <= 0 {
		return fmt.Errorf("modelscope polling must have a positive interval and attempt count")
	}
	if c.Channels.MaxRetries <= 0 {
		return fmt.Errorf("token max retries must be positive")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// upstream reads <PREFIX>_BASE_URL and <PREFIX>_TOKENS
func upstream(prefix, defaultURL string) UpstreamConfig {
	return UpstreamConfig{
		BaseURL: getEnv(prefix+"_BASE_URL", defaultURL),
		Tokens:  tokens.Parse(os.Getenv(prefix + "_TOKENS")),
	}
}

func loadSpaces() map[string]string {
	spaces := map[string]string{}
	for _, model := range hfSpaceModels {
		key := "HF_SPACE_" + strings.ToUpper(strings.ReplaceAll(model, "-", "_"))
		if v := getEnv(key, ""); v != "" {
			spaces[model] = v
		}
	}
	return spaces
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("3s") or bare milliseconds ("3000")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
