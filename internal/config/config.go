package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	providers, err := loadProvidersConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Providers: providers,
		RateLimit: rateLimit,
		Telemetry: TelemetryConfig{DBPath: strings.TrimSpace(os.Getenv("TELEMETRY_DB_PATH"))},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ProviderConfig holds credentials and tuning for one generation endpoint.
type ProviderConfig struct {
	Name        string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c ProviderConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the model instance backing this provider.
func (c ProviderConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("provider %s: missing credentials, set API key + model or AK/SK pair", c.Name)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// ProvidersConfig is the ordered failover chain plus shared generation knobs.
type ProvidersConfig struct {
	Primary        ProviderConfig
	Secondary      ProviderConfig
	TimeoutSeconds int
	StreamResponse bool
}

// Ordered returns the enabled providers in failover order. An empty slice
// means local-fallback-only mode.
func (c ProvidersConfig) Ordered() []ProviderConfig {
	out := make([]ProviderConfig, 0, 2)
	if c.Primary.Enabled() {
		out = append(out, c.Primary)
	}
	if c.Secondary.Enabled() {
		out = append(out, c.Secondary)
	}
	return out
}

func loadProvidersConfig() (ProvidersConfig, error) {
	primary, err := loadProviderConfig("primary", "ARK")
	if err != nil {
		return ProvidersConfig{}, err
	}

	secondary, err := loadProviderConfig("secondary", "FALLBACK_ARK")
	if err != nil {
		return ProvidersConfig{}, err
	}

	timeout := 30
	if override, err := parseOptionalIntEnv("PROVIDER_TIMEOUT_SECONDS"); err != nil {
		return ProvidersConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	stream, err := parseBoolEnv("SUGGESTION_STREAM", true)
	if err != nil {
		return ProvidersConfig{}, err
	}

	return ProvidersConfig{
		Primary:        primary,
		Secondary:      secondary,
		TimeoutSeconds: timeout,
		StreamResponse: stream,
	}, nil
}

func loadProviderConfig(name, prefix string) (ProviderConfig, error) {
	temperature, err := parseOptionalFloatEnv(prefix + "_TEMPERATURE")
	if err != nil {
		return ProviderConfig{}, err
	}

	topP, err := parseOptionalFloatEnv(prefix + "_TOP_P")
	if err != nil {
		return ProviderConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv(prefix + "_MAX_TOKENS")
	if err != nil {
		return ProviderConfig{}, err
	}

	return ProviderConfig{
		Name:        name,
		APIKey:      strings.TrimSpace(os.Getenv(prefix + "_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv(prefix + "_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv(prefix + "_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv(prefix + "_MODEL")),
		BaseURL:     getEnvOrDefault(prefix+"_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault(prefix+"_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// RateLimitConfig bounds generation calls per user.
type RateLimitConfig struct {
	Max           int
	WindowMinutes int
	Bypass        bool
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	max := 20
	if override, err := parseOptionalIntEnv("RATE_LIMIT_MAX"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil && *override > 0 {
		max = *override
	}

	window := 60
	if override, err := parseOptionalIntEnv("RATE_LIMIT_WINDOW_MINUTES"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil && *override > 0 {
		window = *override
	}

	bypass, err := parseBoolEnv("RATE_LIMIT_BYPASS", false)
	if err != nil {
		return RateLimitConfig{}, err
	}

	return RateLimitConfig{Max: max, WindowMinutes: window, Bypass: bypass}, nil
}

// TelemetryConfig selects the telemetry backend. An empty path keeps records
// in memory.
type TelemetryConfig struct {
	DBPath string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
