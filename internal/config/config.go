package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Token store backends.
const (
	TokenStoreMemory   = "memory"
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"
)

type Config struct {
	Port            string        `yaml:"port"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogDevelopment  bool          `yaml:"log_development"`

	// Upstream gateways
	IdentityGatewayURL string `yaml:"identity_gateway_url"`
	MasokoURL          string `yaml:"masoko_url"`
	BNPLGatewayURL     string `yaml:"bnpl_gateway_url"`
	AuthURL            string `yaml:"auth_url"`

	// Credentials
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	BNPLAPIKey    string `yaml:"bnpl_api_key"`
	BNPLAPISecret string `yaml:"bnpl_api_secret"`
	SourceSystem  string `yaml:"source_system"`

	// Token requests can be routed through a CORS proxy, e.g.
	// "https://proxy.example/?url={target}".
	TokenProxyURL string `yaml:"token_proxy_url"`

	// Token persistence
	TokenStore         string        `yaml:"token_store"`
	TokenFile          string        `yaml:"token_file"`
	TokenEncryptionKey string        `yaml:"token_encryption_key"`
	TokenSafetyBuffer  time.Duration `yaml:"token_safety_buffer"`
	CoalesceRefresh    bool          `yaml:"coalesce_refresh"`
	DatabaseURL        string        `yaml:"database_url"`

	// Events
	AMQPURL string `yaml:"amqp_url"`

	// Sessions
	SessionTTL time.Duration `yaml:"session_ttl"`

	// Sign-in
	OTPLength         int           `yaml:"otp_length"`
	OTPResendCooldown time.Duration `yaml:"otp_resend_cooldown"`

	// CORS
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`

	ExposeStackTraces bool `yaml:"expose_stack_traces"`
}

// Default returns the configuration used when neither a file nor the
// environment overrides a value.
func Default() Config {
	return Config{
		Port:            "8080",
		UpstreamTimeout: 10 * time.Second,
		LogLevel:        "info",

		IdentityGatewayURL: "http://identity-gateway:8080",
		MasokoURL:          "http://masoko-api:8080",
		BNPLGatewayURL:     "http://bnpl-gateway:8080",
		AuthURL:            "http://auth-api:8080",

		SourceSystem: "bnpl-storefront",

		TokenStore:        TokenStoreMemory,
		TokenFile:         "storefront_tokens.json",
		TokenSafetyBuffer: 30 * time.Second,
		CoalesceRefresh:   true,

		SessionTTL: 30 * time.Minute,

		OTPLength:         6,
		OTPResendCooldown: 60 * time.Second,

		CORSAllowOrigins: []string{"*"},
	}
}

// Load reads an optional .env file, an optional YAML file named by
// STOREFRONT_CONFIG, then applies environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("STOREFRONT_CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Port = getenv("PORT", c.Port)
	c.UpstreamTimeout = parseDuration(getenv("UPSTREAM_TIMEOUT", ""), c.UpstreamTimeout)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogDevelopment = parseBool(getenv("LOG_DEVELOPMENT", ""), c.LogDevelopment)

	c.IdentityGatewayURL = getenv("IDENTITY_GATEWAY_URL", c.IdentityGatewayURL)
	c.MasokoURL = getenv("MASOKO_API_URL", c.MasokoURL)
	c.BNPLGatewayURL = getenv("BNPL_GATEWAY_URL", c.BNPLGatewayURL)
	c.AuthURL = getenv("AUTH_API_URL", c.AuthURL)

	c.ClientID = getenv("CLIENT_ID", c.ClientID)
	c.ClientSecret = getenv("CLIENT_SECRET", c.ClientSecret)
	c.BNPLAPIKey = getenv("BNPL_API_KEY", c.BNPLAPIKey)
	c.BNPLAPISecret = getenv("BNPL_API_SECRET", c.BNPLAPISecret)
	c.SourceSystem = getenv("SOURCE_SYSTEM", c.SourceSystem)
	c.TokenProxyURL = getenv("TOKEN_PROXY_URL", c.TokenProxyURL)

	c.TokenStore = strings.ToLower(getenv("TOKEN_STORE", c.TokenStore))
	c.TokenFile = getenv("TOKEN_FILE", c.TokenFile)
	c.TokenEncryptionKey = getenv("TOKEN_ENCRYPTION_KEY", c.TokenEncryptionKey)
	c.TokenSafetyBuffer = parseDuration(getenv("TOKEN_SAFETY_BUFFER", ""), c.TokenSafetyBuffer)
	c.CoalesceRefresh = parseBool(getenv("COALESCE_REFRESH", ""), c.CoalesceRefresh)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)

	c.AMQPURL = getenv("AMQP_URL", c.AMQPURL)

	c.SessionTTL = parseDuration(getenv("SESSION_TTL", ""), c.SessionTTL)

	c.OTPLength = parseInt(getenv("OTP_LENGTH", ""), c.OTPLength)
	c.OTPResendCooldown = parseDuration(getenv("OTP_RESEND_COOLDOWN", ""), c.OTPResendCooldown)

	if v := getenv("CORS_ALLOW_ORIGINS", ""); v != "" {
		c.CORSAllowOrigins = splitCSV(v)
	}
	if len(c.CORSAllowOrigins) == 0 {
		c.CORSAllowOrigins = []string{"*"}
	}

	c.ExposeStackTraces = parseBool(getenv("EXPOSE_STACK_TRACES", ""), c.ExposeStackTraces)
}

// Validate reports configuration that cannot work at all.
func (c Config) Validate() error {
	switch c.TokenStore {
	case TokenStoreMemory:
	case TokenStoreFile, TokenStorePostgres:
		if c.TokenEncryptionKey == "" {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required for token store %q", c.TokenStore)
		}
		if c.TokenStore == TokenStorePostgres && c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for token store %q", c.TokenStore)
		}
	default:
		return fmt.Errorf("unknown token store %q", c.TokenStore)
	}
	if c.OTPLength < 4 || c.OTPLength > 8 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 8, got %d", c.OTPLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.TokenSafetyBuffer < 0 {
		return fmt.Errorf("TOKEN_SAFETY_BUFFER must not be negative")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func parseInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
