package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	Environment       string        `mapstructure:"environment"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	// JWTSecrets holds the comma-separated signing secrets; the first entry
	// signs new tokens, later entries only verify (zero-downtime rotation).
	JWTSecrets     string `mapstructure:"jwt_secrets"`
	JWTTTLSeconds  int    `mapstructure:"jwt_ttl_seconds"`
	JWTAudience    string `mapstructure:"jwt_audience"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

type UpstreamConfig struct {
	// BackendURL is the explicit commerce backend base; PublicURL is the
	// browser-facing fallback. Either may already end in /admin, /admin/lite
	// or /store; the proxy normalizes that.
	BackendURL string        `mapstructure:"backend_url"`
	PublicURL  string        `mapstructure:"public_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	// Limit of 0 or a non-positive window disables limiting entirely.
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	Cleanup time.Duration `mapstructure:"cleanup"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// Environment resolves the running environment. APP_ENV wins, NODE_ENV is
// honored for parity with the storefront deployment that sets it.
func Environment() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("NODE_ENV"); env != "" {
		return env
	}
	return "development"
}

func IsProduction() bool {
	return Environment() == "production"
}

// LoadConfigFromEnv builds a Config entirely from environment variables, the
// path used in container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("ADMIN_LITE_BASE_URL", ""),
			Environment:       Environment(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       90 * time.Second,
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecrets:     getEnv("ADMIN_LITE_JWT_SECRET", os.Getenv("JWT_SECRET")),
			JWTTTLSeconds:  getEnvAsInt("ADMIN_LITE_JWT_TTL_SECONDS", 0),
			JWTAudience:    getEnv("ADMIN_LITE_JWT_AUDIENCE", ""),
			JWTIssuer:      getEnv("ADMIN_LITE_JWT_ISSUER", ""),
			AllowedOrigins: getEnv("ADMIN_LITE_ALLOWED_ORIGINS", ""),
		},
		Upstream: UpstreamConfig{
			BackendURL: getEnv("MEDUSA_BACKEND_URL", ""),
			PublicURL:  getEnv("NEXT_PUBLIC_MEDUSA_URL", ""),
			Timeout:    time.Duration(getEnvAsInt("ADMIN_LITE_UPSTREAM_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Limit:   getEnvAsInt("ADMIN_LITE_RATE_LIMIT", 120),
			Window:  time.Duration(getEnvAsInt("ADMIN_LITE_RATE_WINDOW_MS", 60000)) * time.Millisecond,
			Cleanup: time.Duration(getEnvAsInt("ADMIN_LITE_RATE_CLEANUP_MS", 300000)) * time.Millisecond,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// SecretCandidates splits the configured secrets in declaration order.
// The first entry is the active signing secret.
func (c *SecurityConfig) SecretCandidates() []string {
	var out []string
	for _, s := range strings.Split(c.JWTSecrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SessionTTLSeconds returns the configured token TTL, defaulting to 24 hours
// when the override is absent or non-positive.
func (c *SecurityConfig) SessionTTLSeconds() int {
	if v := os.Getenv("ADMIN_LITE_JWT_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		return 86400
	}
	if c.JWTTTLSeconds > 0 {
		return c.JWTTTLSeconds
	}
	return 86400
}

// OriginAllowlist returns the configured origin patterns. The env value is
// re-read on every call so tests can swap the allowlist without a restart.
func (c *SecurityConfig) OriginAllowlist() []string {
	raw := os.Getenv("ADMIN_LITE_ALLOWED_ORIGINS")
	if raw == "" {
		raw = c.AllowedOrigins
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Upstream.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("upstream config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.SecretCandidates()) == 0 {
		return errors.New("jwt secret is required (ADMIN_LITE_JWT_SECRET or JWT_SECRET)")
	}
	for _, origin := range c.OriginAllowlist() {
		if strings.Contains(origin, "*") {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
		}
	}
	return nil
}

func (c *UpstreamConfig) Validate() error {
	for _, raw := range []string{c.BackendURL, c.PublicURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid upstream url %q", raw)
		}
	}
	return nil
}
