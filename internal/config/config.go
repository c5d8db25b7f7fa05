package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/Ahmadraza4026/image-search-backend/pkg/config"
	"github.com/Ahmadraza4026/image-search-backend/pkg/database"
	"github.com/Ahmadraza4026/image-search-backend/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Mail providers.
const (
	MailProviderLog      = "log"
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
	MailProviderMailgun  = "mailgun"
)

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"0.1.0"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"5000"`

	// PostgreSQL
	PostgresHost    string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort    int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser    string `env:"POSTGRES_USER" envDefault:"imagesearch"`
	PostgresPass    string `env:"POSTGRES_PASSWORD" envDefault:"imagesearch_secret"`
	PostgresDB      string `env:"AUTH_DB_NAME" envDefault:"imagesearch_auth"`
	PostgresSSL     string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns      int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns      int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	SlowQueryMillis int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`

	// Tokens
	JWTSecret               string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	AccessTokenExpiry       time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry      time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	VerificationTokenExpiry time.Duration `env:"VERIFICATION_TOKEN_EXPIRY" envDefault:"24h"`
	ResetTokenExpiry        time.Duration `env:"RESET_TOKEN_EXPIRY" envDefault:"1h"`
	RefreshTokenRotation    bool          `env:"REFRESH_TOKEN_ROTATION" envDefault:"false"`
	ResetRevealsUnknown     bool          `env:"RESET_REVEALS_UNKNOWN_EMAIL" envDefault:"true"`

	// Passwords
	BcryptCost       int `env:"BCRYPT_COST" envDefault:"12"`
	MinPasswordScore int `env:"MIN_PASSWORD_SCORE" envDefault:"3"`

	// Links in outgoing mail point here.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`

	// Mail
	MailProvider   string `env:"MAIL_PROVIDER" envDefault:"log"`
	MailFrom       string `env:"MAIL_FROM" envDefault:"no-reply@imagesearch.local"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	MailgunDomain  string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey  string `env:"MAILGUN_API_KEY"`

	// Rate limiting of register, login, forgot-password and resend-verification.
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitMax     int           `env:"AUTH_RATE_LIMIT_MAX" envDefault:"10"`
	RateLimitWindow  time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"15m"`

	// Forwarding headers are honoured only from these proxies.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// pprof is only mounted when at least one CIDR is listed.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// Outside development an explicitly set, strong secret is required.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	for name, d := range map[string]time.Duration{
		"JWT_ACCESS_TOKEN_EXPIRY":   c.AccessTokenExpiry,
		"JWT_REFRESH_TOKEN_EXPIRY":  c.RefreshTokenExpiry,
		"VERIFICATION_TOKEN_EXPIRY": c.VerificationTokenExpiry,
		"RESET_TOKEN_EXPIRY":        c.ResetTokenExpiry,
		"AUTH_RATE_LIMIT_WINDOW":    c.RateLimitWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.MinPasswordScore < 0 || c.MinPasswordScore > 4 {
		return fmt.Errorf("MIN_PASSWORD_SCORE must be between 0 and 4, got %d", c.MinPasswordScore)
	}
	if c.RateLimitMax < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_MAX must be at least 1, got %d", c.RateLimitMax)
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL)
	}

	switch c.MailProvider {
	case MailProviderLog:
	case MailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_PROVIDER=smtp")
		}
	case MailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when MAIL_PROVIDER=sendgrid")
		}
	case MailProviderMailgun:
		if c.MailgunDomain == "" || c.MailgunAPIKey == "" {
			return fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY are required when MAIL_PROVIDER=mailgun")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.MailProvider)
	}

	switch c.RateLimitBackend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	for _, cidr := range c.TrustedProxyCIDRs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXY_CIDRS entry %q: %w", cidr, err)
		}
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}

	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}

// Redis returns the client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Tracing returns the tracer configuration.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.ServiceVersion = c.Version
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// SlowQueryThreshold returns the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMillis) * time.Millisecond
}

// CORSOrigins returns the public base URL plus any extra configured origins.
func (c *Config) CORSOrigins() []string {
	origins := []string{c.PublicBaseURL}
	for _, o := range c.CORSAllowedOrigins {
		if o != "" && o != c.PublicBaseURL {
			origins = append(origins, o)
		}
	}
	return origins
}
