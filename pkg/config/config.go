package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/esignly/contracts-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Signing      SigningConfig
	RateLimit    RateLimitConfig
	Sweep        SweepConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Signing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONTRACTS_APP_ENV" required:"true"`
	Port         string `envconfig:"CONTRACTS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONTRACTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONTRACTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONTRACTS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONTRACTS_DB_DSN"`
	Driver string `envconfig:"CONTRACTS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CONTRACTS_DB_HOST"`
	Port     int    `envconfig:"CONTRACTS_DB_PORT" default:"5432"`
	User     string `envconfig:"CONTRACTS_DB_USER"`
	Password string `envconfig:"CONTRACTS_DB_PASSWORD"`
	Name     string `envconfig:"CONTRACTS_DB_NAME"`
	SSLMode  string `envconfig:"CONTRACTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONTRACTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONTRACTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONTRACTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONTRACTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTRACTS_REDIS_URL"`
	Address      string        `envconfig:"CONTRACTS_REDIS_ADDR"`
	Password     string        `envconfig:"CONTRACTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTRACTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTRACTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTRACTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTRACTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTRACTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTRACTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CONTRACTS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CONTRACTS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CONTRACTS_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SigningConfig governs the signature workflow policies.
type SigningConfig struct {
	// Policy selects sequential (signers sign strictly in order) or
	// parallel (any pending signer may sign).
	Policy string `envconfig:"CONTRACTS_SIGNING_POLICY" default:"sequential"`
	// ReviewShortDocChars marks documents at or below this length as
	// short enough to auto-complete the review session on start.
	ReviewShortDocChars int `envconfig:"CONTRACTS_REVIEW_SHORT_DOC_CHARS" default:"400"`
	// ReviewCompletionPercent is the scroll progress required before a
	// review session counts as complete.
	ReviewCompletionPercent int `envconfig:"CONTRACTS_REVIEW_COMPLETION_PERCENT" default:"100"`
}

func (s SigningConfig) validate() error {
	if !enums.SigningPolicy(s.Policy).IsValid() {
		return fmt.Errorf("invalid signing policy %q", s.Policy)
	}
	if s.ReviewCompletionPercent <= 0 || s.ReviewCompletionPercent > 100 {
		return fmt.Errorf("review completion percent must be in (0,100], got %d", s.ReviewCompletionPercent)
	}
	return nil
}

// SigningPolicy returns the parsed policy enum.
func (s SigningConfig) SigningPolicy() enums.SigningPolicy {
	return enums.SigningPolicy(s.Policy)
}

// RateLimitConfig throttles authenticated write traffic. The signature
// limits apply only to the signature submission route.
type RateLimitConfig struct {
	Window             time.Duration `envconfig:"CONTRACTS_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit          int           `envconfig:"CONTRACTS_RATE_LIMIT_USER" default:"120"`
	IPLimit            int           `envconfig:"CONTRACTS_RATE_LIMIT_IP" default:"300"`
	SignatureWindow    time.Duration `envconfig:"CONTRACTS_RATE_LIMIT_SIGNATURE_WINDOW" default:"1m"`
	SignatureUserLimit int           `envconfig:"CONTRACTS_RATE_LIMIT_SIGNATURE_USER" default:"10"`
	SignatureIPLimit   int           `envconfig:"CONTRACTS_RATE_LIMIT_SIGNATURE_IP" default:"30"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"CONTRACTS_SWEEP_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"CONTRACTS_SWEEP_LOCK_TTL" default:"20m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CONTRACTS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONTRACTS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CONTRACTS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONTRACTS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"CONTRACTS_PUBSUB_NOTIFICATION_TOPIC" default:"contract-notification-events"`
	NotificationSubscription string `envconfig:"CONTRACTS_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CONTRACTS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CONTRACTS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CONTRACTS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
