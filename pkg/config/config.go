package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Agent        AgentConfig
	Gateway      GatewayConfig
	Catalog      CatalogConfig
	Conversation ConversationConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WACOMMERCE_APP_ENV" required:"true"`
	Port         string `envconfig:"WACOMMERCE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WACOMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WACOMMERCE_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"WACOMMERCE_TIMEZONE" default:"Africa/Abidjan"`
	// CORSOrigins lists dashboards allowed to call the merchant admin API.
	CORSOrigins []string `envconfig:"WACOMMERCE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the merchant-facing timezone used for delivery dates.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type DBConfig struct {
	DSN    string `envconfig:"WACOMMERCE_DB_DSN"`
	Driver string `envconfig:"WACOMMERCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WACOMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"WACOMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WACOMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"WACOMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WACOMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WACOMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WACOMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WACOMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WACOMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WACOMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WACOMMERCE_REDIS_URL"`
	Address      string        `envconfig:"WACOMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"WACOMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WACOMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WACOMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WACOMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WACOMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WACOMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WACOMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for merchant admin tokens.
type JWTConfig struct {
	Secret string `envconfig:"WACOMMERCE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"WACOMMERCE_JWT_ISSUER" required:"true"`
	// TTL bounds tokens minted by cmd/admin-token.
	TTL time.Duration `envconfig:"WACOMMERCE_JWT_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WACOMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WACOMMERCE_AUTO_MIGRATE" default:"false"`
}

// AgentConfig points at the external AI agent that decides conversation actions.
type AgentConfig struct {
	URL        string        `envconfig:"WACOMMERCE_AGENT_URL" required:"true"`
	APIKey     string        `envconfig:"WACOMMERCE_AGENT_API_KEY"`
	Timeout    time.Duration `envconfig:"WACOMMERCE_AGENT_TIMEOUT" default:"30s"`
	MaxRetries uint64        `envconfig:"WACOMMERCE_AGENT_MAX_RETRIES" default:"2"`
}

// GatewayConfig points at the WhatsApp gateway used for outbound messages.
type GatewayConfig struct {
	BaseURL    string        `envconfig:"WACOMMERCE_GATEWAY_URL" required:"true"`
	APIKey     string        `envconfig:"WACOMMERCE_GATEWAY_API_KEY"`
	Timeout    time.Duration `envconfig:"WACOMMERCE_GATEWAY_TIMEOUT" default:"20s"`
	MaxRetries uint64        `envconfig:"WACOMMERCE_GATEWAY_MAX_RETRIES" default:"2"`
	// VerifyToken answers the cloud webhook subscription handshake.
	VerifyToken string `envconfig:"WACOMMERCE_GATEWAY_VERIFY_TOKEN"`
	// AppSecret, when set, requires a valid X-Hub-Signature-256 on cloud webhooks.
	AppSecret string `envconfig:"WACOMMERCE_GATEWAY_APP_SECRET"`
}

type CatalogConfig struct {
	ExportURL        string        `envconfig:"WACOMMERCE_CATALOG_EXPORT_URL"`
	Timeout          time.Duration `envconfig:"WACOMMERCE_CATALOG_TIMEOUT" default:"25s"`
	CacheTTL         time.Duration `envconfig:"WACOMMERCE_CATALOG_CACHE_TTL" default:"6h"`
	MaxDocumentBytes int64         `envconfig:"WACOMMERCE_CATALOG_MAX_DOCUMENT_BYTES" default:"15728640"`
}

type ConversationConfig struct {
	LoopGuardThreshold  int           `envconfig:"WACOMMERCE_LOOP_GUARD_THRESHOLD" default:"3"`
	DefaultDeliveryHour int           `envconfig:"WACOMMERCE_DEFAULT_DELIVERY_HOUR" default:"14"`
	WorkerConcurrency   int64         `envconfig:"WACOMMERCE_WEBHOOK_CONCURRENCY" default:"32"`
	MessageTimeout      time.Duration `envconfig:"WACOMMERCE_MESSAGE_TIMEOUT" default:"90s"`
	DedupeTTL           time.Duration `envconfig:"WACOMMERCE_DEDUPE_TTL" default:"24h"`
}

type CronConfig struct {
	Interval               time.Duration `envconfig:"WACOMMERCE_CRON_INTERVAL" default:"1h"`
	StaleCartDays          int           `envconfig:"WACOMMERCE_STALE_CART_DAYS" default:"14"`
	StaleConversationHours int           `envconfig:"WACOMMERCE_STALE_CONVERSATION_HOURS" default:"48"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
