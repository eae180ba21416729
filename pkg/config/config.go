package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/pkg/enums"
)

type Config struct {
	App         AppConfig
	Tax         TaxConfig
	Limits      LimitsConfig
	Sync        SyncConfig
	Queue       QueueConfig
	Persistence PersistenceConfig
	Catalog     CatalogConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Sync.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Persistence.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTENGINE_APP_ENV" default:"dev"`
	Port         string `envconfig:"CARTENGINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CARTENGINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTENGINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// TaxConfig drives the totals pipeline. Rates here are policy defaults
// configured by the storefront, not authoritative tax law.
type TaxConfig struct {
	Enabled          bool   `envconfig:"CARTENGINE_TAX_ENABLED" default:"true"`
	PricesIncludeTax bool   `envconfig:"CARTENGINE_TAX_PRICES_INCLUDE_TAX" default:"false"`
	RoundAtSubtotal  bool   `envconfig:"CARTENGINE_TAX_ROUND_AT_SUBTOTAL" default:"true"`
	Country          string `envconfig:"CARTENGINE_TAX_COUNTRY" default:"US"`
	RatePercent      string `envconfig:"CARTENGINE_TAX_RATE_PERCENT"`
}

// Rate returns the configured explicit tax rate, or nil when the
// built-in country fallback should be used.
func (t TaxConfig) Rate() (*decimal.Decimal, error) {
	raw := strings.TrimSpace(t.RatePercent)
	if raw == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing CARTENGINE_TAX_RATE_PERCENT: %w", err)
	}
	return &rate, nil
}

type LimitsConfig struct {
	MaxItems           int `envconfig:"CARTENGINE_LIMITS_MAX_ITEMS" default:"100"`
	MaxQuantityPerItem int `envconfig:"CARTENGINE_LIMITS_MAX_QTY_PER_ITEM" default:"999"`
}

// SoftQuantityCeiling derives the aggregate-quantity threshold above
// which validation warns. Half the theoretical maximum is the point at
// which a cart stops looking like a retail order.
func (l LimitsConfig) SoftQuantityCeiling() int {
	return l.MaxItems * l.MaxQuantityPerItem / 2
}

type SyncConfig struct {
	ConflictPolicy     string        `envconfig:"CARTENGINE_SYNC_CONFLICT_POLICY" default:"merge_smart"`
	BackgroundInterval time.Duration `envconfig:"CARTENGINE_SYNC_BACKGROUND_INTERVAL" default:"30s"`
}

// Policy returns the parsed conflict resolution policy.
func (s SyncConfig) Policy() enums.ConflictPolicy {
	policy, err := enums.ParseConflictPolicy(s.ConflictPolicy)
	if err != nil {
		return enums.ConflictPolicyMergeSmart
	}
	return policy
}

func (s SyncConfig) validate() error {
	if _, err := enums.ParseConflictPolicy(s.ConflictPolicy); err != nil {
		return fmt.Errorf("invalid CARTENGINE_SYNC_CONFLICT_POLICY: %w", err)
	}
	if s.BackgroundInterval <= 0 {
		return fmt.Errorf("CARTENGINE_SYNC_BACKGROUND_INTERVAL must be positive")
	}
	return nil
}

type QueueConfig struct {
	MaxSize    int `envconfig:"CARTENGINE_QUEUE_MAX_SIZE" default:"50"`
	MaxRetries int `envconfig:"CARTENGINE_QUEUE_MAX_RETRIES" default:"3"`
}

// PersistenceConfig selects the shipped cart store backend.
type PersistenceConfig struct {
	Backend string        `envconfig:"CARTENGINE_PERSISTENCE_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"CARTENGINE_PERSISTENCE_TTL" default:"168h"`
}

func (p PersistenceConfig) validate() error {
	switch p.Backend {
	case PersistenceMemory, PersistenceRedis, PersistenceDatabase:
		return nil
	}
	return fmt.Errorf("invalid CARTENGINE_PERSISTENCE_BACKEND %q", p.Backend)
}

// CatalogConfig locates the remote commerce backend serving product
// and coupon truth.
type CatalogConfig struct {
	BaseURL string        `envconfig:"CARTENGINE_CATALOG_BASE_URL"`
	Token   string        `envconfig:"CARTENGINE_CATALOG_TOKEN"`
	Timeout time.Duration `envconfig:"CARTENGINE_CATALOG_TIMEOUT" default:"10s"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARTENGINE_DB_DSN"`
	Driver string `envconfig:"CARTENGINE_DB_DRIVER" default:"sqlite"`

	MaxOpenConns    int           `envconfig:"CARTENGINE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CARTENGINE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CARTENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// UseSQLite reports whether the device-local sqlite driver is selected.
func (d DBConfig) UseSQLite() bool {
	return strings.EqualFold(d.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTENGINE_REDIS_URL"`
	Address      string        `envconfig:"CARTENGINE_REDIS_ADDR"`
	Password     string        `envconfig:"CARTENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"CARTENGINE_JWT_SECRET"`
	Issuer string `envconfig:"CARTENGINE_JWT_ISSUER" default:"cartengine"`
}
