package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	Pricing      PricingConfig
	AutoConfirm  AutoConfirmConfig
	Notify       NotifyConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Pricing.Rates(); err != nil {
		return nil, err
	}
	if err := cfg.AutoConfirm.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEALBOX_APP_ENV" required:"true"`
	Port         string `envconfig:"MEALBOX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEALBOX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEALBOX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEALBOX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEALBOX_DB_DSN"`
	Driver string `envconfig:"MEALBOX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEALBOX_DB_HOST"`
	LegacyPort     int    `envconfig:"MEALBOX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEALBOX_DB_USER"`
	LegacyPassword string `envconfig:"MEALBOX_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEALBOX_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEALBOX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEALBOX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEALBOX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEALBOX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEALBOX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"MEALBOX_DB_QUERY_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEALBOX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEALBOX_REDIS_ADDR"`
	Password     string        `envconfig:"MEALBOX_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEALBOX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEALBOX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEALBOX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEALBOX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEALBOX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEALBOX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MEALBOX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MEALBOX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MEALBOX_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEALBOX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEALBOX_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MEALBOX_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReportsTopic string `envconfig:"MEALBOX_PUBSUB_REPORTS_TOPIC"`
}

type StripeConfig struct {
	APIKey    string `envconfig:"MEALBOX_STRIPE_API_KEY"`
	Secret    string `envconfig:"MEALBOX_STRIPE_SECRET"`
	Env       string `envconfig:"MEALBOX_STRIPE_ENV" default:"test"`
	ProductID string `envconfig:"MEALBOX_STRIPE_PRODUCT_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"MEALBOX_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"MEALBOX_SENDGRID_FROM_EMAIL" default:"no-reply@mealbox.local"`
}

// PricingConfig keeps money values as strings so they can be parsed
// exactly into decimals.
type PricingConfig struct {
	CaloriePrice          string `envconfig:"MEALBOX_CALORIE_PRICE" default:"0.004"`
	ShippingCharge        string `envconfig:"MEALBOX_SHIPPING_CHARGE" default:"5"`
	Currency              string `envconfig:"MEALBOX_CURRENCY_TYPE" default:"eur"`
	FreeShippingThreshold string `envconfig:"MEALBOX_MINIMUM_ORDER_VALUE_FOR_FREE_SHIPPING" default:"50"`
}

// PricingRates is the parsed form of PricingConfig.
type PricingRates struct {
	CaloriePrice          decimal.Decimal
	ShippingCharge        decimal.Decimal
	Currency              string
	FreeShippingThreshold decimal.Decimal
}

func (p PricingConfig) Rates() (PricingRates, error) {
	var out PricingRates
	var err error
	if out.CaloriePrice, err = decimal.NewFromString(strings.TrimSpace(p.CaloriePrice)); err != nil {
		return out, fmt.Errorf("invalid %s: %w", EnvCaloriePrice, err)
	}
	if out.ShippingCharge, err = decimal.NewFromString(strings.TrimSpace(p.ShippingCharge)); err != nil {
		return out, fmt.Errorf("invalid %s: %w", EnvShippingCharge, err)
	}
	if out.FreeShippingThreshold, err = decimal.NewFromString(strings.TrimSpace(p.FreeShippingThreshold)); err != nil {
		return out, fmt.Errorf("invalid %s: %w", EnvFreeShippingThreshold, err)
	}
	out.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	switch out.Currency {
	case "eur", "usd":
	default:
		return out, fmt.Errorf("invalid %s: %q", EnvCurrency, p.Currency)
	}
	return out, nil
}

type AutoConfirmConfig struct {
	Hour           int           `envconfig:"MEALBOX_AUTO_CONFIRM_HOUR" default:"0"`
	Minute         int           `envconfig:"MEALBOX_AUTO_CONFIRM_MINUTE" default:"15"`
	Timezone       string        `envconfig:"MEALBOX_AUTO_CONFIRM_TIMEZONE" default:"Europe/Amsterdam"`
	Throttle       time.Duration `envconfig:"MEALBOX_AUTO_CONFIRM_THROTTLE" default:"200ms"`
	BillingTimeout time.Duration `envconfig:"MEALBOX_BILLING_TIMEOUT" default:"15s"`
	NotifyTimeout  time.Duration `envconfig:"MEALBOX_NOTIFY_TIMEOUT" default:"10s"`
}

// BusinessTimezone is the zone every week number and lockdown day is
// evaluated in, wherever the process runs.
const BusinessTimezone = "Europe/Amsterdam"

func (a AutoConfirmConfig) validate() error {
	if a.Timezone != BusinessTimezone {
		return fmt.Errorf("invalid %s: %q (weeks are only evaluated in %s)", EnvAutoConfirmTimezone, a.Timezone, BusinessTimezone)
	}
	if a.Hour < 0 || a.Hour > 23 {
		return fmt.Errorf("invalid %s: %d", EnvAutoConfirmHour, a.Hour)
	}
	if a.Minute < 0 || a.Minute > 59 {
		return fmt.Errorf("invalid %s: %d", EnvAutoConfirmMinute, a.Minute)
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins string `envconfig:"MEALBOX_CORS_ALLOWED_ORIGINS" default:"*"`
}

// Origins splits the comma separated origin list. An empty list allows every
// origin.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type NotifyConfig struct {
	SupportEmails string `envconfig:"MEALBOX_SUPPORT_USER_EMAIL"`
}

// Recipients splits the comma separated support list.
func (n NotifyConfig) Recipients() []string {
	var out []string
	for _, part := range strings.Split(n.SupportEmails, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
