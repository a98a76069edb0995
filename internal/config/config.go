package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:",squash"`
	Database DatabaseConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Logging  LoggingConfig  `mapstructure:",squash"`
	Engine   EngineConfig   `mapstructure:",squash"`
	COB      COBConfig      `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Health   HealthConfig   `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	// Channel amortization transactions are published on.
	Channel string `mapstructure:"REDIS_EVENTS_CHANNEL"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// EngineConfig holds the defaults applied to loan terms that leave them unset.
type EngineConfig struct {
	DefaultCurrency       string `mapstructure:"ENGINE_DEFAULT_CURRENCY"`
	DefaultCurrencyDigits int32  `mapstructure:"ENGINE_DEFAULT_CURRENCY_DIGITS"`
	Precision             int32  `mapstructure:"ENGINE_PRECISION"`
	RoundingMode          string `mapstructure:"ENGINE_ROUNDING_MODE"`
	DayCount              string `mapstructure:"ENGINE_DAY_COUNT"`
}

type COBConfig struct {
	Workers  int    `mapstructure:"COB_WORKERS"`
	Schedule string `mapstructure:"COB_CRON"`
	Timezone string `mapstructure:"COB_TIMEZONE"`
}

type CacheConfig struct {
	ScheduleTTL time.Duration `mapstructure:"CACHE_SCHEDULE_TTL"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_EVENTS_CHANNEL", "loan.capitalized-income.amortized")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENGINE_DEFAULT_CURRENCY", "USD")
	v.SetDefault("ENGINE_DEFAULT_CURRENCY_DIGITS", 2)
	v.SetDefault("ENGINE_PRECISION", 12)
	v.SetDefault("ENGINE_ROUNDING_MODE", string(money.HalfEven))
	v.SetDefault("ENGINE_DAY_COUNT", string(domain.DayCountActual365))
	v.SetDefault("COB_WORKERS", 4)
	v.SetDefault("COB_CRON", "0 30 0 * * *")
	v.SetDefault("COB_TIMEZONE", "UTC")
	v.SetDefault("CACHE_SCHEDULE_TTL", "1h")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if _, err := money.NewCurrency(c.Engine.DefaultCurrency, c.Engine.DefaultCurrencyDigits); err != nil {
		return fmt.Errorf("ENGINE_DEFAULT_CURRENCY: %w", err)
	}

	if c.Engine.Precision < 0 {
		return fmt.Errorf("ENGINE_PRECISION must not be negative")
	}

	if _, err := money.ParseRoundingMode(c.Engine.RoundingMode); err != nil {
		return fmt.Errorf("ENGINE_ROUNDING_MODE: %w", err)
	}

	if c.COB.Workers <= 0 {
		return fmt.Errorf("COB_WORKERS must be greater than 0")
	}

	// Validate cron spec, seconds field included
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.COB.Schedule); err != nil {
		return fmt.Errorf("COB_CRON must be a valid cron expression: %w", err)
	}

	if _, err := time.LoadLocation(c.COB.Timezone); err != nil {
		return fmt.Errorf("COB_TIMEZONE must be a valid location: %w", err)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// ApplyDefaults fills the engine settings a loan's terms leave unset.
func (c *Config) ApplyDefaults(terms *domain.LoanTerms) {
	if terms.CurrencyCode == "" {
		terms.CurrencyCode = c.Engine.DefaultCurrency
		terms.CurrencyDigits = c.Engine.DefaultCurrencyDigits
	}
	if terms.Precision == 0 {
		terms.Precision = c.Engine.Precision
	}
	if terms.RoundingMode == "" {
		terms.RoundingMode = c.Engine.RoundingMode
	}
	if terms.DayCount == "" {
		terms.DayCount = domain.DayCountConvention(c.Engine.DayCount)
	}
}

// COBLocation returns the location close-of-business runs in.
func (c *Config) COBLocation() *time.Location {
	loc, err := time.LoadLocation(c.COB.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisAddr returns host:port of the redis server.
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}
