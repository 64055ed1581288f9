package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 16
)

// Config holds every setting the service reads from the environment.
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Order    OrderConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env            string
	Port           string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return a.Env == EnvProduction
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type JWTConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
}

type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite string
}

type RedisConfig struct {
	URL string
}

type RabbitMQConfig struct {
	URL string
}

type OrderConfig struct {
	TaxRate decimal.Decimal
}

type AuthConfig struct {
	AdminSetupCode  string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads configuration from the environment using v. A nil v uses the global viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	setDefaults(v)
	v.AutomaticEnv()

	env := strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))
	if env != EnvProduction {
		env = EnvDevelopment
	}

	cookieSecure := env == EnvProduction
	if v.IsSet("COOKIE_SECURE") {
		cookieSecure = v.GetBool("COOKIE_SECURE")
	}

	taxRate, err := decimal.NewFromString(v.GetString("ORDER_TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER_TAX_RATE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:            env,
			Port:           v.GetString("APP_PORT"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			LogFormat:      v.GetString("LOG_FORMAT"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
			ExpiresIn: v.GetDuration("JWT_EXPIRES_IN"),
		},
		Cookie: CookieConfig{
			Name:     v.GetString("COOKIE_NAME"),
			Secure:   cookieSecure,
			SameSite: v.GetString("COOKIE_SAMESITE"),
		},
		Redis:    RedisConfig{URL: v.GetString("REDIS_URL")},
		RabbitMQ: RabbitMQConfig{URL: v.GetString("RABBITMQ_URL")},
		Order:    OrderConfig{TaxRate: taxRate},
		Auth: AuthConfig{
			AdminSetupCode:  v.GetString("ADMIN_SETUP_CODE"),
			RateLimitMax:    v.GetInt("AUTH_RATE_LIMIT_MAX"),
			RateLimitWindow: v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REQUEST_TIMEOUT", "10s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "warung")
	v.SetDefault("JWT_EXPIRES_IN", "24h")

	v.SetDefault("COOKIE_NAME", "token")
	v.SetDefault("COOKIE_SAMESITE", "Lax")

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ORDER_TAX_RATE", "0")
	v.SetDefault("ADMIN_SETUP_CODE", "")
	v.SetDefault("AUTH_RATE_LIMIT_MAX", 20)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW", "1m")
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be Lax or Strict")
	}
	if c.Order.TaxRate.IsNegative() {
		return fmt.Errorf("ORDER_TAX_RATE must not be negative")
	}
	if c.App.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
