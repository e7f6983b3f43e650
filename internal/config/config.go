package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	SMSGatewayURL  string `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayUser string `mapstructure:"SMS_GATEWAY_USER"`
	SMSGatewayPass string `mapstructure:"SMS_GATEWAY_PASS"`
	SMSSenderID    string `mapstructure:"SMS_SENDER_ID"`

	EmailAPIURL string `mapstructure:"EMAIL_API_URL"`
	EmailAPIKey string `mapstructure:"EMAIL_API_KEY"`
	EmailFrom   string `mapstructure:"EMAIL_FROM"`

	EmergencyMaxRetries    int           `mapstructure:"EMERGENCY_MAX_RETRIES"`
	EmergencyInitialDelay  time.Duration `mapstructure:"EMERGENCY_INITIAL_DELAY"`
	EmergencyMaxDelay      time.Duration `mapstructure:"EMERGENCY_MAX_DELAY"`
	EmergencyBackoffFactor float64       `mapstructure:"EMERGENCY_BACKOFF_FACTOR"`

	LocationConsentTimeout time.Duration `mapstructure:"LOCATION_CONSENT_TIMEOUT"`

	InsightsURL     string        `mapstructure:"INSIGHTS_URL"`
	InsightsAPIKey  string        `mapstructure:"INSIGHTS_API_KEY"`
	InsightsTimeout time.Duration `mapstructure:"INSIGHTS_TIMEOUT"`

	StorageDir string `mapstructure:"STORAGE_DIR"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("SMS_SENDER_ID", "VITALINK")
	v.SetDefault("EMAIL_FROM", "alerts@vitalink.local")
	v.SetDefault("EMERGENCY_MAX_RETRIES", 3)
	v.SetDefault("EMERGENCY_INITIAL_DELAY", "2s")
	v.SetDefault("EMERGENCY_MAX_DELAY", "30s")
	v.SetDefault("EMERGENCY_BACKOFF_FACTOR", 2.0)
	v.SetDefault("LOCATION_CONSENT_TIMEOUT", "30s")
	v.SetDefault("INSIGHTS_TIMEOUT", "30s")
	v.SetDefault("STORAGE_DIR", "./storage")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("SMS_GATEWAY_URL")
	v.BindEnv("SMS_GATEWAY_USER")
	v.BindEnv("SMS_GATEWAY_PASS")
	v.BindEnv("SMS_SENDER_ID")
	v.BindEnv("EMAIL_API_URL")
	v.BindEnv("EMAIL_API_KEY")
	v.BindEnv("EMAIL_FROM")
	v.BindEnv("EMERGENCY_MAX_RETRIES")
	v.BindEnv("EMERGENCY_INITIAL_DELAY")
	v.BindEnv("EMERGENCY_MAX_DELAY")
	v.BindEnv("EMERGENCY_BACKOFF_FACTOR")
	v.BindEnv("LOCATION_CONSENT_TIMEOUT")
	v.BindEnv("INSIGHTS_URL")
	v.BindEnv("INSIGHTS_API_KEY")
	v.BindEnv("INSIGHTS_TIMEOUT")
	v.BindEnv("STORAGE_DIR")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production
// JWT_SECRET is required so that real token authentication is enforced,
// and the retry parameters must describe a usable backoff schedule.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	if c.EmergencyMaxRetries < 0 {
		return fmt.Errorf("EMERGENCY_MAX_RETRIES must be >= 0, got %d", c.EmergencyMaxRetries)
	}
	if c.EmergencyInitialDelay <= 0 {
		return fmt.Errorf("EMERGENCY_INITIAL_DELAY must be positive, got %s", c.EmergencyInitialDelay)
	}
	if c.EmergencyMaxDelay < c.EmergencyInitialDelay {
		return fmt.Errorf("EMERGENCY_MAX_DELAY (%s) must be >= EMERGENCY_INITIAL_DELAY (%s)",
			c.EmergencyMaxDelay, c.EmergencyInitialDelay)
	}
	if c.EmergencyBackoffFactor < 1 {
		return fmt.Errorf("EMERGENCY_BACKOFF_FACTOR must be >= 1, got %g", c.EmergencyBackoffFactor)
	}

	if c.LocationConsentTimeout <= 0 {
		return fmt.Errorf("LOCATION_CONSENT_TIMEOUT must be positive, got %s", c.LocationConsentTimeout)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
