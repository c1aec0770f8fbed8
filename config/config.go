// config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is built once at startup and handed to every component.
// Nothing reads the environment after Load returns.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mpesa     MpesaConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	SMS       SMSConfig
	Receipts  ReceiptConfig
	Callback  CallbackConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means forwarded headers are ignored.
	TrustedProxies []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" || d.DBName == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type MpesaConfig struct {
	Environment      string
	ConsumerKey      string
	ConsumerSecret   string
	Passkey          string
	ShortCode        string
	CallbackURL      string
	TransactionType  string
	AccountReference string
	TransactionDesc  string
	Timezone         string
	Timeout          time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type SMSConfig struct {
	URL      string
	APIKey   string
	SenderID string
	UserID   string
	Password string
	Timeout  time.Duration
}

func (s SMSConfig) Enabled() bool {
	return s.URL != "" && (s.APIKey != "" || (s.UserID != "" && s.Password != ""))
}

type ReceiptConfig struct {
	Dir           string
	PublicBaseURL string
	OrgName       string
	Timeout       time.Duration
}

type CallbackConfig struct {
	Secret     string
	AllowedIPs []string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads an optional .env file and the process environment.
// Every missing required key is reported in a single error.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, relying on process environment")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "5000"),
			Env:            getEnv("ENVIRONMENT", "production"),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Mpesa: MpesaConfig{
			Environment:      getEnv("MPESA_ENVIRONMENT", "production"),
			ConsumerKey:      getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:   getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:          getEnv("MPESA_PASSKEY", ""),
			ShortCode:        getEnv("MPESA_SHORT_CODE", ""),
			CallbackURL:      getEnv("MPESA_CALLBACK_URL", ""),
			TransactionType:  getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			AccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "Donation"),
			TransactionDesc:  getEnv("MPESA_TRANSACTION_DESC", "Donation"),
			Timezone:         getEnv("MPESA_TIMEZONE", "Africa/Nairobi"),
			Timeout:          getEnvDuration("MPESA_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "donations.confirmed"),
			Timeout: getEnvDuration("EVENT_TIMEOUT", 5*time.Second),
		},
		SMS: SMSConfig{
			URL:      getEnv("SMS_URL", ""),
			APIKey:   getEnv("SMS_KEY", ""),
			SenderID: getEnv("SMS_SENDER", ""),
			UserID:   getEnv("SMS_USER_ID", ""),
			Password: getEnv("SMS_PASSWORD", ""),
			Timeout:  getEnvDuration("SMS_TIMEOUT", 10*time.Second),
		},
		Receipts: ReceiptConfig{
			Dir:           getEnv("RECEIPTS_DIR", "receipts"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
			OrgName:       getEnv("ORG_NAME", "Feed a Comrade"),
			Timeout:       getEnvDuration("RECEIPT_TIMEOUT", 15*time.Second),
		},
		Callback: CallbackConfig{
			Secret:     getEnv("CALLBACK_SECRET", ""),
			AllowedIPs: getEnvList("CALLBACK_ALLOWED_IPS"),
		},
		RateLimit: RateLimitConfig{
			Max:    getEnvInt("RATE_LIMIT_MAX", 100),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		},
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Callback.Secret == "" && len(cfg.Callback.AllowedIPs) == 0 {
		logger.Warn("callback endpoint is unauthenticated: set CALLBACK_SECRET or CALLBACK_ALLOWED_IPS")
	}
	if !cfg.SMS.Enabled() {
		logger.Warn("SMS gateway not configured, donor SMS notifications are disabled")
	}

	return cfg, nil
}

// Validate checks the keys that have no sensible default.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key, value string
	}{
		{"MPESA_CONSUMER_KEY", c.Mpesa.ConsumerKey},
		{"MPESA_CONSUMER_SECRET", c.Mpesa.ConsumerSecret},
		{"MPESA_SHORT_CODE", c.Mpesa.ShortCode},
		{"MPESA_PASSKEY", c.Mpesa.Passkey},
		{"MPESA_CALLBACK_URL", c.Mpesa.CallbackURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if c.Database.DSN() == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := url.ParseRequestURI(c.Mpesa.CallbackURL); err != nil {
		return fmt.Errorf("invalid MPESA_CALLBACK_URL: %w", err)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
