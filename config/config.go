package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RedirectURI  string `json:"redirect_uri"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

// SMSConfig configures the bulk SMS provider used for both the sms and
// whatsapp channels (whatsapp falls back to SMS delivery).
type SMSConfig struct {
	ProviderDomain string        `json:"provider_domain"`
	ProviderName   string        `json:"provider_name"`
	APIKey         string        `json:"-"`
	SourceNumber   string        `json:"source_number"`
	RetryCount     int           `json:"retry_count"`
	ValidityPeriod int           `json:"validity_period"`
	Timeout        time.Duration `json:"timeout"`
	CostPerMessage float64       `json:"cost_per_message"`
	CreditsPerSend int           `json:"credits_per_send"`
}

// ReplyInboxConfig configures the IMAP mailbox polled for contact replies.
type ReplyInboxConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	Mailbox    string `json:"mailbox"`
	Encryption string `json:"encryption"` // SSL, STARTTLS or none
}

type Config struct {
	Environment string      `json:"environment"`
	ServerPort  string      `json:"server_port"`
	BaseURL     string      `json:"base_url"` // public base for tracking links
	Google      OAuthConfig `json:"google"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	JWTSecret           string `json:"-"`
	StripeSecretKey     string `json:"-"`
	StripeWebhookSecret string `json:"-"`
	SentryDSN           string `json:"-"`

	SMTP       SMTPConfig       `json:"smtp"`
	SMS        SMSConfig        `json:"sms"`
	ReplyInbox ReplyInboxConfig `json:"reply_inbox"`
	Redis      RedisConfig      `json:"redis"`

	DefaultTimezone    string        `json:"default_timezone"`
	PollInterval       time.Duration `json:"poll_interval"`
	ReplyPollInterval  time.Duration `json:"reply_poll_interval"`
	ClaimTimeout       time.Duration `json:"claim_timeout"`
	RateLimitSendBurst int           `json:"rate_limit_send_burst"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:5000"),
		Google: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "propflow"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),

		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", ""),
			FromName:  getEnv("SMTP_FROM_NAME", "PropFlow"),
		},
		SMS: SMSConfig{
			ProviderDomain: getEnv("SMS_PROVIDER_DOMAIN", ""),
			ProviderName:   getEnv("SMS_PROVIDER_NAME", "bulksms"),
			APIKey:         getEnv("SMS_API_KEY", ""),
			SourceNumber:   getEnv("SMS_SOURCE_NUMBER", ""),
			RetryCount:     getEnvAsInt("SMS_RETRY_COUNT", 2),
			ValidityPeriod: getEnvAsInt("SMS_VALIDITY_PERIOD", 86400),
			Timeout:        getEnvAsDuration("SMS_TIMEOUT", 30*time.Second),
			CostPerMessage: getEnvAsFloat("SMS_COST_PER_MESSAGE", 0.35),
			CreditsPerSend: getEnvAsInt("SMS_CREDITS_PER_SEND", 1),
		},
		ReplyInbox: ReplyInboxConfig{
			Host:       getEnv("REPLY_IMAP_HOST", ""),
			Port:       getEnvAsInt("REPLY_IMAP_PORT", 993),
			Username:   getEnv("REPLY_IMAP_USERNAME", ""),
			Password:   getEnv("REPLY_IMAP_PASSWORD", ""),
			Mailbox:    getEnv("REPLY_IMAP_MAILBOX", "INBOX"),
			Encryption: getEnv("REPLY_IMAP_ENCRYPTION", "SSL"),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "Africa/Johannesburg"),
		PollInterval:       getEnvAsDuration("POLL_INTERVAL", time.Minute),
		ReplyPollInterval:  getEnvAsDuration("REPLY_POLL_INTERVAL", 5*time.Minute),
		ClaimTimeout:       getEnvAsDuration("CLAIM_TIMEOUT", 10*time.Minute),
		RateLimitSendBurst: getEnvAsInt("RATE_LIMIT_SEND_BURST", 30),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.SMTP.Host == "" {
			return fmt.Errorf("SMTP_HOST is required in production")
		}
		if AppConfig.SMS.ProviderDomain == "" || AppConfig.SMS.APIKey == "" {
			return fmt.Errorf("SMS provider credentials are required in production")
		}
		if AppConfig.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for credit purchases in production")
		}
	}

	logConfig()
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value float64
	_, err := fmt.Sscanf(valueStr, "%g", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Channels: email(%t), sms(%t), reply inbox(%t)",
		AppConfig.SMTP.Host != "",
		AppConfig.SMS.ProviderDomain != "",
		AppConfig.ReplyInbox.Host != "")
}
