package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Email     EmailConfig
	Storage   StorageConfig
	Geo       GeoConfig
	Assistant AssistantConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	LogLevel     string
	PublicURL    string // front end base URL used in emailed links
	AllowOrigins string
	// proxies whose X-Forwarded-For is believed for client IPs
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

type AuthConfig struct {
	MaxFailedLogins int
	LockDuration    time.Duration
	InviteExpiry    time.Duration
	ResetExpiry     time.Duration
	TOTPIssuer      string

	// first ADMIN, created only while the user table is empty
	BootstrapAdminEmail    string
	BootstrapAdminName     string
	BootstrapAdminPassword string
}

type EmailConfig struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	FromName  string
}

type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	URLExpiry       time.Duration
}

type GeoConfig struct {
	Enabled  bool
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type AssistantConfig struct {
	Enabled      bool
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
	HistoryLimit int
}

type RateLimitConfig struct {
	PerSecond int
	Burst     int
}

func Load() (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			LogLevel:       getEnv("LOG_LEVEL", ""),
			PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/"),
			AllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000"),
			TrustedProxies: getListEnv("TRUSTED_PROXIES"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "docflow"),
			Password:    getEnv("DB_PASSWORD", "docflow"),
			DBName:      getEnv("DB_NAME", "docflow"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: getDurationEnv("JWT_EXPIRY", 7*24*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "docflow"),
		},
		Auth: AuthConfig{
			MaxFailedLogins: getIntEnv("AUTH_MAX_FAILED_LOGINS", 5),
			LockDuration:    getDurationEnv("AUTH_LOCK_DURATION", 15*time.Minute),
			InviteExpiry:    getDurationEnv("AUTH_INVITE_EXPIRY", 7*24*time.Hour),
			ResetExpiry:     getDurationEnv("AUTH_RESET_EXPIRY", time.Hour),
			TOTPIssuer:      getEnv("AUTH_TOTP_ISSUER", "Docflow"),

			BootstrapAdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", ""),
			BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Email: EmailConfig{
			Enabled:   getBoolEnv("EMAIL_ENABLED", false),
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", ""),
			FromName:  getEnv("EMAIL_FROM_NAME", "Docflow"),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			URLExpiry:       getDurationEnv("S3_URL_EXPIRY", 15*time.Minute),
		},
		Geo: GeoConfig{
			Enabled:  getBoolEnv("GEO_ENABLED", true),
			BaseURL:  getEnv("GEO_BASE_URL", "http://ip-api.com"),
			Timeout:  getDurationEnv("GEO_TIMEOUT", 3*time.Second),
			CacheTTL: getDurationEnv("GEO_CACHE_TTL", 24*time.Hour),
		},
		Assistant: AssistantConfig{
			Enabled:      getBoolEnv("ASSISTANT_ENABLED", false),
			BaseURL:      getEnv("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
			APIKey:       getEnv("ASSISTANT_API_KEY", ""),
			Model:        getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
			SystemPrompt: getEnv("ASSISTANT_SYSTEM_PROMPT", "You are a helpful assistant for a document management workspace."),
			Timeout:      getDurationEnv("ASSISTANT_TIMEOUT", 60*time.Second),
			HistoryLimit: getIntEnv("ASSISTANT_HISTORY_LIMIT", 20),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 5),
			Burst:     getIntEnv("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be set to at least 32 characters")
	}
	if c.Email.Enabled && (c.Email.APIKey == "" || c.Email.FromEmail == "") {
		return errors.New("EMAIL_ENABLED requires RESEND_API_KEY and EMAIL_FROM")
	}
	if c.Assistant.Enabled && c.Assistant.APIKey == "" {
		return errors.New("ASSISTANT_ENABLED requires ASSISTANT_API_KEY")
	}
	return nil
}

// IsProduction reports whether cookies must be marked Secure.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
