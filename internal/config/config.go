package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fixed policy values. These are deliberately not read from the environment.
const (
	AdminSessionTimeout     = 30 * time.Minute
	ChallengeTTL            = 5 * time.Minute
	MaxChallengeAttempts    = 5
	StaffPasswordMinLength  = 12
	WebhookProcessTimeout   = 30 * time.Second
	AuditExportURLLifetime  = 15 * time.Minute
	IdentityRequestTimeout  = 10 * time.Second
	ReadinessCheckTimeout   = 2 * time.Second
	DefaultAuditLogPageSize = 50
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	Identity IdentityConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	AWS      AWSConfig
	Paystack PaystackConfig
	Edge     EdgeConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	// AdminLoginURL is linked from staff welcome e-mails.
	AdminLoginURL string
	// TrustedProxies may set X-Forwarded-For. Empty means only the socket
	// address is used.
	TrustedProxies []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdentityConfig points at the managed auth provider (Supabase GoTrue).
type IdentityConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	// VerifyMode is "remote" (ask the provider on every request) or "local"
	// (verify the provider-signed JWT with the project secret).
	VerifyMode string
}

type LoggingConfig struct {
	Level      string
	Format     string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string
	Bucket          string
	FromEmail       string
}

type PaystackConfig struct {
	SecretKey string
}

type EdgeConfig struct {
	App                string
	Port               string
	UpstreamURL        string
	AccessTokenCookie  string
	RefreshTokenCookie string
	SecureCookies      bool
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "postgres"),
			SSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AdminLoginURL:   getEnv("ADMIN_LOGIN_URL", "http://localhost:3002/auth/login"),
			TrustedProxies:  getEnvList("TRUSTED_PROXIES", nil),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			URL:            strings.TrimRight(getEnv("SUPABASE_URL", "http://localhost:54321"), "/"),
			AnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
			VerifyMode:     getEnv("IDENTITY_VERIFY_MODE", "remote"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			Filename:   getEnv("LOG_FILE", "logs/bazaar.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"}),
			AllowedMethods:   getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getEnvList("CORS_EXPOSED_HEADERS", []string{"X-Request-Id"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 300),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-west-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			EndpointURL:     getEnv("AWS_ENDPOINT_URL", ""),
			Bucket:          getEnv("AWS_S3_BUCKET", "bazaar-audit-exports"),
			FromEmail:       getEnv("AWS_SES_FROM_EMAIL", "no-reply@thebazaar.local"),
		},
		Paystack: PaystackConfig{
			SecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
		},
		Edge: EdgeConfig{
			App:                getEnv("EDGE_APP", "storefront"),
			Port:               getEnv("EDGE_PORT", "3100"),
			UpstreamURL:        getEnv("EDGE_UPSTREAM_URL", "http://localhost:3000"),
			AccessTokenCookie:  getEnv("EDGE_ACCESS_COOKIE", "sb-access-token"),
			RefreshTokenCookie: getEnv("EDGE_REFRESH_COOKIE", "sb-refresh-token"),
			SecureCookies:      getEnvBool("EDGE_SECURE_COOKIES", true),
		},
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// comma separated, blanks dropped
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
