package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./geofleet.db)

	ServiceAccountToken string // Optional: static token for machine-to-machine access
	SessionLifetime     time.Duration
	SecureCookies       bool

	ForceDirectory bool // Only directory binds may satisfy password login
	ForceRedirect  bool // Password login disabled; redirect sign-in only

	OIDCIssuerURL    string // Optional: enables the redirect sign-in flow when set
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCSuccessURL   string
	OIDCAdminGroup   string
	OIDCAllowedGroup string

	AdminEmail    string // Optional: bootstrap administrator for empty databases
	AdminPassword string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditRetention       time.Duration // How long audit events are kept (default: 90 days)
	UsageFlushInterval   time.Duration // Usage counter flush interval (default: 1m)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("API_DATABASE_FILE", "geofleet.db"),

		ServiceAccountToken: os.Getenv("API_SERVICE_ACCOUNT_TOKEN"),
		SessionLifetime:     getEnvDurationOrDefault("API_SESSION_LIFETIME", 7*24*time.Hour),
		SecureCookies:       getEnvBool("API_SECURE_COOKIES"),

		ForceDirectory: getEnvBool("API_FORCE_DIRECTORY"),
		ForceRedirect:  getEnvBool("API_FORCE_REDIRECT"),

		OIDCIssuerURL:    os.Getenv("API_OIDC_ISSUER_URL"),
		OIDCClientID:     os.Getenv("API_OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("API_OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("API_OIDC_REDIRECT_URL"),
		OIDCSuccessURL:   getEnvOrDefault("API_OIDC_SUCCESS_URL", "/"),
		OIDCAdminGroup:   os.Getenv("API_OIDC_ADMIN_GROUP"),
		OIDCAllowedGroup: os.Getenv("API_OIDC_ALLOWED_GROUP"),

		AdminEmail:    os.Getenv("API_ADMIN_EMAIL"),
		AdminPassword: os.Getenv("API_ADMIN_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 90*24*time.Hour),
		UsageFlushInterval:   getEnvDurationOrDefault("USAGE_FLUSH_INTERVAL", time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && value
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
