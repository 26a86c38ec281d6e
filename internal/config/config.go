package config

import (
	"fmt"
	"net/mail"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Catalog and expansion
	CatalogPath        string
	ExpansionInclusion string
	ExpansionCacheSize int
	ExpansionCacheTTL  time.Duration

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	SyncBatchSize  int
	SyncInterval   time.Duration
	ExportInterval time.Duration

	// Reminders
	ReminderSchedule   string
	ReminderWindowDays int
	ReminderRecipients string
	SMTPHost           string
	SMTPPort           string
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string

	// HTTP extras
	MetricsEnabled bool
	RateLimitRPM   int
	TrustedProxies []string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CatalogPath:        getEnv("CATALOG_PATH", ""),
		ExpansionInclusion: getEnv("EXPANSION_INCLUSION", "intersect"),
		ExpansionCacheSize: getEnvInt("EXPANSION_CACHE_SIZE", 256),
		ExpansionCacheTTL:  getEnvDuration("EXPANSION_CACHE_TTL", time.Hour),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIR", "data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/perks.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "perks"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "credit_state_changed"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Credits"),

		SyncBatchSize:  getEnvInt("SYNC_BATCH_SIZE", 25),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		ExportInterval: getEnvDuration("EXPORT_INTERVAL", time.Hour),

		ReminderSchedule:   getEnv("REMINDER_SCHEDULE", "0 9 * * *"),
		ReminderWindowDays: getEnvInt("REMINDER_WINDOW_DAYS", 7),
		ReminderRecipients: getEnv("REMINDER_RECIPIENTS", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.CatalogPath != "" {
		if _, err := os.Stat(c.CatalogPath); err != nil {
			errors = append(errors, fmt.Sprintf("catalog file not readable: %s", c.CatalogPath))
		}
	}

	switch c.ExpansionInclusion {
	case "", "intersect", "start":
	default:
		errors = append(errors, fmt.Sprintf("invalid expansion inclusion '%s': must be 'intersect' or 'start'", c.ExpansionInclusion))
	}
	if c.ExpansionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid expansion cache size %d: must be at least 1", c.ExpansionCacheSize))
	}
	if c.ExpansionCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid expansion cache TTL %v: must be positive", c.ExpansionCacheTTL))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.ExportInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must not be negative", c.ExportInterval))
	}

	if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reminder schedule '%s': %v", c.ReminderSchedule, err))
	}
	if c.ReminderWindowDays < 0 || c.ReminderWindowDays > 90 {
		errors = append(errors, fmt.Sprintf("invalid reminder window %d: must be between 0 and 90 days", c.ReminderWindowDays))
	}
	if _, err := ParseRecipients(c.ReminderRecipients); err != nil {
		errors = append(errors, err.Error())
	}
	if c.SMTPHost != "" {
		if _, err := strconv.Atoi(c.SMTPPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid SMTP port '%s': must be a number", c.SMTPPort))
		}
		if c.SMTPFrom == "" {
			errors = append(errors, "SMTP sender cannot be empty when SMTP host is provided")
		}
	}

	if c.RateLimitRPM < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitRPM))
	}
	for _, cidr := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseRecipients parses "user=email,user=email" into a map.
func ParseRecipients(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, addr, ok := strings.Cut(pair, "=")
		user, addr = strings.TrimSpace(user), strings.TrimSpace(addr)
		if !ok || user == "" || addr == "" {
			return nil, fmt.Errorf("invalid reminder recipient '%s': want user=email", pair)
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid reminder recipient address '%s': %v", addr, err)
		}
		out[user] = addr
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
