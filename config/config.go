package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system,
// such as server settings, the Postgres symbol directory, the upstream market-data
// source and the quote retrieval layer.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
//	QUOTE_CACHE_TTL=1m
//	FANOUT_WORKERS=5
//	FANOUT_TIMEOUT=10s
//	UPSTREAM_BASE_URL=https://query1.finance.yahoo.com
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Postgres PostgresConfig // PostgreSQL connection settings
	Upstream UpstreamConfig // Market-data source settings
	Quote    QuoteConfig    // Cache, fan-out and historical lookup tuning
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port           string        // The TCP port the HTTP server will listen on (e.g., "8080")
	RequestTimeout time.Duration // Deadline attached to every request context
	RateLimit      int           // Requests per client IP per minute
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// UpstreamConfig describes how to reach the market-data provider.
type UpstreamConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// QuoteConfig tunes the quote retrieval layer.
//
// Fields:
//   - CacheTTL: freshness window of a cached quote.
//   - CacheMaxEntries: capacity ceiling of the quote cache (least recently used entries go first).
//   - FanoutWorkers: how many symbols a batch fetches concurrently.
//   - FanoutTimeout: per-symbol budget inside a batch.
//   - HistoryWindowDays: how many calendar days after the target date a historical lookup scans.
//   - HistoryFallbackSuffix: regional suffix tried once when a plain symbol has no bars.
//   - PopularSymbols: default batch for the popular quotes endpoint.
type QuoteConfig struct {
	CacheTTL              time.Duration
	CacheMaxEntries       int
	FanoutWorkers         int
	FanoutTimeout         time.Duration
	HistoryWindowDays     int
	HistoryFallbackSuffix string
	PopularSymbols        []string
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing or out of range, validateConfig() will terminate
//     the app with a descriptive log message.
func LoadConfig() {
	// Default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_REQUEST_TIMEOUT", "10s")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "stockpulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("UPSTREAM_BASE_URL", "https://query1.finance.yahoo.com")
	viper.SetDefault("UPSTREAM_TIMEOUT", "8s")
	viper.SetDefault("UPSTREAM_USER_AGENT", "stockpulse/1.0")

	viper.SetDefault("QUOTE_CACHE_TTL", "1m")
	viper.SetDefault("QUOTE_CACHE_MAX_ENTRIES", 1024)
	viper.SetDefault("FANOUT_WORKERS", 5)
	viper.SetDefault("FANOUT_TIMEOUT", "10s")
	viper.SetDefault("HISTORY_WINDOW_DAYS", 7)
	viper.SetDefault("HISTORY_FALLBACK_SUFFIX", ".NS")
	viper.SetDefault("POPULAR_SYMBOLS", "AAPL,GOOGL,MSFT,TSLA,AMZN")

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	// Read environment variables automatically. A variable set to "" counts
	// as set, so HISTORY_FALLBACK_SUFFIX= turns the regional retry off.
	viper.AllowEmptyEnv(true)
	viper.AutomaticEnv()

	AppConfig = Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			RequestTimeout: viper.GetDuration("SERVER_REQUEST_TIMEOUT"),
			RateLimit:      viper.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(viper.GetString("UPSTREAM_BASE_URL"), "/"),
			Timeout:   viper.GetDuration("UPSTREAM_TIMEOUT"),
			UserAgent: viper.GetString("UPSTREAM_USER_AGENT"),
		},
		Quote: QuoteConfig{
			CacheTTL:              viper.GetDuration("QUOTE_CACHE_TTL"),
			CacheMaxEntries:       viper.GetInt("QUOTE_CACHE_MAX_ENTRIES"),
			FanoutWorkers:         viper.GetInt("FANOUT_WORKERS"),
			FanoutTimeout:         viper.GetDuration("FANOUT_TIMEOUT"),
			HistoryWindowDays:     viper.GetInt("HISTORY_WINDOW_DAYS"),
			HistoryFallbackSuffix: viper.GetString("HISTORY_FALLBACK_SUFFIX"),
			PopularSymbols:        SplitSymbols(viper.GetString("POPULAR_SYMBOLS")),
		},
	}

	// Construct Postgres DSN (used by database/sql)
	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)

	validateConfig()
}

// SplitSymbols parses a comma separated ticker list, upper-casing entries and
// dropping blanks. viper's string slices split on whitespace, not commas.
func SplitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateConfig ensures required variables are present and terminates
// the application if they are missing.
func validateConfig() {
	if missing := missingKeys(AppConfig); len(missing) > 0 {
		log.Fatalf("missing or invalid environment variables: %v\n", missing)
	}
}

// missingKeys lists the environment keys whose values are absent or out of range.
func missingKeys(cfg Config) []string {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if cfg.Server.RequestTimeout <= 0 {
		missing = append(missing, "SERVER_REQUEST_TIMEOUT")
	}
	if cfg.Server.RateLimit <= 0 {
		missing = append(missing, "RATE_LIMIT_PER_MINUTE")
	}
	if cfg.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if cfg.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if cfg.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if cfg.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if cfg.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if cfg.Upstream.BaseURL == "" {
		missing = append(missing, "UPSTREAM_BASE_URL")
	}
	if cfg.Upstream.Timeout <= 0 {
		missing = append(missing, "UPSTREAM_TIMEOUT")
	}
	if cfg.Quote.CacheTTL <= 0 {
		missing = append(missing, "QUOTE_CACHE_TTL")
	}
	if cfg.Quote.CacheMaxEntries <= 0 {
		missing = append(missing, "QUOTE_CACHE_MAX_ENTRIES")
	}
	if cfg.Quote.FanoutWorkers <= 0 {
		missing = append(missing, "FANOUT_WORKERS")
	}
	if cfg.Quote.FanoutTimeout <= 0 {
		missing = append(missing, "FANOUT_TIMEOUT")
	}
	if cfg.Quote.HistoryWindowDays <= 0 {
		missing = append(missing, "HISTORY_WINDOW_DAYS")
	}
	if len(cfg.Quote.PopularSymbols) == 0 {
		missing = append(missing, "POPULAR_SYMBOLS")
	}

	return missing
}
