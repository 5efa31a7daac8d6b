package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"futuresProxy/internal/adapters/logger" // Import the logger package for LogLevel
)

// Pacing modes accepted by PACING_MODE.
const (
	PacingFixed       = "fixed"
	PacingTokenBucket = "token_bucket"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server
	Port               int
	CORSAllowedOrigins []string
	AdminToken         string // empty disables the admin routes
	MetricsEnabled     bool

	// Exchange
	IsTestnet   bool
	BaseURL     string // overrides IsTestnet when set
	HTTPTimeout time.Duration
	RecvWindow  time.Duration

	// Credentials for the CLI only; the server takes them per request.
	APIKey    string
	SecretKey string

	// Reconciliation
	PacingMode         string
	OrderPacing        time.Duration
	IncomeLimit        int
	Lookback           time.Duration
	MaxHistory         time.Duration
	SymbolLoadAttempts int
	StrictMatching     bool

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// HTTP server
	cfg.Port, err = getEnvAsIntRequired("PORT", 3000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PORT: %v", err))
	} else if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"})
	cfg.AdminToken = getEnv("ADMIN_TOKEN", "")
	cfg.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", true)

	// Exchange
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	cfg.BaseURL = strings.TrimRight(getEnv("BINANCE_BASE_URL", ""), "/")
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		errs = append(errs, "BINANCE_BASE_URL must start with http:// or https://")
	}

	timeoutSeconds, err := getEnvAsIntRequired("HTTP_TIMEOUT_SECONDS", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HTTP_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	cfg.HTTPTimeout = time.Duration(timeoutSeconds) * time.Second

	recvWindowMs, err := getEnvAsIntRequired("RECV_WINDOW_MS", 60000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RECV_WINDOW_MS: %v", err))
	} else if recvWindowMs <= 0 || recvWindowMs > 60000 {
		errs = append(errs, "RECV_WINDOW_MS must be between 1 and 60000")
	}
	cfg.RecvWindow = time.Duration(recvWindowMs) * time.Millisecond

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")

	// Reconciliation
	cfg.PacingMode = strings.ToLower(getEnv("PACING_MODE", PacingFixed))
	if cfg.PacingMode != PacingFixed && cfg.PacingMode != PacingTokenBucket {
		errs = append(errs, fmt.Sprintf("PACING_MODE must be %q or %q", PacingFixed, PacingTokenBucket))
	}

	pacingMs, err := getEnvAsIntRequired("ORDER_PACING_MS", 150)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_PACING_MS: %v", err))
	} else if pacingMs < 0 {
		errs = append(errs, "ORDER_PACING_MS cannot be negative")
	}
	cfg.OrderPacing = time.Duration(pacingMs) * time.Millisecond

	cfg.IncomeLimit, err = getEnvAsIntRequired("INCOME_LIMIT", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INCOME_LIMIT: %v", err))
	} else if cfg.IncomeLimit <= 0 || cfg.IncomeLimit > 1000 {
		errs = append(errs, "INCOME_LIMIT must be between 1 and 1000")
	}

	lookbackHours, err := getEnvAsIntRequired("LOOKBACK_HOURS", 72)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_HOURS: %v", err))
	} else if lookbackHours <= 0 {
		errs = append(errs, "LOOKBACK_HOURS must be positive")
	}
	cfg.Lookback = time.Duration(lookbackHours) * time.Hour

	maxHistoryDays, err := getEnvAsIntRequired("MAX_HISTORY_DAYS", 90)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_HISTORY_DAYS: %v", err))
	} else if maxHistoryDays <= 0 {
		errs = append(errs, "MAX_HISTORY_DAYS must be positive")
	}
	cfg.MaxHistory = time.Duration(maxHistoryDays) * 24 * time.Hour

	cfg.SymbolLoadAttempts, err = getEnvAsIntRequired("SYMBOL_LOAD_ATTEMPTS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYMBOL_LOAD_ATTEMPTS: %v", err))
	} else if cfg.SymbolLoadAttempts <= 0 {
		errs = append(errs, "SYMBOL_LOAD_ATTEMPTS must be positive")
	}
	cfg.StrictMatching = getEnvAsBool("STRICT_MATCHING", false)

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
