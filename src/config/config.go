package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret          string
	CSRFAuthKey        []byte
	OAuthStateString   string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Remote watchlist table
	RemoteDriver  string // "sqlite" or "postgres"
	PostgresURL   string
	RemoteTimeout time.Duration

	// Local workspace state
	WatchlistCacheDir string
	WorkspaceIdleTTL  time.Duration

	// Market data
	MarketHTTPTimeout     time.Duration
	SearchCacheTTL        time.Duration
	RefreshIntervalUS     time.Duration
	RefreshIntervalIndian time.Duration
	RefreshIntervalCrypto time.Duration
	AlphaVantageAPIKey    string

	// Assistant
	GeminiAPIKey string
	GeminiModel  string

	// Display
	DisplayCurrency string

	// Per-user notification inbox size
	NotificationInboxSize int

	// Google OAuth settings
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Frontend URL for reference (e.g., CORS, redirects)
	FrontendBaseURL string
	AllowedOrigins  []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	loadDotEnv()

	log.Println("Loading application configuration...")

	jwtSecret := getRequiredEnv("JWT_SECRET")
	csrfAuthKeyStr := getRequiredEnv("CSRF_AUTH_KEY")

	cfg := fromEnv()
	cfg.JWTSecret = jwtSecret
	cfg.CSRFAuthKey = []byte(csrfAuthKeyStr)
	if cfg.OAuthStateString == "secure-random-state-string-for-dev-only" {
		log.Println("WARNING: Using default OAUTH_STATE_STRING. Set this in production.")
	}
	Cfg = cfg

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RemoteDriver=%s, FrontendURL=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.RemoteDriver, Cfg.FrontendBaseURL)
}

// LoadToolConfig loads the configuration used by the command line tools.
// Secrets are optional there because no HTTP session is ever issued.
func LoadToolConfig() {
	loadDotEnv()
	cfg := fromEnv()
	Cfg = cfg
}

// Default returns a configuration with every default applied and no
// environment lookups. Tests use it.
func Default() *AppConfig {
	return &AppConfig{
		Port:                  "8080",
		DatabasePath:          "./finwatch.db",
		LogLevel:              "info",
		OAuthStateString:      "secure-random-state-string-for-dev-only",
		AccessTokenExpiry:     60 * time.Minute,
		RefreshTokenExpiry:    168 * time.Hour,
		RemoteDriver:          "sqlite",
		RemoteTimeout:         10 * time.Second,
		WatchlistCacheDir:     "./data/watchlists",
		WorkspaceIdleTTL:      30 * time.Minute,
		MarketHTTPTimeout:     15 * time.Second,
		SearchCacheTTL:        10 * time.Minute,
		RefreshIntervalUS:     5 * time.Minute,
		RefreshIntervalIndian: 5 * time.Minute,
		RefreshIntervalCrypto: time.Minute,
		GeminiModel:           "gemini-2.5-flash",
		DisplayCurrency:       "INR",
		NotificationInboxSize: 50,
		FrontendBaseURL:       "http://localhost:3000",
		AllowedOrigins:        []string{"http://localhost:3000"},
	}
}

func loadDotEnv() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}
}

func fromEnv() *AppConfig {
	d := Default()

	frontendBaseURL := getEnv("APP_BASE_URL", d.FrontendBaseURL)
	apiBaseURL := getEnv("API_BASE_URL", "http://localhost:8080")

	return &AppConfig{
		Port:         getEnv("PORT", d.Port),
		DatabasePath: getEnv("DATABASE_PATH", d.DatabasePath),
		LogLevel:     getEnv("LOG_LEVEL", d.LogLevel),

		OAuthStateString:   getEnv("OAUTH_STATE_STRING", d.OAuthStateString),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", d.AccessTokenExpiry),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", d.RefreshTokenExpiry),

		RemoteDriver:  strings.ToLower(getEnv("REMOTE_DRIVER", d.RemoteDriver)),
		PostgresURL:   getEnv("POSTGRES_URL", ""),
		RemoteTimeout: getEnvAsDuration("REMOTE_TIMEOUT", d.RemoteTimeout),

		WatchlistCacheDir: getEnv("WATCHLIST_CACHE_DIR", d.WatchlistCacheDir),
		WorkspaceIdleTTL:  getEnvAsDuration("WORKSPACE_IDLE_TTL", d.WorkspaceIdleTTL),

		MarketHTTPTimeout:     getEnvAsDuration("MARKET_HTTP_TIMEOUT", d.MarketHTTPTimeout),
		SearchCacheTTL:        getEnvAsDuration("SEARCH_CACHE_TTL", d.SearchCacheTTL),
		RefreshIntervalUS:     getEnvAsDuration("REFRESH_INTERVAL_US", d.RefreshIntervalUS),
		RefreshIntervalIndian: getEnvAsDuration("REFRESH_INTERVAL_INDIAN", d.RefreshIntervalIndian),
		RefreshIntervalCrypto: getEnvAsDuration("REFRESH_INTERVAL_CRYPTO", d.RefreshIntervalCrypto),
		AlphaVantageAPIKey:    getEnv("ALPHAVANTAGE_API_KEY", "demo"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", d.GeminiModel),

		DisplayCurrency:       strings.ToUpper(getEnv("DISPLAY_CURRENCY", d.DisplayCurrency)),
		NotificationInboxSize: getEnvAsInt("NOTIFICATION_INBOX_SIZE", d.NotificationInboxSize),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", apiBaseURL+"/api/auth/google/callback"),

		FrontendBaseURL: frontendBaseURL,
		AllowedOrigins:  getList("ALLOWED_ORIGINS", frontendBaseURL),
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList retrieves and parses a comma-separated list.
func getList(key, fallback string) []string {
	valueStr := getEnv(key, fallback)
	if valueStr == "" {
		return []string{}
	}
	values := strings.Split(valueStr, ",")
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
