package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	AllowedOrigin string
	CookieSecure  bool

	// Remote storefront backend
	BackendURL          string
	BackendTimeout      time.Duration
	BackendMaxRetries   int
	BackendRetryBackoff time.Duration
	BackendRateLimit    float64 // outbound requests per second
	BackendBurst        int

	// DB Config (optional, enables the Postgres session store)
	DBUrl             string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration

	// Sessions
	SessionTTL time.Duration

	// Cache
	CacheCatalogTTL time.Duration

	// Search
	SearchQuietPeriod time.Duration
	SearchTimeout     time.Duration
	SearchWidgetTTL   time.Duration

	// Inbound rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Business Rules
	MaxCartQuantity int
}

func LoadConfig() (*Config, error) {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: .env for local dev, system env vars otherwise
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		CookieSecure:  getBoolEnv("COOKIE_SECURE", false),

		BackendURL:          getEnv("BACKEND_URL", "http://localhost:8082/api/v1"),
		BackendTimeout:      getDurationEnv("BACKEND_TIMEOUT", 10*time.Second),
		BackendMaxRetries:   getIntEnv("BACKEND_MAX_RETRIES", 2),
		BackendRetryBackoff: getDurationEnv("BACKEND_RETRY_BACKOFF", 200*time.Millisecond),
		BackendRateLimit:    getFloatEnv("BACKEND_RATE_LIMIT", 20),
		BackendBurst:        getIntEnv("BACKEND_BURST", 40),

		DBUrl:             getEnv("DB_DSN", ""),
		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 10),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 2),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),

		SessionTTL: getDurationEnv("SESSION_TTL", time.Hour*24),

		// Catalog changes rarely; the cart view joins against it on every render
		CacheCatalogTTL: getDurationEnv("CACHE_CATALOG_TTL", 5*time.Minute),

		SearchQuietPeriod: getDurationEnv("SEARCH_QUIET_PERIOD", 500*time.Millisecond),
		SearchTimeout:     getDurationEnv("SEARCH_TIMEOUT", 5*time.Second),
		SearchWidgetTTL:   getDurationEnv("SEARCH_WIDGET_TTL", 30*time.Minute),

		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		MaxCartQuantity: getIntEnv("MAX_CART_QUANTITY", 1000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL %q is not an absolute URL", c.BackendURL)
	}
	if c.SearchQuietPeriod < 0 {
		return fmt.Errorf("SEARCH_QUIET_PERIOD must not be negative")
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must not be negative")
	}
	if c.MaxCartQuantity < 1 {
		return fmt.Errorf("MAX_CART_QUANTITY must be at least 1")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.DBUrl == "" {
		log.Println("DB_DSN not set, sessions are kept in memory")
	}
	return nil
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using fallback", key)
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Invalid bool for %s, using fallback", key)
	}
	return fallback
}
