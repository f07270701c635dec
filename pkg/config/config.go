package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	Firebase FirebaseConfig
	Sentry   SentryConfig
	Dispatch DispatchConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// FirebaseConfig holds Firebase configuration
type FirebaseConfig struct {
	CredentialsPath string
	Enabled         bool
}

// SentryConfig holds Sentry error-tracking configuration
type SentryConfig struct {
	DSN     string
	Enabled bool
}

// DispatchConfig holds the tunables of the sequential offer dispatcher.
type DispatchConfig struct {
	OfferTimeoutSeconds  int     // Time a driver has to respond to an offer
	MaxSearchRadiusKm    float64 // Maximum distance to search for drivers
	MaxOffersPerBooking  int     // Max drivers to try before giving up
	SweepIntervalSeconds int     // Expiry sweeper period

	// Score weights. Must sum to 1.0.
	DistanceWeight   float64
	RatingWeight     float64
	AcceptanceWeight float64
	IdleWeight       float64

	// Defaults applied when a driver has no history for a signal.
	DefaultRating     float64
	DefaultAcceptance float64
	DefaultIdleScore  float64
}

// DefaultDispatchConfig returns the production dispatch tuning.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		OfferTimeoutSeconds:  20,
		MaxSearchRadiusKm:    15,
		MaxOffersPerBooking:  10,
		SweepIntervalSeconds: 5,
		DistanceWeight:       0.50,
		RatingWeight:         0.25,
		AcceptanceWeight:     0.15,
		IdleWeight:           0.10,
		DefaultRating:        4.5,
		DefaultAcceptance:    80,
		DefaultIdleScore:     50,
	}
}

// OfferTimeout returns the offer deadline as a duration.
func (c DispatchConfig) OfferTimeout() time.Duration {
	return time.Duration(c.OfferTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweeper period, clamped to a quarter of the
// offer timeout so stale offers are never pending much past their deadline.
func (c DispatchConfig) SweepInterval() time.Duration {
	interval := time.Duration(c.SweepIntervalSeconds) * time.Second
	max := c.OfferTimeout() / 4
	if interval <= 0 || interval > max {
		return max
	}
	return interval
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	defaults := DefaultDispatchConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "dispatch"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			Enabled:         getEnvAsBool("FIREBASE_ENABLED", false),
		},
		Sentry: SentryConfig{
			DSN:     getEnv("SENTRY_DSN", ""),
			Enabled: getEnvAsBool("SENTRY_ENABLED", false),
		},
		Dispatch: DispatchConfig{
			OfferTimeoutSeconds:  getEnvAsInt("OFFER_TIMEOUT_SECONDS", defaults.OfferTimeoutSeconds),
			MaxSearchRadiusKm:    getEnvAsFloat("MAX_SEARCH_RADIUS_KM", defaults.MaxSearchRadiusKm),
			MaxOffersPerBooking:  getEnvAsInt("MAX_OFFERS_PER_BOOKING", defaults.MaxOffersPerBooking),
			SweepIntervalSeconds: getEnvAsInt("SWEEP_INTERVAL_SECONDS", defaults.SweepIntervalSeconds),
			DistanceWeight:       getEnvAsFloat("SCORE_DISTANCE_WEIGHT", defaults.DistanceWeight),
			RatingWeight:         getEnvAsFloat("SCORE_RATING_WEIGHT", defaults.RatingWeight),
			AcceptanceWeight:     getEnvAsFloat("SCORE_ACCEPTANCE_WEIGHT", defaults.AcceptanceWeight),
			IdleWeight:           getEnvAsFloat("SCORE_IDLE_WEIGHT", defaults.IdleWeight),
			DefaultRating:        defaults.DefaultRating,
			DefaultAcceptance:    defaults.DefaultAcceptance,
			DefaultIdleScore:     defaults.DefaultIdleScore,
		},
	}

	if cfg.Dispatch.OfferTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("OFFER_TIMEOUT_SECONDS must be positive, got %d", cfg.Dispatch.OfferTimeoutSeconds)
	}
	if cfg.Dispatch.MaxSearchRadiusKm <= 0 {
		return nil, fmt.Errorf("MAX_SEARCH_RADIUS_KM must be positive, got %f", cfg.Dispatch.MaxSearchRadiusKm)
	}
	if cfg.Dispatch.MaxOffersPerBooking <= 0 {
		return nil, fmt.Errorf("MAX_OFFERS_PER_BOOKING must be positive, got %d", cfg.Dispatch.MaxOffersPerBooking)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection URL used by the migrations runner.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
