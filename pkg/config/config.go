package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: all environment variables are read here, and only here
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Data sources
	Data DataConfig

	// Simulation defaults
	Sim SimConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DataConfig holds loan dataset source configuration
type DataConfig struct {
	// Local directory where downloaded/processed CSVs live
	Dir string

	// Named dataset downloads, e.g. DATASET_TRAINING_URL=https://.../LoanStats3a.csv
	TrainingURL string
	TestingURL  string

	// Requests per second allowed against the dataset host
	FetchRPS float64
}

// SimConfig holds backtest simulation defaults
type SimConfig struct {
	InitialCash    float64
	BuySize        float64
	LiquidityLimit float64
	FeeRate        float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: this is the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Data sources
		Data: DataConfig{
			Dir:         getEnv("DATA_DIR", "data"),
			TrainingURL: getEnv("DATASET_TRAINING_URL", ""),
			TestingURL:  getEnv("DATASET_TESTING_URL", ""),
			FetchRPS:    getEnvAsFloat("DATASET_FETCH_RPS", 1.0),
		},

		// Simulation defaults
		Sim: SimConfig{
			InitialCash:    getEnvAsFloat("SIM_INITIAL_CASH", 1000),
			BuySize:        getEnvAsFloat("SIM_BUY_SIZE", 25),
			LiquidityLimit: getEnvAsFloat("SIM_LIQUIDITY_LIMIT", 0.25),
			FeeRate:        getEnvAsFloat("SIM_FEE_RATE", 0.01),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Sim.BuySize <= 0 {
		return fmt.Errorf("SIM_BUY_SIZE must be positive")
	}
	if c.Sim.LiquidityLimit < 0 || c.Sim.LiquidityLimit > 1 {
		return fmt.Errorf("SIM_LIQUIDITY_LIMIT must be in [0, 1]")
	}
	if c.Sim.FeeRate < 0 || c.Sim.FeeRate >= 1 {
		return fmt.Errorf("SIM_FEE_RATE must be in [0, 1)")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
