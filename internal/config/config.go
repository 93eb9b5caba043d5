package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Protocol ProtocolConfig
	Solana   SolanaConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret   string
	AdminWallet string
}

// ProtocolConfig holds the lending protocol defaults applied at
// initialization. Ratios and the fee rate are percentages; the interest
// rate is the fixed per-position rate captured at origination.
type ProtocolConfig struct {
	InterestRate           uint64
	MinimumCollateralRatio uint64
	LiquidationThreshold   uint64
	FeeRate                uint64
	BlockIntervalSeconds   uint64
	SweepIntervalSeconds   uint64
}

// SolanaConfig holds custody bridge settings
type SolanaConfig struct {
	Network      string
	VaultAddress string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "lending_ledger"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			AdminWallet: getEnv("ADMIN_WALLET", ""),
		},
		Protocol: ProtocolConfig{
			InterestRate:           getEnvUint("PROTOCOL_INTEREST_RATE", 5),
			MinimumCollateralRatio: getEnvUint("MIN_COLLATERAL_RATIO", 150),
			LiquidationThreshold:   getEnvUint("LIQUIDATION_THRESHOLD", 120),
			FeeRate:                getEnvUint("FEE_RATE", 10),
			BlockIntervalSeconds:   getEnvUint("BLOCK_INTERVAL_SECONDS", 600),
			SweepIntervalSeconds:   getEnvUint("SWEEP_INTERVAL_SECONDS", 60),
		},
		Solana: SolanaConfig{
			Network:      getEnv("SOLANA_NETWORK", "devnet"),
			VaultAddress: getEnv("SOLANA_VAULT_ADDRESS", ""),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.App.AdminWallet == "" {
		return nil, fmt.Errorf("ADMIN_WALLET is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvUint gets an unsigned integer environment variable with a fallback
func getEnvUint(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
