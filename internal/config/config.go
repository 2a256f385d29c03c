// Package config loads server configuration from the environment.
package config

import "os"

// Config holds the server settings.
type Config struct {
	// DBPath is the SQLite database file path (DB_PATH).
	DBPath string

	// Port is the HTTP listen port (SERVER_PORT).
	Port string
}

// Load reads the configuration from environment variables, falling back
// to development defaults.
func Load() *Config {
	return &Config{
		DBPath: getEnv("DB_PATH", "./data/ledger.db"),
		Port:   getEnv("SERVER_PORT", "8080"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
