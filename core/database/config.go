package database

import (
	"fmt"

	coreconfig "github.com/m3rciful/questionbot/core/config"
)

// Config holds database connection settings.
type Config = coreconfig.DatabaseConfig

// DSN renders cfg as a lib/pq keyword/value connection string.
func DSN(cfg Config) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}
