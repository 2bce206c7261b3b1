package config

import (
	"fmt"
	"time"
)

// DevOrigin is permitted when no origins are configured, so a local
// frontend can connect without flags.
const DevOrigin = "http://localhost:3000"

const (
	DefaultSweepInterval    = 5 * time.Minute
	DefaultOfflineRetention = time.Hour
)

type Config struct {
	ServerAddr       string
	DatabasePath     string
	AllowedOrigins   []string
	SweepInterval    time.Duration
	OfflineRetention time.Duration
}

func NewConfig(serverAddr, databasePath string, allowedOrigins []string, sweepInterval, offlineRetention time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databasePath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if sweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	if offlineRetention <= 0 {
		return nil, fmt.Errorf("offline retention must be positive")
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{DevOrigin}
	}

	return &Config{
		ServerAddr:       serverAddr,
		DatabasePath:     databasePath,
		AllowedOrigins:   allowedOrigins,
		SweepInterval:    sweepInterval,
		OfflineRetention: offlineRetention,
	}, nil
}
