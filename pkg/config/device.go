package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const DeviceEnvPrefix = "CARTCTL"

// DeviceConfig configures the cartctl device client.
type DeviceConfig struct {
	DBPath      string        `envconfig:"CARTCTL_DB_PATH" default:"cartctl.db"`
	DeviceKey   string        `envconfig:"CARTCTL_DEVICE_KEY" default:"guest"`
	APIURL      string        `envconfig:"CARTCTL_API_URL" default:"http://localhost:8080"`
	Timeout     time.Duration `envconfig:"CARTCTL_TIMEOUT" default:"10s"`
	TripAfter   uint32        `envconfig:"CARTCTL_BREAKER_TRIP_AFTER" default:"5"`
	OpenFor     time.Duration `envconfig:"CARTCTL_BREAKER_OPEN_FOR" default:"30s"`
	LogLevel    string        `envconfig:"CARTCTL_LOG_LEVEL" default:"warn"`
	SessionFile string        `envconfig:"CARTCTL_SESSION_FILE"`
}

// LoadDevice reads the CARTCTL_* environment.
func LoadDevice() (*DeviceConfig, error) {
	var cfg DeviceConfig
	if err := envconfig.Process(DeviceEnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing device config: %w", err)
	}
	if strings.TrimSpace(cfg.DeviceKey) == "" {
		return nil, fmt.Errorf("CARTCTL_DEVICE_KEY must not be empty")
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = cfg.DBPath + ".session"
	}
	return &cfg, nil
}
