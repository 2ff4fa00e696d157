package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath   string `envconfig:"DB_PATH" default:"./data/planner.db"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	// Dispatch loop tuning. The cadence bounds notification latency;
	// the stale-claim window bounds how long a crashed worker can hold
	// an event hostage.
	DispatchCadence time.Duration `envconfig:"DISPATCH_CADENCE" default:"1m"`
	ClaimStaleAfter time.Duration `envconfig:"CLAIM_STALE_AFTER" default:"5m"`
	SendTimeout     time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	SendRetryMax    int           `envconfig:"SEND_RETRY_MAX" default:"3"`
	SendRetryBase   time.Duration `envconfig:"SEND_RETRY_BASE" default:"2s"`
	SendRetryCap    time.Duration `envconfig:"SEND_RETRY_CAP" default:"30s"`
	SendsPerSecond  int           `envconfig:"SENDS_PER_SECOND" default:"20"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
