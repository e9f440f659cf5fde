package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	OpsAlertURL       string `env:"OPS_ALERT_URL"`
	BatchTickSeconds  int    `env:"BATCH_TICK_SECONDS,default=60"`
	IdleThresholdMins int    `env:"IDLE_THRESHOLD_MINS,default=30"`
	OTPAttemptsPerMin int    `env:"OTP_ATTEMPTS_PER_MIN,default=5"`
	QueueConcurrency  int    `env:"QUEUE_CONCURRENCY,default=5"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// BatchTickInterval is the lifecycle scheduler period.
func (c *Config) BatchTickInterval() time.Duration {
	return time.Duration(c.BatchTickSeconds) * time.Second
}

// IdleThreshold is how long a LOCKED batch may sit past cutoff before the
// stale monitor escalates.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdMins) * time.Minute
}
