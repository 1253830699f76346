// Package config loads service configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string  `yaml:"addr"`
	DatabaseURL        string  `yaml:"databaseURL"`
	RedisURL           string  `yaml:"redisURL"`
	SolveTimeLimitSec  int     `yaml:"solveTimeLimitSec"`
	HorizonSlack       int     `yaml:"horizonSlack"`
	RateRPS            float64 `yaml:"rateRPS"`
	RateBurst          int     `yaml:"rateBurst"`
	WebhookMaxAttempts int     `yaml:"webhookMaxAttempts"`
	AdminToken         string  `yaml:"adminToken"`
}

// Default returns production defaults: a 300 second solve budget and the
// formulation's standard horizon slack.
func Default() Config {
	return Config{
		Addr:               ":8080",
		SolveTimeLimitSec:  300,
		HorizonSlack:       0, // 0 selects the formulation default
		RateRPS:            50,
		RateBurst:          100,
		WebhookMaxAttempts: 10,
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	intEnv("SOLVE_TIME_LIMIT_SEC", &c.SolveTimeLimitSec)
	intEnv("HORIZON_SLACK", &c.HorizonSlack)
	intEnv("RATE_BURST", &c.RateBurst)
	intEnv("WEBHOOK_MAX_ATTEMPTS", &c.WebhookMaxAttempts)
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RateRPS = f
		}
	}
}

func intEnv(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
