// Package config loads service configuration from the environment. A .env
// file in the working directory is honored when present.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable for the contact service binary.
type Config struct {
	ListenAddr string // address for the combined REST/ws/metrics listener

	DatabaseURL string // postgres DSN
	RedisAddr   string // host:port of the presence Redis
	NATSURL     string // nats://host:port

	JWTSecret string // HS256 signing secret for bearer tokens

	ServerName string // instance identifier, used in logs and presence

	ReadTimeout       time.Duration // ws read timeout
	WriteTimeout      time.Duration // ws write timeout
	HeartbeatInterval time.Duration // ws ping cadence
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:        ":8080",
		DatabaseURL:       "postgres://localhost:5432/contact?sslmode=disable",
		RedisAddr:         "localhost:6379",
		NATSURL:           "nats://localhost:4222",
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.ServerName = os.Getenv("SERVER_NAME")
	if cfg.ServerName == "" {
		cfg.ServerName, _ = os.Hostname()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "contact-1"
	}

	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WriteTimeout = d
		}
	}
	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HeartbeatInterval = d
		}
	}

	return cfg
}
