package config

import (
	"time"

	"github.com/kaytu-io/kaytu-assistant/pkg/koanf"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

type Store struct {
	// Driver is one of postgres, redis or memory.
	Driver  string        `json:"driver,omitempty" koanf:"driver"`
	Timeout time.Duration `json:"timeout,omitempty" koanf:"timeout"`
}

type AssistantConfig struct {
	Postgres koanf.Postgres   `json:"postgres,omitempty" koanf:"postgres"`
	Redis    koanf.Redis      `json:"redis,omitempty" koanf:"redis"`
	NATS     koanf.NATS       `json:"nats,omitempty" koanf:"nats"`
	Http     koanf.HttpServer `json:"http,omitempty" koanf:"http"`
	Store    Store            `json:"store,omitempty" koanf:"store"`
}

func Default() AssistantConfig {
	return AssistantConfig{
		Postgres: koanf.Postgres{
			Host:    "localhost",
			Port:    "5432",
			DB:      "assistant",
			SSLMode: "disable",
		},
		Redis: koanf.Redis{
			Address: "localhost:6379",
			Prefix:  "assistant",
			TTL:     30 * 24 * time.Hour,
		},
		Http: koanf.HttpServer{
			Address: "0.0.0.0:8000",
		},
		Store: Store{
			Driver:  StoreDriverPostgres,
			Timeout: 5 * time.Second,
		},
	}
}
