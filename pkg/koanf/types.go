package koanf

import "time"

type Postgres struct {
	Host     string `json:"host,omitempty" koanf:"host"`
	Port     string `json:"port,omitempty" koanf:"port"`
	DB       string `json:"db,omitempty" koanf:"db"`
	Username string `json:"username,omitempty" koanf:"username"`
	Password string `json:"password,omitempty" koanf:"password"`
	SSLMode  string `json:"ssl_mode,omitempty" koanf:"ssl_mode"`
}

type HttpServer struct {
	Address string `json:"address,omitempty" koanf:"address"`
}

type Redis struct {
	Address  string        `json:"address,omitempty" koanf:"address"`
	Password string        `json:"password,omitempty" koanf:"password"`
	DB       int           `json:"db,omitempty" koanf:"db"`
	Prefix   string        `json:"prefix,omitempty" koanf:"prefix"`
	TTL      time.Duration `json:"ttl,omitempty" koanf:"ttl"`
}

type NATS struct {
	URL string `json:"url,omitempty" koanf:"url"`
}
