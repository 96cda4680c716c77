package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address          string
	Auth             AuthConfig
	ConnectionLimit  ConnectionLimitConfig `mapstructure:"connectionLimit"`
	HandshakeTimeout time.Duration         `mapstructure:"handshakeTimeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// DatabaseConfig selects the backing store. An empty DSN runs the gateway on
// the in-memory store and directory, which is only meant for development.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
