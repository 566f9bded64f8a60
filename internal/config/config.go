package config

import (
	"fmt"
	"time"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// ServerConfig represents the server configuration
type ServerConfig struct {
	Server ServerSettings `yaml:"server"`
	Game   GameSettings   `yaml:"game"`
	Auth   AuthSettings   `yaml:"auth"`
}

// ServerSettings contains server-wide settings
type ServerSettings struct {
	Port            string        `yaml:"port" envconfig:"PORT" required:"true"`
	Host            string        `yaml:"host" envconfig:"HOST" required:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" envconfig:"IDLE_TIMEOUT" default:"0s"` // 0 for long-lived websockets
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Rate limiting (using golang.org/x/time/rate)
	RateLimit      float64 `yaml:"rateLimit" envconfig:"RATE_LIMIT" default:"10"`            // requests per second
	RateLimitBurst int     `yaml:"rateLimitBurst" envconfig:"RATE_LIMIT_BURST" default:"20"` // burst size

	// Websocket limits
	MaxMessageSize    int64 `yaml:"maxMessageSize" envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	SendBufferSize    int   `yaml:"sendBufferSize" envconfig:"SEND_BUFFER_SIZE" default:"64"`
	MaxWSConnections  int   `yaml:"maxWsConnections" envconfig:"MAX_WS_CONNECTIONS" default:"1000"`
	MaxAttachmentSize int   `yaml:"maxAttachmentSize" envconfig:"MAX_ATTACHMENT_SIZE" default:"2048"`

	// The public base URL used when building shareable room links.
	PublicBaseURL string `yaml:"publicBaseUrl" envconfig:"PUBLIC_BASE_URL"`

	LogLevel  string `yaml:"logLevel" envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT" default:"text"`
}

// GameSettings contains game-wide tunables
type GameSettings struct {
	MaxSeatsPerRoom   int           `yaml:"maxSeatsPerRoom"`
	MinPlayersToStart int           `yaml:"minPlayersToStart"`
	RoomCodeLength    int           `yaml:"roomCodeLength"`
	TurnTimeout       time.Duration `yaml:"turnTimeout"`
	StartCountdown    time.Duration `yaml:"startCountdown"`
	ReconnectWindow   time.Duration `yaml:"reconnectWindow"`
	RoomIdleTimeout   time.Duration `yaml:"roomIdleTimeout"`
	DirectoryTTL      time.Duration `yaml:"directoryTtl"`
}

// AuthSettings contains token verification settings
type AuthSettings struct {
	JWTSecret string `yaml:"jwtSecret" envconfig:"JWT_SECRET" required:"true"`
	Issuer    string `yaml:"issuer" envconfig:"JWT_ISSUER"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Port:            "", // Must be set via env
			Host:            "", // Must be set via env
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     0, // 0 for long-lived websockets
			ShutdownTimeout: 30 * time.Second,

			// Rate limiting defaults
			RateLimit:      10, // 10 requests per second
			RateLimitBurst: 20,

			// Websocket limits
			MaxMessageSize:    4096,
			SendBufferSize:    64,
			MaxWSConnections:  1000,
			MaxAttachmentSize: 2048,

			LogLevel:  "info",
			LogFormat: "text",
		},
		Game: GameSettings{
			MaxSeatsPerRoom:   4,
			MinPlayersToStart: 2,
			RoomCodeLength:    6,
			TurnTimeout:       60 * time.Second,
			StartCountdown:    3 * time.Second,
			ReconnectWindow:   5 * time.Minute,
			RoomIdleTimeout:   30 * time.Minute,
			DirectoryTTL:      90 * time.Second,
		},
		Auth: AuthSettings{
			JWTSecret: "", // Must be set via env
		},
	}
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	// Required fields
	if c.Server.Port == "" {
		return fmt.Errorf("PORT environment variable must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST environment variable must be set")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable must be set")
	}

	if c.Game.MaxSeatsPerRoom < 2 {
		return fmt.Errorf("maxSeatsPerRoom must be at least 2")
	}
	if c.Game.MinPlayersToStart < 1 {
		return fmt.Errorf("minPlayersToStart must be at least 1")
	}
	if c.Game.MinPlayersToStart > c.Game.MaxSeatsPerRoom {
		return fmt.Errorf("minPlayersToStart cannot be greater than maxSeatsPerRoom")
	}
	if c.Game.RoomCodeLength < 4 {
		return fmt.Errorf("roomCodeLength must be at least 4")
	}
	if c.Game.TurnTimeout < 10*time.Second {
		return fmt.Errorf("turnTimeout must be at least 10s")
	}
	if c.Game.ReconnectWindow <= 0 {
		return fmt.Errorf("reconnectWindow must be positive")
	}

	return nil
}
