package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using Viper
// Priority order: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set config file details
	v.SetConfigName("server")
	v.SetConfigType("yaml")

	// Add config paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dicehall")
	}

	// Enable environment variable binding
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables
	// These allow both DICEHALL_SERVER_PORT and PORT to work
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.loglevel", "LOG_LEVEL")
	v.BindEnv("server.logformat", "LOG_FORMAT")
	v.BindEnv("server.ratelimit", "RATE_LIMIT")
	v.BindEnv("server.ratelimitburst", "RATE_LIMIT_BURST")
	v.BindEnv("server.maxmessagesize", "MAX_MESSAGE_SIZE")
	v.BindEnv("server.sendbuffersize", "SEND_BUFFER_SIZE")
	v.BindEnv("server.maxwsconnections", "MAX_WS_CONNECTIONS")
	v.BindEnv("server.maxattachmentsize", "MAX_ATTACHMENT_SIZE")
	v.BindEnv("server.publicbaseurl", "PUBLIC_BASE_URL")
	v.BindEnv("auth.jwtsecret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")

	// Server timeout defaults
	v.SetDefault("server.readtimeout", "15s")
	v.SetDefault("server.writetimeout", "15s")
	v.SetDefault("server.idletimeout", "0s") // 0 for long-lived websockets
	v.SetDefault("server.shutdowntimeout", "30s")

	// Rate limiting defaults
	v.SetDefault("server.ratelimit", 10.0)
	v.SetDefault("server.ratelimitburst", 20)

	// Websocket limits
	v.SetDefault("server.maxmessagesize", 4096)
	v.SetDefault("server.sendbuffersize", 64)
	v.SetDefault("server.maxwsconnections", 1000)
	v.SetDefault("server.maxattachmentsize", 2048)

	// Monitoring defaults
	v.SetDefault("server.loglevel", "info")
	v.SetDefault("server.logformat", "text")

	// Game defaults
	v.SetDefault("game.maxseatsperroom", 4)
	v.SetDefault("game.minplayerstostart", 2)
	v.SetDefault("game.roomcodelength", 6)
	v.SetDefault("game.turntimeout", "60s")
	v.SetDefault("game.startcountdown", "3s")
	v.SetDefault("game.reconnectwindow", "5m")
	v.SetDefault("game.roomidletimeout", "30m")
	v.SetDefault("game.directoryttl", "90s")

	// Try to read config file (it's optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if strings.Contains(err.Error(), "no such file or directory") {
				// File doesn't exist, continue with defaults
			} else {
				// Config file was found but another error occurred
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
		// Config file not found; continue with env vars and defaults
	}

	// Create config struct
	cfg := &ServerConfig{}

	// Unmarshal into the struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate required fields
	if v.GetString("server.port") == "" {
		return nil, fmt.Errorf("PORT environment variable must be set")
	}
	if v.GetString("server.host") == "" {
		return nil, fmt.Errorf("HOST environment variable must be set")
	}

	// Additional validation
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
