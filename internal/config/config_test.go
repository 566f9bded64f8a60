package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfig(t *testing.T) {
	// Test loading default config when file doesn't exist
	t.Run("LoadDefaultWhenMissing", func(t *testing.T) {
		setRequiredEnv(t)

		config, err := LoadConfig("nonexistent.yaml")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config == nil {
			t.Fatal("expected default config, got nil")
		}
		if config.Game.MaxSeatsPerRoom != 4 {
			t.Errorf("expected MaxSeatsPerRoom 4, got %d", config.Game.MaxSeatsPerRoom)
		}
		if config.Game.TurnTimeout != 60*time.Second {
			t.Errorf("expected TurnTimeout 60s, got %v", config.Game.TurnTimeout)
		}
		if config.Game.ReconnectWindow != 5*time.Minute {
			t.Errorf("expected ReconnectWindow 5m, got %v", config.Game.ReconnectWindow)
		}
	})

	// Test loading from YAML file
	t.Run("LoadFromYAML", func(t *testing.T) {
		setRequiredEnv(t)

		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yaml")

		yamlContent, err := yaml.Marshal(map[string]interface{}{
			"server": map[string]interface{}{
				"publicBaseUrl": "https://dice.example.com",
			},
			"game": map[string]interface{}{
				"maxSeatsPerRoom":   6,
				"minPlayersToStart": 3,
				"roomCodeLength":    8,
				"turnTimeout":       "45s",
				"reconnectWindow":   "2m",
			},
		})
		if err != nil {
			t.Fatalf("failed to marshal test config: %v", err)
		}
		if err := os.WriteFile(configPath, yamlContent, 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Game.MaxSeatsPerRoom != 6 {
			t.Errorf("expected MaxSeatsPerRoom 6, got %d", config.Game.MaxSeatsPerRoom)
		}
		if config.Game.TurnTimeout != 45*time.Second {
			t.Errorf("expected TurnTimeout 45s, got %v", config.Game.TurnTimeout)
		}
		if config.Game.ReconnectWindow != 2*time.Minute {
			t.Errorf("expected ReconnectWindow 2m, got %v", config.Game.ReconnectWindow)
		}
		if config.Server.PublicBaseURL != "https://dice.example.com" {
			t.Errorf("expected publicBaseUrl from file, got %q", config.Server.PublicBaseURL)
		}
	})

	// Env vars beat the config file
	t.Run("EnvOverridesFile", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "9999")

		config, err := LoadConfig("nonexistent.yaml")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Server.Port != "9999" {
			t.Errorf("expected port 9999, got %s", config.Server.Port)
		}
	})

	t.Run("MissingPortFails", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("HOST", "0.0.0.0")
		t.Setenv("JWT_SECRET", "test-secret")

		if _, err := LoadConfig("nonexistent.yaml"); err == nil {
			t.Fatal("expected error when PORT is unset")
		}
	})

	t.Run("MissingSecretFails", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("HOST", "0.0.0.0")
		t.Setenv("JWT_SECRET", "")

		if _, err := LoadConfig("nonexistent.yaml"); err == nil {
			t.Fatal("expected error when JWT_SECRET is unset")
		}
	})
}

func TestValidate(t *testing.T) {
	base := func() *ServerConfig {
		cfg := DefaultConfig()
		cfg.Server.Port = "8080"
		cfg.Server.Host = "0.0.0.0"
		cfg.Auth.JWTSecret = "s"
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("default config with required fields should validate: %v", err)
	}

	cfg := base()
	cfg.Game.MinPlayersToStart = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when minPlayersToStart exceeds maxSeatsPerRoom")
	}

	cfg = base()
	cfg.Game.TurnTimeout = time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sub-10s turnTimeout")
	}

	cfg = base()
	cfg.Game.RoomCodeLength = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short roomCodeLength")
	}
}
