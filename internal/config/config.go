package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Routing   RoutingConfig    `json:"routing"`
	Gateway   GatewayConfig    `json:"gateway"`
	Database  DatabaseConfig   `json:"database"`
	Knowledge KnowledgeConfig  `json:"knowledge"`
	Engine    EngineConfig     `json:"engine"`
	Loops     LoopsConfig      `json:"loops"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// RoutingConfig names the primary provider and its fallback chain.
type RoutingConfig struct {
	Default   string   `json:"default"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

type GatewayConfig struct {
	Discord DiscordGatewayConfig `json:"discord"`
	Slack   SlackGatewayConfig   `json:"slack"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type SlackGatewayConfig struct {
	Enabled         bool     `json:"enabled"`
	BotToken        string   `json:"bot_token"`
	AppToken        string   `json:"app_token"`
	AmbientChannels []string `json:"ambient_channels,omitempty"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir"`
}

// KnowledgeConfig points at the identity kernel directory.
type KnowledgeConfig struct {
	Dir string `json:"dir"`
}

// EngineConfig carries behavioral tunables. Zero values fall back to the
// engine's production defaults, so a minimal config stays minimal.
type EngineConfig struct {
	Model string `json:"model"`

	InteractTemperature float64 `json:"interact_temperature,omitempty"`
	InteractMaxTokens   int     `json:"interact_max_tokens,omitempty"`
	AmbientTemperature  float64 `json:"ambient_temperature,omitempty"`
	AmbientMaxTokens    int     `json:"ambient_max_tokens,omitempty"`
	EavesdropMaxTokens  int     `json:"eavesdrop_max_tokens,omitempty"`

	CompactIntervalSeconds int `json:"compact_interval_seconds,omitempty"`
	MaxActiveEpisodes      int `json:"max_active_episodes,omitempty"`

	EavesdropThreshold int `json:"eavesdrop_threshold,omitempty"`
	AmbientMessageCap  int `json:"ambient_message_cap,omitempty"`
	HasteNudgeSeconds  int `json:"haste_nudge_seconds,omitempty"`

	RateCooldownSeconds int `json:"rate_cooldown_seconds,omitempty"`
	RateBurst           int `json:"rate_burst,omitempty"`
	RateWindowSeconds   int `json:"rate_window_seconds,omitempty"`

	AmbientBaseChance        float64 `json:"ambient_base_chance,omitempty"`
	AmbientCooldownMinutes   int     `json:"ambient_cooldown_minutes,omitempty"`
	AmbientEnergyFloor       float64 `json:"ambient_energy_floor,omitempty"`
	EavesdropChance          float64 `json:"eavesdrop_chance,omitempty"`
	EavesdropCooldownMinutes int     `json:"eavesdrop_cooldown_minutes,omitempty"`

	MoodIdleRecoveryPerHour float64 `json:"mood_idle_recovery_per_hour,omitempty"`
	MoodBusyThreshold       int     `json:"mood_busy_threshold,omitempty"`
	MoodBusyDecay           float64 `json:"mood_busy_decay,omitempty"`
	MoodEnergyFloor         float64 `json:"mood_energy_floor,omitempty"`

	DecayRatePerDay     float64 `json:"decay_rate_per_day,omitempty"`
	DecayMinConfidence  float64 `json:"decay_min_confidence,omitempty"`
	DecayAgeHours       int     `json:"decay_age_hours,omitempty"`
	DecayProtectedCount int     `json:"decay_protected_count,omitempty"`
}

type LoopsConfig struct {
	AmbientIntervalMinutes     int `json:"ambient_interval_minutes,omitempty"`
	DriftIntervalMinutes       int `json:"drift_interval_minutes,omitempty"`
	MaintenanceIntervalMinutes int `json:"maintenance_interval_minutes,omitempty"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Postgres.DSN == "" {
		return fmt.Errorf("database.postgres.dsn is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		if p.Type != "openai" && p.Type != "anthropic" {
			return fmt.Errorf("providers[%d]: unknown type %q", i, p.Type)
		}
	}
	return nil
}
