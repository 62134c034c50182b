package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("FIRMAMENT_TEST_KEY", "sk-real")
	path := writeConfig(t, `{
		"database": {"postgres": {"dsn": "${FIRMAMENT_TEST_DSN:postgres://localhost/firmament}"}},
		"providers": [{"id": "main", "type": "anthropic", "api_key": "${FIRMAMENT_TEST_KEY}"}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-real" {
		t.Errorf("expected env value, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.Database.Postgres.DSN != "postgres://localhost/firmament" {
		t.Errorf("expected default DSN, got %q", cfg.Database.Postgres.DSN)
	}
}

func TestLoadEngineTunables(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"postgres": {"dsn": "x"}},
		"providers": [{"id": "a", "type": "openai"}],
		"engine": {
			"haste_nudge_seconds": 7,
			"rate_window_seconds": 90,
			"ambient_cooldown_minutes": 20,
			"ambient_energy_floor": 0.3,
			"eavesdrop_cooldown_minutes": 60,
			"mood_idle_recovery_per_hour": 0.1,
			"mood_busy_threshold": 15
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ec := cfg.Engine
	if ec.HasteNudgeSeconds != 7 || ec.RateWindowSeconds != 90 {
		t.Errorf("rate tunables not parsed: %+v", ec)
	}
	if ec.AmbientCooldownMinutes != 20 || ec.AmbientEnergyFloor != 0.3 || ec.EavesdropCooldownMinutes != 60 {
		t.Errorf("gate tunables not parsed: %+v", ec)
	}
	if ec.MoodIdleRecoveryPerHour != 0.1 || ec.MoodBusyThreshold != 15 {
		t.Errorf("mood tunables not parsed: %+v", ec)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing dsn", `{"providers": [{"id": "a", "type": "openai"}]}`},
		{"no providers", `{"database": {"postgres": {"dsn": "x"}}}`},
		{"bad provider type", `{"database": {"postgres": {"dsn": "x"}}, "providers": [{"id": "a", "type": "llama"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
