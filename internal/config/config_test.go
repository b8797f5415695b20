package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Intake.CallDelay)
	assert.Equal(t, []string{"community", "social"}, cfg.Intake.DecisionTargets)
	assert.False(t, cfg.UseSupabaseReviews())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ivor.yaml")
	yaml := `
mode: worker
port: 9090
intake:
  callDelay: 250ms
  keywords: [liberation, mutual aid]
sweeper:
  interval: 10s
events:
  store: sqlite
  sqlitePath: /tmp/events.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv("PORT", "7070")
	t.Setenv("INTAKE_DECISION_TARGETS", "community, organizing ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeWorker, cfg.Mode)
	assert.Equal(t, 7070, cfg.Port, "env wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.Intake.CallDelay)
	assert.Equal(t, []string{"liberation", "mutual aid"}, cfg.Intake.Keywords)
	assert.Equal(t, []string{"community", "organizing"}, cfg.Intake.DecisionTargets)
	assert.Equal(t, 10*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, time.Minute, cfg.Sweeper.StaleAfter, "unset file keys keep defaults")
	assert.Equal(t, EventStoreSQLite, cfg.Events.Store)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_LegacyBaseEnvNames(t *testing.T) {
	t.Setenv("BLKOUT_API_BASE", "https://old.example.org/api")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://old.example.org/api", cfg.Legacy.APIBase)

	t.Setenv("LEGACY_API_BASE", "https://new.example.org/api")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.org/api", cfg.Legacy.APIBase)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "batch" }},
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"unknown store", func(c *Config) { c.Events.Store = "mongo" }},
		{"sqlite without path", func(c *Config) { c.Events.Store = EventStoreSQLite; c.Events.SQLitePath = "" }},
		{"zero dimensions", func(c *Config) { c.AI.Dimensions = 0 }},
		{"negative delay", func(c *Config) { c.Intake.CallDelay = -time.Second }},
		{"half supabase", func(c *Config) { c.Review.SupabaseURL = "https://x.supabase.co" }},
		{"zero sweep batch", func(c *Config) { c.Sweeper.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Worker.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
