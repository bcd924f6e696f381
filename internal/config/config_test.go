package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Twin:       TwinConfig{NodeCount: 150, Seed: 12345},
		Simulation: SimulationConfig{TickInterval: 2 * time.Second},
		Risk: RiskConfig{
			PhysicalWeight:      0.30,
			CyberWeight:         0.25,
			OperationalWeight:   0.15,
			EnvironmentalWeight: 0.10,
			CascadingWeight:     0.20,
			PredictionThreshold: 0.5,
			PredictionHorizon:   24 * time.Hour,
		},
		Cascade: CascadeConfig{Decay: 0.7, Floor: 0.05, MaxHops: 6},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero node count", func(c *Config) { c.Twin.NodeCount = 0 }},
		{"negative tick interval", func(c *Config) { c.Simulation.TickInterval = -time.Second }},
		{"weights below one", func(c *Config) { c.Risk.PhysicalWeight = 0.10 }},
		{"weights above one", func(c *Config) { c.Risk.CascadingWeight = 0.50 }},
		{"zero decay", func(c *Config) { c.Cascade.Decay = 0 }},
		{"decay above one", func(c *Config) { c.Cascade.Decay = 1.5 }},
		{"negative floor", func(c *Config) { c.Cascade.Floor = -0.1 }},
		{"floor at one", func(c *Config) { c.Cascade.Floor = 1.0 }},
		{"zero max hops", func(c *Config) { c.Cascade.MaxHops = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "twinguard-lab", cfg.App.Name)
	assert.Equal(t, 150, cfg.Twin.NodeCount)
	assert.Equal(t, int64(12345), cfg.Twin.Seed)
	assert.Equal(t, 2*time.Second, cfg.Simulation.TickInterval)
	assert.True(t, cfg.Simulation.AutoStart)
	assert.Equal(t, 0.5, cfg.Risk.PredictionThreshold)
	assert.Equal(t, 0.7, cfg.Cascade.Decay)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
twin:
  node_count: 42
  seed: 99
simulation:
  tick_interval: 500ms
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Twin.NodeCount)
	assert.Equal(t, int64(99), cfg.Twin.Seed)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulation.TickInterval)
	// Untouched sections keep their defaults
	assert.Equal(t, 0.30, cfg.Risk.PhysicalWeight)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TWINGUARD_TWIN_NODE_COUNT", "77")
	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Twin.NodeCount)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("twin:\n  node_count: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "twin", Password: "secret",
		DBName: "twinguard", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://twin:secret@db:5432/twinguard?sslmode=disable", c.DSN())
}

func TestRedisAddr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", c.Addr())
}
