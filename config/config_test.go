package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.Game.MaxPlayers)
	assert.Equal(t, 1, cfg.Game.Changelings)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Server.Heartbeat)
	assert.True(t, cfg.Game.Actions.Burn.EndsTurn)
	assert.False(t, cfg.Game.Actions.Convert.EndsTurn)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log_level: debug
store:
  backend: redis
game:
  max_players: 4
  actions:
    convert:
      ends_turn: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("SERVER_HTTP_ADDRESS", ":9000")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/2", cfg.Store.Redis.URL)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.True(t, cfg.Game.Actions.Convert.EndsTurn)
	assert.True(t, cfg.Game.Actions.Convert.RequiresTurnOwner)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no players":     func(c *Config) { c.Game.MaxPlayers = 0 },
		"no changelings": func(c *Config) { c.Game.Changelings = 0 },
		"short ids":      func(c *Config) { c.Game.RoomIDLength = 2 },
		"bad backend":    func(c *Config) { c.Store.Backend = "etcd" },
		"bad driver": func(c *Config) {
			c.Database.Enabled = true
			c.Database.Driver = "mysql"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
