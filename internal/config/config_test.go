package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8089", cfg.Server.WebSocket.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, 5, cfg.Game.OpeningHandSize)
	assert.Equal(t, 20, cfg.Game.StartingLife)
	assert.Equal(t, 60*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  websocket:
    address: ":9001"
game:
  opening_hand_size: 7
  phase_timeout: 30s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9001", cfg.Server.WebSocket.Address)
	assert.Equal(t, 7, cfg.Game.OpeningHandSize)
	assert.Equal(t, 30*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, 20, cfg.Game.StartingLife)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Game.OpeningHandSize)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero opening hand", "game:\n  opening_hand_size: 0\n"},
		{"opening hand exceeds deck", "game:\n  opening_hand_size: 31\n"},
		{"zero starting life", "game:\n  starting_life: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
