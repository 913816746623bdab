package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Game.DiscussionTicks)
	assert.Equal(t, 0.4, cfg.Bot.NominateChance)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  http_address: \":9000\"\ngame:\n  night_ticks: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("GAME_VOTE_GRACE_TICKS", "11")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, 7, cfg.Game.NightTicks)
	assert.Equal(t, 11, cfg.Game.VoteGraceTicks)
}
