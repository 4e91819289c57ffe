package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	cfg, err := load("", "", []string{"HOME=/home/me"})
	require.NoError(t, err)
	assert.Equal(t, "/home/me/.config/spotify-skill", cfg.CredsDir)
	assert.Equal(t, "/home/me/.config/spotify-skill/skill.db", cfg.DatabasePath)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "US", cfg.Country)
	assert.Equal(t, 5, cfg.MaxCollections)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Players)
}

func TestXDGConfigHome(t *testing.T) {
	cfg, err := load("", "", []string{"HOME=/home/me", "XDG_CONFIG_HOME=/xdg"})
	require.NoError(t, err)
	assert.Equal(t, "/xdg/spotify-skill", cfg.CredsDir)
}

func TestLayering(t *testing.T) {
	file := write(t, "config.toml", `
client_id = "from-file"
client_secret = "file-secret"
players = ["Kitchen", "Living Room"]
store = "sqlite"
`)
	dotenv := write(t, ".env", "SPOTIFY_CLIENT_ID=from-dotenv\nSPOTIFY_COUNTRY=DE\n")

	cfg, err := load(file, dotenv, []string{
		"SPOTIFY_CLIENT_ID=from-env",
		"SPOTIFY_SKILL_CREDS_DIR=/creds",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ClientID)
	assert.Equal(t, "file-secret", cfg.ClientSecret)
	assert.Equal(t, "DE", cfg.Country)
	assert.Equal(t, []string{"Kitchen", "Living Room"}, cfg.Players)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/creds/skill.db", cfg.DatabasePath)
}

func TestPlayersFromEnv(t *testing.T) {
	cfg, err := load("", "", []string{"HOME=/h", "SPOTIFY_PLAYERS=kitchen, office"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "office"}, cfg.Players)
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	_, err := load("", filepath.Join(t.TempDir(), ".env"), []string{"HOME=/h"})
	assert.NoError(t, err)
}

func TestInvalid(t *testing.T) {
	_, err := load("", "", []string{"HOME=/h", "SPOTIFY_SKILL_STORE=redis"})
	assert.Error(t, err)

	_, err = load("", "", []string{"HOME=/h", "SPOTIFY_MAX_COLLECTIONS=many"})
	assert.Error(t, err)

	_, err = load(filepath.Join(t.TempDir(), "missing.toml"), "", nil)
	assert.Error(t, err)

	bad := write(t, "bad.toml", "players = [")
	_, err = load(bad, "", nil)
	assert.Error(t, err)
}
