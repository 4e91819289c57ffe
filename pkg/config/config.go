// Package config loads the skill settings. Values come from an optional TOML
// file, then from a .env file and finally from the process environment, each
// layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Token stores.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds every setting of the skill.
type Config struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURL  string `toml:"redirect_url" env:"SPOTIFY_REDIRECT_URL"`

	// CredsDir holds the token file and, by default, the database.
	CredsDir     string `toml:"creds_dir" env:"SPOTIFY_SKILL_CREDS_DIR"`
	DatabasePath string `toml:"database_path" env:"DATABASE_PATH"`
	Store        string `toml:"store" env:"SPOTIFY_SKILL_STORE"`

	// Players lists the Spotify Connect devices the assistant plays on.
	Players        []string `toml:"players" env:"SPOTIFY_PLAYERS" envSeparator:","`
	SkillID        string   `toml:"skill_id" env:"SPOTIFY_SKILL_ID"`
	SkillIcon      string   `toml:"skill_icon" env:"SPOTIFY_SKILL_ICON"`
	Country        string   `toml:"country" env:"SPOTIFY_COUNTRY"`
	MaxCollections int      `toml:"max_collections" env:"SPOTIFY_MAX_COLLECTIONS"`

	Addr      string `toml:"addr" env:"ADDR"`
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"LOG_FORMAT"`
}

// DirName is the directory created under the user's config directory.
const DirName = "spotify-skill"

// Load reads the TOML file at path, when path is not empty, and the .env file
// of the working directory, when present, then applies the environment.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.Environ())
}

func load(path, dotenv string, environ []string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	vars := map[string]string{}
	if dotenv != "" {
		m, err := godotenv.Read(dotenv)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.defaults(vars)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults(vars map[string]string) {
	if c.CredsDir == "" {
		c.CredsDir = defaultCredsDir(vars)
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.CredsDir, "skill.db")
	}
	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.Country == "" {
		c.Country = "US"
	}
	if c.MaxCollections == 0 {
		c.MaxCollections = 5
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	for i, p := range c.Players {
		c.Players[i] = strings.TrimSpace(p)
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unknown token store %q", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.MaxCollections < 0 {
		return errors.New("max_collections must not be negative")
	}
	return nil
}

// defaultCredsDir follows the XDG base directory layout.
func defaultCredsDir(vars map[string]string) string {
	if x := vars["XDG_CONFIG_HOME"]; x != "" {
		return filepath.Join(x, DirName)
	}
	home := vars["HOME"]
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".config", DirName)
}
