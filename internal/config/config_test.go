package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiznet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7001
  name: "lan-quiz"
  write_timeout: 2s
discovery:
  port: 7000
game:
  last_player_penalty: false
accounts:
  backend: postgres
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "lan-quiz", cfg.Server.Name)
	assert.Equal(t, 2*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 7000, cfg.Discovery.Port)
	assert.False(t, cfg.Game.LastPlayerPenalty)
	assert.Equal(t, "postgres", cfg.Accounts.Backend)

	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, 64, cfg.Server.SendQueueSize)
	assert.Equal(t, "data/questions.dat", cfg.QuestionsFile)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiznet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]string{
		"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR", "bogus": "INFO",
	} {
		cfg := Config{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel().String(), "level %q", level)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.local", Port: 5433, User: "u", Password: "p", DBName: "quiz", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db.local:5433/quiz?sslmode=disable", d.DSN())
}
