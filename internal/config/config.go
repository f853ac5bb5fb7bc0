// Package config loads the quiz server configuration from an optional
// YAML file layered over built-in defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds the TCP game transport configuration.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Identity advertised over UDP discovery.
	Name string `yaml:"name"`

	// Write queue / timeouts
	WriteTimeout  time.Duration `yaml:"write_timeout"`   // per-write deadline (default: 5s)
	SendQueueSize int           `yaml:"send_queue_size"` // per-client outbox capacity (default: 64)
}

// Discovery holds the UDP discovery responder configuration.
type Discovery struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// Game holds tunable game rules.
type Game struct {
	// LastPlayerPenalty keeps the battle rule that the slowest correct
	// answerer of a round loses one extra life.
	LastPlayerPenalty bool `yaml:"last_player_penalty"`
}

// Accounts selects and configures the credential store backend.
type Accounts struct {
	Backend  string         `yaml:"backend"` // "file" or "postgres"
	File     string         `yaml:"file"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Config holds all configuration for the quiz server.
type Config struct {
	Server    Server    `yaml:"server"`
	Discovery Discovery `yaml:"discovery"`
	Game      Game      `yaml:"game"`
	Accounts  Accounts  `yaml:"accounts"`

	QuestionsFile string `yaml:"questions_file"`

	// MetricsAddr enables the Prometheus endpoint when non-empty,
	// e.g. "127.0.0.1:9090".
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		Server: Server{
			BindAddress:   "0.0.0.0",
			Port:          5556,
			Name:          "QuizNet",
			WriteTimeout:  5 * time.Second,
			SendQueueSize: 64,
		},
		Discovery: Discovery{
			BindAddress: "0.0.0.0",
			Port:        5555,
		},
		Game: Game{
			LastPlayerPenalty: true,
		},
		Accounts: Accounts{
			Backend: "file",
			File:    "data/accounts.dat",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "quiznet",
				Password: "quiznet",
				DBName:   "quiznet",
				SSLMode:  "disable",
			},
		},
		QuestionsFile: "data/questions.dat",
		LogLevel:      "info",
	}
}

// Load loads config from a YAML file layered over Default.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SlogLevel maps the configured log level onto a slog.Level, defaulting
// to info for unknown values.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
