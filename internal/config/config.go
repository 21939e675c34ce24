// Package config resolves application settings from viper with sensible
// defaults, and provides path expansion for user-supplied locations.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultTimezone is the reference timezone used for date normalization
// when none is configured.
const DefaultTimezone = "Asia/Jerusalem"

// Settings holds the resolved runtime configuration.
type Settings struct {
	DatabasePath string
	Timezone     string
	OutputDir    string
	ServerAddr   string
}

// Load reads settings from viper, filling in defaults for anything unset.
// The database path defaults to the per-user data directory.
func Load() (*Settings, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, ".local", "share", "cashboard", "cashboard.db")
	} else {
		dbPath = ExpandPath(dbPath)
	}

	timezone := viper.GetString("ingest.timezone")
	if timezone == "" {
		timezone = DefaultTimezone
	}

	addr := viper.GetString("server.addr")
	if addr == "" {
		addr = ":8080"
	}

	return &Settings{
		DatabasePath: dbPath,
		Timezone:     timezone,
		OutputDir:    ExpandPath(viper.GetString("ingest.output_dir")),
		ServerAddr:   addr,
	}, nil
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// First expand tilde if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// Then expand environment variables
	return os.ExpandEnv(path)
}
