package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("CASHBOARD_TEST_DIR", "/data")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde prefix", in: "~/db/cashboard.db", want: filepath.Join(home, "db", "cashboard.db")},
		{name: "bare tilde", in: "~", want: home},
		{name: "env var", in: "$CASHBOARD_TEST_DIR/cashboard.db", want: "/data/cashboard.db"},
		{name: "plain path untouched", in: "/var/lib/cashboard.db", want: "/var/lib/cashboard.db"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local", "share", "cashboard", "cashboard.db"), settings.DatabasePath)
	assert.Equal(t, DefaultTimezone, settings.Timezone)
	assert.Equal(t, ":8080", settings.ServerAddr)
	assert.Empty(t, settings.OutputDir)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("database.path", "~/custom.db")
	viper.Set("ingest.timezone", "UTC")
	viper.Set("ingest.output_dir", "/exports")
	viper.Set("server.addr", ":9090")

	settings, err := Load()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "custom.db"), settings.DatabasePath)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, "/exports", settings.OutputDir)
	assert.Equal(t, ":9090", settings.ServerAddr)
}
