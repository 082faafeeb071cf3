package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/arcward/hearth/hearth"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfg = hearth.DefaultConfig()
	t.Cleanup(viper.Reset)
}

func assertLogLevel(t testing.TB, expected slog.Level, v *slog.LevelVar) {
	t.Helper()
	require.NotNil(t, v)
	assert.Equal(t, expected, v.Level())
}

func TestConfigFromEnv(t *testing.T) {
	resetConfig(t)

	t.Setenv("HEARTH_DATABASE", "/tmp/hearth-test.sqlite3")
	t.Setenv("HEARTH_DATABASE_TYPE", "sqlite")
	t.Setenv("HEARTH_LOG_LEVEL", "DEBUG")
	t.Setenv("HEARTH_DISCORD_TOKEN", "test-token")
	t.Setenv("HEARTH_DISCORD_APPLICATION_ID", "12345")
	t.Setenv("HEARTH_WORKFLOW_MENU_TIMEOUT", "5m")
	t.Setenv("HEARTH_API_ENABLED", "true")
	t.Setenv("HEARTH_API_LISTEN", "127.0.0.1:9999")

	initConfig()
	rootCmd.PersistentPreRun(rootCmd, nil)

	assert.Equal(t, "/tmp/hearth-test.sqlite3", cfg.Database)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assertLogLevel(t, slog.LevelDebug, cfg.LogLevel)

	require.NotNil(t, cfg.Discord)
	assert.Equal(t, "test-token", cfg.Discord.Token)
	assert.Equal(t, "12345", cfg.Discord.ApplicationID)

	require.NotNil(t, cfg.Workflow)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.MenuTimeout)
	assert.Equal(t, hearth.DefaultConfirmTimeout, cfg.Workflow.ConfirmTimeout)

	require.NotNil(t, cfg.API)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.API.Listen)
}

func TestConfigDefaults(t *testing.T) {
	resetConfig(t)

	initConfig()
	rootCmd.PersistentPreRun(rootCmd, nil)

	assert.Equal(t, hearth.DefaultDatabase, cfg.Database)
	assert.Equal(t, hearth.DefaultDatabaseType, cfg.DatabaseType)
	assertLogLevel(t, hearth.DefaultLogLevel, cfg.LogLevel)
	assertLogLevel(t, hearth.DefaultDatabaseLogLevel, cfg.DatabaseLogLevel)

	require.NotNil(t, cfg.Workflow)
	assert.Equal(t, hearth.DefaultMenuTimeout, cfg.Workflow.MenuTimeout)
	assert.Equal(t, hearth.DefaultApprovalTimeout, cfg.Workflow.ApprovalTimeout)

	require.NotNil(t, cfg.API)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, hearth.DefaultAPIListen, cfg.API.Listen)
}

func TestGetLogLevel(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	} {
		lvl, err := getLogLevel(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, lvl)
	}

	_, err := getLogLevel("bogus")
	assert.Error(t, err)
}
