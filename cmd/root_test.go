package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfiguration(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("dotenv and config file", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()
		chdir(t, dir)
		t.Setenv("HLSRELAY_PUBLIC_URL", "")
		require.NoError(t, os.Unsetenv("HLSRELAY_PUBLIC_URL"))

		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HLSRELAY_PUBLIC_URL=https://relay.example\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o600))

		dotenv, err := initConfiguration("")
		require.NoError(t, err)
		assert.True(t, dotenv)
		assert.Equal(t, "warn", viper.GetString("log.level"))
		assert.Equal(t, "https://relay.example", viper.GetString("public-url"))
		assert.Equal(t, filepath.Join(dir, "config.yaml"), viper.ConfigFileUsed())
	})

	t.Run("nothing to load", func(t *testing.T) {
		viper.Reset()
		chdir(t, t.TempDir())

		dotenv, err := initConfiguration("")
		require.NoError(t, err)
		assert.False(t, dotenv)
	})

	t.Run("explicit file missing", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()
		chdir(t, dir)

		_, err := initConfiguration(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestReloadAppliesLogLevel(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	saved := reloaders
	t.Cleanup(func() {
		viper.Reset()
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
		reloaders = saved
	})

	viper.Reset()
	viper.Set("log.console", false)
	viper.Set("log.level", "info")
	reload()
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	var seen zerolog.Level
	reloaders = []func(){func() { seen = zerolog.GlobalLevel() }}

	viper.Set("log.level", "debug")
	reload()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Equal(t, zerolog.DebugLevel, seen, "reloaders run after logging is reapplied")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(old))
	})
}
