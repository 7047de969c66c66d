package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlsrelay/hlsrelay/internal/logging"
)

const (
	defaultConfigPath = "/etc/hlsrelay/"
	envPrefix         = "HLSRELAY"
)

var rootCmd = &cobra.Command{
	Use:     "hlsrelay",
	Short:   "Live stream relay CLI.",
	Long:    `HLS relay that resolves live broadcasts and proxies their playlists and segments.`,
	Version: "1.0.0",
}

var (
	configFile string
	logConfig  = &logging.Config{}
	logs       = logging.New()

	// reloaders run after the config file changed and logging was reapplied
	reloaders []func()
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

func init() {
	cobra.OnInitialize(func() {
		dotenv, err := initConfiguration(configFile)

		logConfig.Set()
		logs.Apply(*logConfig)
		logs.RotateOn(syscall.SIGHUP)

		if err != nil {
			log.Panic().Err(err).Msg("unable to load configuration")
		}
		if dotenv {
			log.Info().Msg("environment seeded from .env")
		}

		file := viper.ConfigFileUsed()
		if file == "" {
			log.Warn().Msg("no config file, using flags and environment")
			return
		}

		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info().Str("op", e.Op.String()).Msg("config file changed")
			reload()
		})
		viper.WatchConfig()

		log.Info().Str("config", file).Msg("watching config file")
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	if err := logConfig.Init(rootCmd); err != nil {
		log.Panic().Err(err).Msg("unable to register log flags")
	}
}

func Execute() error {
	return rootCmd.Execute()
}

// reload reapplies logging first so that reloaders already log at the new level.
func reload() {
	logConfig.Set()
	logs.Apply(*logConfig)

	for _, fn := range reloaders {
		fn()
	}
}

// initConfiguration seeds the environment from an optional .env file, then
// reads the config file and HLSRELAY_* variables into viper. The returned
// bool reports whether a .env file was loaded.
func initConfiguration(file string) (bool, error) {
	dotenv := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf(".env: %w", err)
		}
		dotenv = false
	}

	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("config")
		if runtime.GOOS == "linux" {
			viper.AddConfigPath(defaultConfigPath)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil {
		return dotenv, nil
	}

	// without an explicit file a missing config is fine
	var notFound viper.ConfigFileNotFoundError
	if file == "" && errors.As(err, &notFound) {
		return dotenv, nil
	}
	return dotenv, fmt.Errorf("config file: %w", err)
}
