package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hlsrelay/hlsrelay/internal/serve"
)

func init() {
	service := serve.NewCommand()

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve live stream relay",
		Long:  `serve live stream relay`,
		Run:   service.Run,
	}

	configs := []Config{
		service.Config,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		service.Preflight()
	})

	reloaders = append(reloaders, service.ConfigReload)

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
