package serve

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/internal/server"
	"github.com/hlsrelay/hlsrelay/modules"
	"github.com/hlsrelay/hlsrelay/modules/hlsproxy"
	"github.com/hlsrelay/hlsrelay/modules/player"
)

func NewCommand() *Main {
	return &Main{
		Config: &Config{},
	}
}

type Main struct {
	Config *Config

	logger   zerolog.Logger
	metrics  *metrics.Metrics
	server   *server.ServerManagerCtx
	hlsProxy *hlsproxy.ModuleCtx
	player   *player.ModuleCtx
	modules  []modules.Module
}

func (main *Main) mount(pattern string, module modules.Module) {
	main.server.Handle(pattern, module)
	main.modules = append(main.modules, module)
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) start() error {
	config := main.Config

	main.metrics = metrics.New()
	main.server = server.New(&config.Server)

	if config.Server.Metrics {
		main.server.Handle("/metrics", main.metrics.Handler())
		main.logger.Info().Msg("with metrics endpoint at /metrics")
	}

	hlsProxy, err := hlsproxy.New("/", config.Relay(), main.metrics)
	if err != nil {
		return err
	}
	main.hlsProxy = hlsProxy
	main.server.Handle("/api", http.HandlerFunc(main.hlsProxy.ServeAPI))
	main.mount("/*", main.hlsProxy)
	main.logger.Info().
		Str("upstream", config.BaseURL).
		Strs("strategies", config.Strategies).
		Str("public-url", config.PublicURL).
		Msg("hlsProxy registered")

	main.player = player.New("/player/", config.Player())
	main.mount("/player/*", main.player)
	main.logger.Info().Msg("player registered")

	main.server.Start()
	return nil
}

func (main *Main) shutdown() {
	err := main.server.Shutdown()
	main.logger.Err(err).Msg("http manager shutdown")

	for _, module := range main.modules {
		module.Shutdown()
	}
	main.logger.Info().Int("modules", len(main.modules)).Msg("modules shutdown")
}

// ConfigReload applies a changed configuration file to running modules.
func (main *Main) ConfigReload() {
	// not started yet
	if main.hlsProxy == nil {
		return
	}

	main.Config.Set()

	if err := main.hlsProxy.ConfigReload(main.Config.Relay()); err != nil {
		main.logger.Err(err).Msg("unable to reload relay config, keeping the previous one")
		return
	}

	main.player.ConfigReload(main.Config.Player())
	main.logger.Info().Msg("config reloaded")
}

func (main *Main) Run(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	if err := main.start(); err != nil {
		main.logger.Fatal().Err(err).Msg("unable to start")
	}
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.shutdown()
	main.logger.Info().Msg("shutdown complete")
}
