package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/deployhook/internal/machine"
	"github.com/yz4230/deployhook/internal/runtime"
	"github.com/yz4230/deployhook/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server (default command)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Logger
	ctx := logger.WithContext(cmd.Context())

	var ep *machine.Endpoint
	if cfg.Docker.Discovery != "" {
		resolved, err := machine.Resolve(ctx, cfg.Docker.Discovery)
		if err != nil {
			logger.Fatal().Err(err).Str("command", cfg.Docker.Discovery).Msg("failed to resolve container engine endpoint")
		}
		if err := resolved.Export(); err != nil {
			logger.Fatal().Err(err).Msg("failed to export engine settings")
		}
		ep = resolved
	} else {
		logger.Info().Msg("no discovery command, using DOCKER_* environment")
	}

	rt, err := runtime.NewDockerRuntime(ep)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create docker client")
	}
	defer rt.Close()
	if err := rt.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("container engine is not reachable")
	}

	srv := server.New(&server.Config{
		Port:        cfg.Server.Port,
		StatusPort:  cfg.Status.Port,
		Logger:      logger,
		Runtime:     rt,
		Credentials: runtime.NewEnvCredentials(cfg.Docker.UsernameEnv, cfg.Docker.PasswordEnv, cfg.Docker.Repo),
	})
	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, os.Interrupt, syscall.SIGTERM)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := <-chSignal
	logger.Info().Str("signal", sig.String()).Msg("shutting down server...")
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	wg.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
