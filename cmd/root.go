package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/deployhook/internal/config"
)

var rootFlags struct {
	verbose    bool
	configPath string
}

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "deployhook",
	Short:         "Replace a running container with a freshly pulled image when notified over HTTP",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, rootFlags.configPath)
		if err != nil {
			return err
		}
		if rootFlags.verbose {
			loaded.Log.Level = zerolog.LevelDebugValue
		}
		logger, err := config.NewLogger(loaded.Log, os.Stderr)
		if err != nil {
			return err
		}
		log.Logger = logger
		cfg = loaded
		return nil
	},
	RunE: runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVarP(&rootFlags.configPath, "config", "c", "", "Path to a YAML config file")
	flags.IntP("port", "p", 3009, "Port the webhook listens on")
	flags.Int("status-port", 0, "Port of the deployment status API (0 disables it)")
	flags.String("docker-repo", "", "Registry server address used for pulls (empty for the public default)")
	flags.String("discovery", "docker-machine env default", "Command printing the container engine environment (empty uses DOCKER_* variables)")
	flags.String("log-level", "info", "Log level")
	flags.String("log-format", "console", "Log format: console or json")

	for key, flag := range map[string]string{
		"server.port":      "port",
		"status.port":      "status-port",
		"docker.repo":      "docker-repo",
		"docker.discovery": "discovery",
		"log.level":        "log-level",
		"log.format":       "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd, envCmd, notifyCmd)
}
