package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/deployhook/internal/machine"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the container engine settings found by the discovery command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Docker.Discovery == "" {
			return errors.New("no discovery command configured")
		}
		ctx := log.Logger.WithContext(cmd.Context())
		ep, err := machine.Resolve(ctx, cfg.Docker.Discovery)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, key := range ep.Keys() {
			fmt.Fprintf(out, "%s=%s\n", key, ep.Settings[key])
		}
		return nil
	},
}
