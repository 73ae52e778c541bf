package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/deployhook/internal/entity"
)

var notifyFlags struct {
	url          string
	pkg          string
	version      string
	released     string
	releaseNotes string
	timeout      time.Duration
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a deployment notification to a running deployhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := &entity.DeploymentRequest{
			Package:      notifyFlags.pkg,
			Version:      notifyFlags.version,
			Released:     notifyFlags.released,
			ReleaseNotes: notifyFlags.releaseNotes,
		}
		if err := payload.Validate(); err != nil {
			return fmt.Errorf("--package is required: %w", err)
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, notifyFlags.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		log.Info().Str("url", notifyFlags.url).Str("package", payload.Package).Str("version", payload.Version).Msg("sending deployment notification")
		client := &http.Client{Timeout: notifyFlags.timeout}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("send notification: %w", err)
		}
		defer resp.Body.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("deployment notification failed: %s", resp.Status)
		}
		return nil
	},
}

func init() {
	notifyCmd.Flags().StringVarP(&notifyFlags.url, "url", "u", "http://localhost:3009/", "Webhook URL")
	notifyCmd.Flags().StringVar(&notifyFlags.pkg, "package", "", "Package (image name) to deploy")
	notifyCmd.Flags().StringVar(&notifyFlags.version, "version", "", "Version tag to pull")
	notifyCmd.Flags().StringVar(&notifyFlags.released, "released", "", "Release date, recorded only")
	notifyCmd.Flags().StringVar(&notifyFlags.releaseNotes, "release-notes", "", "Release notes, recorded only")
	notifyCmd.Flags().DurationVar(&notifyFlags.timeout, "timeout", 0, "Request timeout (0 waits for the deployment to finish)")
}
