package commands

import (
	"github.com/spf13/cobra"

	"github.com/skiffhq/skiff/cmd/skiff/handlers"
)

// Webhook returns the command that serves the PR-event webhook.
//
// The daemon maps GitHub pull-request events onto stack operations:
// opened and synchronize apply the pr-<n> stack, closed destroys it.
func Webhook() *cobra.Command {
	var addr string
	var configPath string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Serve the pull-request lifecycle webhook",
		Long: `Serve the webhook that keeps pull-request environments in sync.

Endpoints:
  POST /hooks/github  pull-request events
  GET  /healthz       liveness probe
  GET  /metrics       prometheus metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ServeWebhook(cmd.Context(), addr, configPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environments file (default: skiff.yaml)")

	return cmd
}
