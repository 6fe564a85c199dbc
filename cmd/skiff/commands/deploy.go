package commands

import (
	"github.com/spf13/cobra"

	"github.com/skiffhq/skiff/cmd/skiff/handlers"
)

// Deploy returns the command that reconciles an environment's stack.
//
// Flags:
//
//	--preview: render the plan and exit without applying
//	--yes:     skip the interactive confirmation (persistent environments)
//	--destroy: tear the stack down instead of applying
//
// Environment variables:
//
//	SKIFF_MASTER_KEY     encryption key for secret-classified config (required)
//	GOOGLE_CLOUD_PROJECT GCP project for the Cloud Run adapter
//	RAILWAY_TOKEN        Railway API token
//	RAILWAY_PROJECT_ID   Railway project id
//	MODAL_TOKEN_ID       Modal token id
//	MODAL_TOKEN_SECRET   Modal token secret
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy <environment>",
		Short: "Create or update an environment's stack",
		Long: `Create or update the resource stack for an environment.

Resolves the environment's configuration, builds the dependency-ordered
resource plan, propagates secrets, and applies the plan across the
enabled providers.

Examples:
  # Preview what would change in production
  skiff deploy production --preview

  # Apply after reviewing the plan
  skiff deploy production --yes

  # Deploy a pull-request environment (auto-confirmed)
  skiff deploy pr-42

  # Tear an environment down
  skiff deploy pr-42 --destroy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Environment = args[0]
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Show the plan without applying it")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Skip the interactive confirmation")
	cmd.Flags().BoolVar(&opts.Destroy, "destroy", false, "Destroy the stack instead of applying")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to environments file (default: skiff.yaml)")

	return cmd
}
