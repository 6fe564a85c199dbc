package commands

import (
	"github.com/spf13/cobra"

	"github.com/skiffhq/skiff/cmd/skiff/handlers"
)

// Config returns the parent command for configuration management.
func Config() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage per-environment configuration",
	}
	cmd.AddCommand(configSet())
	cmd.AddCommand(configGet())
	cmd.AddCommand(configList())
	return cmd
}

// configSet writes one configuration key. The value is read from the
// SKIFF_VALUE environment variable or stdin, never from a positional
// argument, so secret values cannot leak into the process list.
func configSet() *cobra.Command {
	var secret bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "set <environment> <key>",
		Short: "Set a configuration value",
		Long: `Set a configuration value for an environment.

The value is read from the SKIFF_VALUE environment variable, or from
stdin when SKIFF_VALUE is unset. Values are never accepted as command
arguments.

Examples:
  # Plain value
  SKIFF_VALUE=2 skiff config set production replicas

  # Secret value from stdin
  echo -n "postgres://..." | skiff config set production databaseUrl --secret`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ConfigSet(handlers.ConfigSetOptions{
				ConfigPath:  configPath,
				Environment: args[0],
				Key:         args[1],
				Secret:      secret,
				Stdin:       cmd.InOrStdin(),
			})
		},
	}

	cmd.Flags().BoolVar(&secret, "secret", false, "Classify the value as secret (encrypted at rest)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environments file (default: skiff.yaml)")

	return cmd
}

func configGet() *cobra.Command {
	var reveal bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "get <environment> <key>",
		Short: "Read a configuration value",
		Long: `Read one resolved configuration value.

Secret-classified values are masked unless --reveal is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ConfigGet(handlers.ConfigGetOptions{
				ConfigPath:  configPath,
				Environment: args[0],
				Key:         args[1],
				Reveal:      reveal,
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values in plaintext")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environments file (default: skiff.yaml)")

	return cmd
}

func configList() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <environment>",
		Short: "List an environment's overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ConfigList(handlers.ConfigListOptions{
				ConfigPath:  configPath,
				Environment: args[0],
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to environments file (default: skiff.yaml)")

	return cmd
}
