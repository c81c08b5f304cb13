package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/wifiattend/internal/api"
	"github.com/nerrad567/wifiattend/internal/infrastructure/config"
	"github.com/nerrad567/wifiattend/internal/infrastructure/logging"
	"github.com/nerrad567/wifiattend/internal/registry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the wifiattend command tree. Running the root
// command without a subcommand serves the API.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "wifiattend",
		Short:         "Wi-Fi BSSID to facility registry",
		Long:          "Registry mapping Wi-Fi access point BSSIDs to facilities for attendance tracking.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.ConfigPath)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", getConfigPath(), "path to the YAML config file (env WIFIATTEND_CONFIG)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Run the HTTP API and live event feed",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), rootOpts.ConfigPath)
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every BSSID grouped by facility as JSON",
		Long: `Print the registry in the same shape as GET /api/get_bssids.

Unclaimed BSSIDs are listed under the configured api.unclaimed_key.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, svc, closeFn, err := openForCommand(cmd, rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			defer closeFn()

			listing, err := svc.ListAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing registry: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.EncodeListing(listing, cfg.API.UnclaimedKey))
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "reset",
		Short:         "Drop the registry table",
		Long:          "Drop the registry table. The next registration recreates it empty.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, closeFn, err := openForCommand(cmd, rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Reset(cmd.Context()); err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					return errors.New(registry.MsgDatabaseNotFound)
				}
				return fmt.Errorf("resetting registry: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database deleted")
			return nil
		},
	}
}

// openForCommand loads config and opens the registry for a one-shot command.
// Logs go to stderr so they never mix with command output.
func openForCommand(cmd *cobra.Command, configPath string) (*config.Config, *registry.Service, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())

	db, svc, err := openRegistry(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	closeFn := func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}
	return cfg, svc, closeFn, nil
}
