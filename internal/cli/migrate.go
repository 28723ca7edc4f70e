package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand applies the embedded schema for the configured driver.
func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(root.ConfigPath, environ(root))
			if err != nil {
				return err
			}
			client, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
			return err
		},
	}
}

func environ(root *RootOptions) []string {
	if root == nil || root.Environ == nil {
		return nil
	}
	return root.Environ()
}
