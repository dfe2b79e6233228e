package commands

import (
	"fmt"

	"amazon-orders/internal/config"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(updateConfigCmd)
}

var updateConfigCmd = &cobra.Command{
	Use:   "update-config <key> <value>",
	Short: "Sets a single setting in the config file, e.g. update-config max_auth_attempts 5.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		err = cfg.Set(args[0], args[1])
		if err != nil {
			return err
		}
		err = cfg.Save(*configPath)
		if err != nil {
			return fmt.Errorf("save %s: %w", *configPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s written to %s\n", args[0], args[1], *configPath)
		return nil
	},
}
