package dietbot

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runtime settings stored in the database",
}

var (
	cfgUSDRUBRate      string
	cfgPrimaryProvider string
)

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			updates := 0
			if cmd.Flags().Changed("usd-rub-rate") {
				if err := service.SetConfig(sqldb, service.ConfigUSDRUBRate, cfgUSDRUBRate); err != nil {
					return err
				}
				updates++
			}
			if cmd.Flags().Changed("primary-provider") {
				if err := service.SetConfig(sqldb, service.ConfigPrimaryProvider, cfgPrimaryProvider); err != nil {
					return err
				}
				updates++
			}
			if updates == 0 {
				return fmt.Errorf("set at least one flag")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d config value(s)\n", updates)
			return nil
		})
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			v, ok, err := service.GetConfig(sqldb, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("config key %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			cfg, err := service.ListConfig(sqldb)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(cfg))
			for k := range cfg {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(cmd.OutOrStdout(), "KEY\tVALUE")
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, cfg[k])
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)

	configSetCmd.Flags().StringVar(&cfgUSDRUBRate, "usd-rub-rate", "", "USD to RUB rate used in cost reports")
	configSetCmd.Flags().StringVar(&cfgPrimaryProvider, "primary-provider", "", "Primary nutrition provider: fatsecret or usda")
}
