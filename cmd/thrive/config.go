package thrive

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage thrive local configuration",
	Long:  "Persisted settings override environment variables. Secrets (client secret, Anthropic key) are read from the environment only.",
}

var configFlags = map[string]string{
	"api-base-url":  service.ConfigAPIBaseURL,
	"api-version":   service.ConfigAPIVersion,
	"client-id":     service.ConfigClientID,
	"redirect-uri":  service.ConfigRedirectURI,
	"ai-model":      service.ConfigAIModel,
	"sync-interval": service.ConfigSyncInterval,
}

var configValues = map[string]*string{}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			flags := make([]string, 0, len(configFlags))
			for flag := range configFlags {
				flags = append(flags, flag)
			}
			sort.Strings(flags)
			updates := 0
			for _, flag := range flags {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				if err := service.SetConfig(sqldb, configFlags[flag], *configValues[flag]); err != nil {
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
	Use:   "get",
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
	configCmd.AddCommand(configSetCmd, configGetCmd)

	for flag, key := range configFlags {
		v := new(string)
		configValues[flag] = v
		configSetCmd.Flags().StringVar(v, flag, "", fmt.Sprintf("Value for %s", key))
	}
}
