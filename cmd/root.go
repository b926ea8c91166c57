// Package cmd assembles the recipe-migrate command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tastebase/recipe-migrate/cmd/migrate"
	"github.com/tastebase/recipe-migrate/cmd/validate"
	"github.com/tastebase/recipe-migrate/cmd/verify"
	"github.com/tastebase/recipe-migrate/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var initConfigPath string

	rootCmd := &cobra.Command{
		Use:   "recipe-migrate",
		Short: "Migrate a legacy recipe site into Tastebase",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initConfigPath != "" {
				if err := conf.GenerateConfigFile(initConfigPath); err != nil {
					return err
				}
				fmt.Printf("wrote default configuration to %s\n", initConfigPath)
				return nil
			}
			return cmd.Help()
		},
	}

	setupFlags(rootCmd, settings)
	rootCmd.Flags().StringVar(&initConfigPath, "init-config", "", "Write the default configuration to the given path and exit")

	rootCmd.AddCommand(
		migrate.Command(settings),
		validate.Command(settings),
		verify.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags shared by every subcommand.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVar(&settings.Debug, "debug", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.DataDir, "datadir", viper.GetString("datadir"), "Directory for mapping files, checkpoints and reports")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("error binding global flags: %v", err))
	}
}
