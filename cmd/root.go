package cmd

import (
	"os"

	"github.com/emrgen/docgen/internal/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docgen",
	Short: "document generation service",
	Example: `docgen serve
docgen db migrate
docgen lifecycle run --phase archive
docgen template list --category order --active
docgen template versions -t <template-id>
docgen template restore -t <template-id> -v <version-id>
docgen health --addr localhost:4000`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(lifecycleCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(healthCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.SetupLogging()

	return cfg, nil
}
