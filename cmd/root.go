package cmd

import (
	"github.com/spf13/cobra"

	"github.com/embedsh/embedsh/core/config"
)

var cfgPath string

// loadConfig reads the --config file, falling back to defaults when no
// path was given.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "embedsh",
	Short: "Embeddable POSIX style shell interpreter",
	Long:  `An embeddable shell interpreter with an in-memory filesystem and bundled core utilities.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config YAML")
}
