package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/embedsh/embedsh/core/shell"
)

// replCmd runs an interactive shell on the local terminal.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run an interactive shell on the local terminal.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		session, err := shell.NewSession(cfg, "root", os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}

		interactive, err := shell.NewShell(session, shell.Options{
			IsTerminal: true,
		})
		if err != nil {
			return err
		}
		defer interactive.Close()

		if status := interactive.Run(); status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
