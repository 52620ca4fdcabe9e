package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/embedsh/embedsh/core/shell"
)

var runCommand string

// runCmd executes a script file or a -c command line.
var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Run a script file or a -c command string.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		var src string
		switch {
		case runCommand != "" && len(args) > 0:
			return fmt.Errorf("cannot combine -c with a script file")
		case runCommand != "":
			src = runCommand
		case len(args) == 1:
			contents, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			src = string(contents)
		default:
			return fmt.Errorf("requires a script file or -c")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		session, err := shell.NewSession(cfg, "root", cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		status, err := session.Run(src)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "embedsh: %v\n", err)
			status = 2
		}
		if status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runCommand, "command", "c", "", "command string to execute")
	rootCmd.AddCommand(runCmd)
}
