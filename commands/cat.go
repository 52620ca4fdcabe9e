package commands

import (
	"fmt"
	"io"

	"github.com/embedsh/embedsh/core/host"
)

// Cat implements a limited cat command reading from the virtual
// filesystem, or stdin when no files are given.
func Cat(p *host.Proc) int {
	cmd := &SimpleCommand{
		Use:   "cat [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	return cmd.Run(p, func() int {
		args := cmd.Flags().Args()

		if len(args) == 0 {
			if _, err := io.Copy(p.Stdout, p.Stdin); err != nil {
				fmt.Fprintf(p.Stderr, "cat: %v\n", err)
				return 1
			}
			return 0
		}

		for _, arg := range args {
			fd, err := p.FS.Open(arg)
			if err != nil {
				fmt.Fprintf(p.Stderr, "cat: %v\n", err)
				return 1
			}
			_, err = io.Copy(p.Stdout, fd)
			fd.Close()
			if err != nil {
				fmt.Fprintf(p.Stderr, "cat: %v\n", err)
				return 1
			}
		}
		return 0
	})
}

var _ host.ProgramFunc = Cat

func init() {
	addBinCmd("cat", Cat)
}
