// Package commands provides the in-process external programs shipped
// with embedsh. Each program registers itself under /bin and /usr/bin
// and is reached through the host spawn boundary, never called by the
// interpreter directly.
package commands

import (
	"fmt"
	"io"
	"path"
	"sort"

	getopt "github.com/pborman/getopt/v2"

	"github.com/embedsh/embedsh/core/host"
)

// AllCommands holds every registered program keyed by install path.
var AllCommands = make(map[string]host.ProgramFunc)

// addBinCmd registers a command under /bin and /usr/bin.
func addBinCmd(name string, prog host.ProgramFunc) {
	AllCommands[path.Join("/bin", name)] = prog
	AllCommands[path.Join("/usr/bin", name)] = prog
}

// InstallAll installs every registered program into the registry's
// filesystem so PATH lookup can resolve them.
func InstallAll(reg *host.Registry) error {
	paths := make([]string, 0, len(AllCommands))
	for p := range AllCommands {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := reg.Install(p, AllCommands[p]); err != nil {
			return err
		}
	}
	return nil
}

// SimpleCommand handles the shared argument plumbing of a program.
type SimpleCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}
	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses flags and, on success, calls the callback.
func (s *SimpleCommand) Run(p *host.Proc, callback func() int) int {
	opts := s.Flags()
	showHelp := opts.BoolLong("help", 'h', "show this help and exit")

	if err := opts.Getopt(p.Args, nil); err != nil {
		fmt.Fprintf(p.Stderr, "error: %s\n\n", err)
		s.PrintHelp(p.Stderr)
		return 1
	}

	if *showHelp {
		s.PrintHelp(p.Stdout)
		return 0
	}

	return callback()
}
