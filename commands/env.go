package commands

import (
	"fmt"
	"sort"

	"github.com/embedsh/embedsh/core/host"
)

// Env implements the POSIX env command over the spawn-time environment
// snapshot, which includes any assignment prefixes scoped to the
// invocation.
func Env(p *host.Proc) int {
	cmd := &SimpleCommand{
		Use:   "env",
		Short: "Print the environment of the invocation.",
	}

	return cmd.Run(p, func() int {
		environ := p.Environ()
		sort.Strings(environ)
		for _, envDef := range environ {
			fmt.Fprintln(p.Stdout, envDef)
		}
		return 0
	})
}

var _ host.ProgramFunc = Env

func init() {
	addBinCmd("env", Env)
}
