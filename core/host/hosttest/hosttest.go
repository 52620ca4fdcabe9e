// Package hosttest runs in-process programs against a deterministic
// environment for testing.
package hosttest

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"

	"github.com/spf13/afero"

	"github.com/embedsh/embedsh/core/host"
)

// DefaultEnviron is the deterministic environment handed to programs
// when Cmd.Env is nil.
var DefaultEnviron = []string{
	"HOME=/root",
	"HOSTNAME=testhost",
	"PATH=/usr/bin:/bin",
	"PWD=/root",
	"USER=root",
}

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Program is the function under test.
	Program host.ProgramFunc
	// Argv holds the process arguments, the first should be the
	// process name.
	Argv []string
	// Env gives the environment in KEY=value form. When nil
	// DefaultEnviron is used.
	Env []string

	// FS backs the program's file operations. When nil a fresh
	// in-memory filesystem is used.
	FS afero.Fs

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int
}

func Command(program host.ProgramFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Program: program,
		Argv:    append([]string{name}, arg...),
	}
}

// CombinedOutput runs the program and returns its interleaved stdout
// and stderr.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	if err := c.Run(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the program and waits for it to complete.
func (c *Cmd) Run() error {
	if c.FS == nil {
		c.FS = afero.NewMemMapFs()
	}
	env := c.Env
	if env == nil {
		env = DefaultEnviron
	}

	stdin := c.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	stdout := c.Stdout
	if stdout == nil {
		stdout = ioutil.Discard
	}
	stderr := c.Stderr
	if stderr == nil {
		stderr = ioutil.Discard
	}

	proc := host.NewProc(c.Argv, c.FS, host.IO{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, env)

	c.ExitStatus = c.Program(proc)
	return nil
}
