// Package shell assembles the interpreter, the host program registry
// and the standard streams into runnable sessions, and provides the
// interactive front end used by "embedsh repl" and "embedsh serve".
package shell

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/embedsh/embedsh/commands"
	"github.com/embedsh/embedsh/core/config"
	"github.com/embedsh/embedsh/core/host"
	"github.com/embedsh/embedsh/core/interp"
)

const (
	EnvHome     = "HOME"
	EnvPWD      = "PWD"
	EnvPath     = "PATH"
	EnvPrompt   = "PS1"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"

	DefaultPrompt = `\u@\h:\w\$ `
)

// Session is one configured interpreter instance: an environment, a
// runner and the registry of installed host programs.
type Session struct {
	Config   *config.Config
	Runner   *interp.Runner
	Registry *host.Registry
}

// NewSession builds a session for the given user with all bundled host
// programs installed into a fresh in-memory filesystem.
func NewSession(cfg *config.Config, user string, stdin io.Reader, stdout, stderr io.Writer) (*Session, error) {
	fs := afero.NewMemMapFs()
	registry := host.NewRegistry(fs)
	if err := commands.InstallAll(registry); err != nil {
		return nil, err
	}

	env := interp.NewEnvironment()
	env.Set(EnvPath, cfg.Path)
	env.Set(EnvPrompt, cfg.Prompt)
	env.Set(EnvHostname, cfg.SSH.Hostname)
	env.Set(EnvUser, user)
	if user == "root" {
		env.Set(EnvHome, "/root")
	} else {
		env.Set(EnvHome, fmt.Sprintf("/home/%s", user))
	}
	env.Set(EnvPWD, env.Get(EnvHome))
	for k, v := range cfg.Env {
		env.Set(k, v)
	}

	runner := &interp.Runner{
		Env:          env,
		Stdin:        stdin,
		Stdout:       stdout,
		Stderr:       stderr,
		Spawn:        registry.Spawn,
		FS:           fs,
		MaxCallDepth: cfg.MaxCallDepth,
		PipeDepth:    cfg.PipeDepth,
	}

	return &Session{
		Config:   cfg,
		Runner:   runner,
		Registry: registry,
	}, nil
}

// Run executes a whole script and returns its exit status. Lex and
// parse errors are reported before any execution happens.
func (s *Session) Run(src string) (int, error) {
	return s.Runner.Run(src)
}
