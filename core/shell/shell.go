package shell

import (
	"io"
	"log"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
)

var errColor = color.New(color.FgRed)

// Options configures an interactive shell's terminal handling.
type Options struct {
	// Width reports the terminal width for line editing. Defaults to a
	// constant 80 columns.
	Width func() int

	// IsTerminal enables prompts and line editing.
	IsTerminal bool
}

// Shell is an interactive front end over a Session: it reads lines with
// readline, renders the $PS1 prompt and feeds completed lines to the
// interpreter.
type Shell struct {
	Session  *Session
	Readline *readline.Instance

	lastStatus int
}

// NewShell wraps a session in a readline-driven interactive loop using
// the session's standard streams.
func NewShell(session *Session, opts Options) (*Shell, error) {
	width := opts.Width
	if width == nil {
		width = func() int { return 80 }
	}

	cfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(session.Runner.Stdin),
		Stdout:       session.Runner.Stdout,
		Stderr:       session.Runner.Stderr,
		FuncGetWidth: width,
		FuncIsTerminal: func() bool {
			return opts.IsTerminal
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &Shell{
		Session:  session,
		Readline: rl,
	}, nil
}

// prompt renders $PS1 with the \u, \h, \w and \$ escapes.
func (s *Shell) prompt() string {
	env := s.Session.Runner.Env

	prompt := env.Get(EnvPrompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	prompt = strings.ReplaceAll(prompt, `\u`, env.Get(EnvUser))
	prompt = strings.ReplaceAll(prompt, `\h`, env.Get(EnvHostname))

	pwd := env.Get(EnvPWD)
	if home := env.Get(EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if env.Get(EnvUser) == "root" {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// Run reads and executes lines until input closes or a script calls
// "exit", and returns the session's final status.
func (s *Shell) Run() int {
	for {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return s.lastStatus

		case err == readline.ErrInterrupt:
			// Interrupt clears the line.
			continue

		case err != nil:
			log.Printf("Error readline: %v", err)
			continue

		case len(strings.TrimSpace(line)) == 0:
			continue

		default:
			status, exited, err := s.Session.Runner.RunLine(line)
			if err != nil {
				errColor.Fprintf(s.Readline, "embedsh: %v\n", err)
				continue
			}
			s.lastStatus = status
			if exited {
				return status
			}
		}
	}
}

// Close releases the readline instance.
func (s *Shell) Close() error {
	return s.Readline.Close()
}
