// Package server exposes embedsh sessions over SSH.
package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/juju/ratelimit"
	gossh "golang.org/x/crypto/ssh"

	"github.com/embedsh/embedsh/core/config"
	"github.com/embedsh/embedsh/core/logger"
	"github.com/embedsh/embedsh/core/shell"
)

type sshContextKey struct {
	name string
}

var (
	// ContextAuthPublicKey holds the public key that the client sent to
	// the server.
	ContextAuthPublicKey = sshContextKey{"auth-public-key"}
	// ContextAuthPassword holds the password the client sent to the
	// server.
	ContextAuthPassword = sshContextKey{"auth-password"}
)

// Server accepts SSH connections and runs one shell session per
// connection.
type Server struct {
	cfg       *config.Config
	logger    *logger.Logger
	sshServer *ssh.Server
}

// New builds a server from the configuration. Session events are
// written to logDest as JSON lines.
func New(cfg *config.Config, logDest io.Writer) (*Server, error) {
	server := &Server{
		cfg:    cfg,
		logger: logger.NewJSONLinesLogRecorder(logDest),
	}

	server.sshServer = &ssh.Server{
		Addr: cfg.SSH.Addr,
		Handler: func(s ssh.Session) {
			server.handleConnection(s)
		},
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			ctx.SetValue(ContextAuthPublicKey, key.Marshal())
			return false
		},
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			ctx.SetValue(ContextAuthPassword, password)
			if cfg.SSH.Password == "" {
				return true
			}
			return 1 == subtle.ConstantTimeCompare([]byte(password), []byte(cfg.SSH.Password))
		},
	}

	signer, err := hostKeySigner(cfg.SSH.HostKeyPath)
	if err != nil {
		return nil, err
	}
	server.sshServer.AddHostKey(signer)

	return server, nil
}

// hostKeySigner loads the PEM key at path, or generates an ephemeral
// ed25519 key when path is empty.
func hostKeySigner(path string) (gossh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return gossh.NewSignerFromKey(priv)
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return gossh.ParsePrivateKey(pemBytes)
}

func (srv *Server) handleConnection(s ssh.Session) {
	sessionLogger := srv.logger.NewSession()

	publicKey, _ := s.Context().Value(ContextAuthPublicKey).([]byte)
	password, _ := s.Context().Value(ContextAuthPassword).(string)
	sessionLogger.Record(&logger.LogEntry{
		Login: &logger.Login{
			Username:             s.User(),
			Password:             password,
			PublicKey:            publicKey,
			RemoteAddr:           fmt.Sprintf("%s", s.RemoteAddr()),
			EnvironmentVariables: s.Environ(),
			Command:              s.Command(),
		},
	})

	defer func() {
		if r := recover(); r != nil {
			sessionLogger.Record(&logger.LogEntry{
				Panic: &logger.Panic{
					Context:    fmt.Sprintf("session: %v", r),
					Stacktrace: string(debug.Stack()),
				},
			})
			s.Exit(1)
		}
	}()

	var out io.Writer = s
	if rate := srv.cfg.SSH.OutputBytesPerSecond; rate > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(rate), rate)
		out = ratelimit.Writer(s, bucket)
	}

	session, err := shell.NewSession(srv.cfg, s.User(), s, out, out)
	if err != nil {
		fmt.Fprintf(s.Stderr(), "embedsh: %v\n", err)
		s.Exit(1)
		return
	}

	// "ssh host 'script'" runs the command and exits.
	if cmdline := strings.Join(s.Command(), " "); cmdline != "" {
		status, err := session.Run(cmdline)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "embedsh: %v\n", err)
			status = 2
		}
		sessionLogger.Record(&logger.LogEntry{
			Exec: &logger.Exec{Line: cmdline, Status: status},
		})
		sessionLogger.Record(&logger.LogEntry{
			SessionEnd: &logger.SessionEnd{Status: status},
		})
		s.Exit(status)
		return
	}

	// Interactive session: track window size changes for readline.
	ptyInfo, winch, isPTY := s.Pty()

	var mu sync.Mutex
	width := ptyInfo.Window.Width
	go func() {
		for window := range winch {
			mu.Lock()
			width = window.Width
			mu.Unlock()
		}
	}()

	interactive, err := shell.NewShell(session, shell.Options{
		Width: func() int {
			mu.Lock()
			defer mu.Unlock()
			if width <= 0 {
				return 80
			}
			return width
		},
		IsTerminal: isPTY,
	})
	if err != nil {
		fmt.Fprintf(s.Stderr(), "embedsh: %v\n", err)
		s.Exit(1)
		return
	}
	defer interactive.Close()

	status := interactive.Run()
	sessionLogger.Record(&logger.LogEntry{
		SessionEnd: &logger.SessionEnd{Status: status},
	})
	s.Exit(status)
}

// ListenAndServe blocks serving SSH connections.
func (srv *Server) ListenAndServe() error {
	log.Printf("- Starting SSH server on %s\n", srv.sshServer.Addr)
	return srv.sshServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.sshServer.Shutdown(ctx)
}
