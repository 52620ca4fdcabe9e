// Package host is the boundary between the interpreter core and the
// process-spawning facility of the embedding application. The core
// never searches PATH or creates processes itself; it hands the
// resolved-by-name request to a SpawnFunc and consumes the exit code.
package host

import (
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by a SpawnFunc when no executable matches the
// command name. The executor converts it into exit status 127 and a
// "command not found" diagnostic.
var ErrNotFound = exec.ErrNotFound

// IO carries the standard streams assigned to a spawned program.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// SpawnFunc launches an external program and blocks until it exits.
// environ holds KEY=value pairs snapshotted from the shell environment,
// including any assignment prefixes scoped to the invocation.
type SpawnFunc func(name string, args []string, streams IO, environ []string) (int, error)

// Proc is the execution context handed to an in-process program: its
// argument vector, environment snapshot, standard streams and the
// virtual filesystem it runs against.
type Proc struct {
	Args    []string
	FS      afero.Fs
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	environ []string
}

// Environ returns the process's KEY=value environment snapshot.
func (p *Proc) Environ() []string {
	return append([]string(nil), p.environ...)
}

// Getenv looks a key up in the environment snapshot, last binding wins.
func (p *Proc) Getenv(key string) string {
	return getenv(p.environ, key)
}

func getenv(environ []string, key string) string {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return environ[i][len(prefix):]
		}
	}
	return ""
}

// NewProc builds a process context directly, bypassing PATH
// resolution. Chiefly useful for exercising programs in isolation.
func NewProc(args []string, fs afero.Fs, streams IO, environ []string) *Proc {
	return &Proc{
		Args:    args,
		FS:      fs,
		Stdin:   streams.Stdin,
		Stdout:  streams.Stdout,
		Stderr:  streams.Stderr,
		environ: environ,
	}
}

// ProgramFunc is an in-process implementation of an external program.
type ProgramFunc func(p *Proc) int

// Registry resolves command names to programs over a virtual
// filesystem: a name resolves when PATH lookup finds an executable file
// and a program is registered under the resolved path. It is the
// default SpawnFunc implementation for embedders that do not launch
// real processes.
type Registry struct {
	fs       afero.Fs
	programs map[string]ProgramFunc
}

func NewRegistry(fs afero.Fs) *Registry {
	return &Registry{
		fs:       fs,
		programs: make(map[string]ProgramFunc),
	}
}

// FS returns the registry's backing filesystem.
func (r *Registry) FS() afero.Fs {
	return r.fs
}

// Install registers a program and creates the executable file backing
// it so PATH lookup can find it.
func (r *Registry) Install(path string, prog ProgramFunc) error {
	if err := r.fs.MkdirAll(dirOf(path), 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(r.fs, path, []byte{}, 0755); err != nil {
		return err
	}
	r.programs[path] = prog
	return nil
}

func dirOf(p string) string {
	dir := path.Dir(p)
	if dir == "" {
		return "/"
	}
	return dir
}

// Spawn implements SpawnFunc.
func (r *Registry) Spawn(name string, args []string, streams IO, environ []string) (int, error) {
	execPath, err := LookPath(r.fs, getenv(environ, "PATH"), name)
	if err != nil {
		return 0, err
	}

	prog, ok := r.programs[execPath]
	if !ok {
		return 0, ErrNotFound
	}

	return prog(&Proc{
		Args:    args,
		FS:      r.fs,
		Stdin:   streams.Stdin,
		Stdout:  streams.Stdout,
		Stderr:  streams.Stderr,
		environ: environ,
	}), nil
}

// LookPath searches for an executable named file in the directories of
// the given PATH string. If file contains a slash it is tried directly
// and PATH is not consulted.
func LookPath(vfs afero.Fs, pathEnv, file string) (string, error) {
	if strings.Contains(file, "/") {
		if err := findExecutable(vfs, file); err != nil {
			return "", err
		}
		return file, nil
	}

	for _, dir := range strings.Split(pathEnv, ":") {
		if dir == "" {
			// Unix shell semantics: an empty PATH element means ".".
			dir = "."
		}
		candidate := path.Join(dir, file)
		if err := findExecutable(vfs, candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

func findExecutable(vfs afero.Fs, file string) error {
	d, err := vfs.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}
