package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/embedsh/embedsh/core/host"
	"github.com/embedsh/embedsh/core/host/hosttest"
)

func TestAllCommands(t *testing.T) {
	for path, prog := range AllCommands {
		t.Run(path, func(t *testing.T) {
			if prog == nil {
				t.Fatal("nil command", path)
			}
		})
	}
}

func TestInstallAll(t *testing.T) {
	reg := host.NewRegistry(afero.NewMemMapFs())
	assert.Nil(t, InstallAll(reg))

	for path := range AllCommands {
		info, err := reg.FS().Stat(path)
		assert.Nil(t, err, path)
		if err == nil {
			assert.NotEqual(t, 0, info.Mode()&0111, path)
		}
	}
}

func TestSimpleCommand_help(t *testing.T) {
	cmd := hosttest.Command(Cat, "cat", "--help")
	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Contains(t, string(out), "usage: cat [FILE]...")
	assert.Contains(t, string(out), "Flags:")
}

func TestSimpleCommand_badFlag(t *testing.T) {
	cmd := hosttest.Command(Cat, "cat", "--bogus")
	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 1, cmd.ExitStatus, "exit code")
	assert.Contains(t, string(out), "usage: cat [FILE]...")
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Args  []string
	Stdin string
}

func (gts goldenTestSuite) Run(t *testing.T, prog host.ProgramFunc) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			cmd := hosttest.Command(prog, tc.Args[0], tc.Args[1:]...)
			cmd.Stdin = strings.NewReader(tc.Stdin)
			out, err := cmd.CombinedOutput()
			if err != nil {
				t.Fatal(err)
			}

			g.Assert(t, tn, out)
		})
	}
}
