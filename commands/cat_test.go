package commands

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/embedsh/embedsh/core/host/hosttest"
)

func TestCat(t *testing.T) {
	cases := goldenTestSuite{
		"no-arg":  {Args: []string{"cat"}},
		"stdin":   {Args: []string{"cat"}, Stdin: "hello\nworld\n"},
		"missing": {Args: []string{"cat", "nonexistent.txt"}},
	}

	cases.Run(t, Cat)
}

func TestCat_files(t *testing.T) {
	cmd := hosttest.Command(Cat, "cat", "/foo.txt")
	cmd.FS = afero.NewMemMapFs()

	// Missing file.
	{
		assert.Nil(t, cmd.Run())
		assert.NotEqual(t, 0, cmd.ExitStatus, "exit code")
	}
	// Existing file.
	{
		helloWorld := []byte("Hello, world!")
		assert.Nil(t, afero.WriteFile(cmd.FS, "/foo.txt", helloWorld, 0600))

		out, err := cmd.CombinedOutput()

		assert.Equal(t, 0, cmd.ExitStatus, "exit code")
		assert.Nil(t, err)
		assert.Equal(t, string(helloWorld), string(out))
	}
}

func TestCat_multipleFiles(t *testing.T) {
	cmd := hosttest.Command(Cat, "cat", "/a.txt", "/b.txt")
	cmd.FS = afero.NewMemMapFs()
	assert.Nil(t, afero.WriteFile(cmd.FS, "/a.txt", []byte("first\n"), 0600))
	assert.Nil(t, afero.WriteFile(cmd.FS, "/b.txt", []byte("second\n"), 0600))

	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Equal(t, "first\nsecond\n", string(out))
}
