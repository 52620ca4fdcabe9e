package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.Nil(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Config)
		wantErr bool
	}{
		"default":       {mutate: func(c *Config) {}},
		"empty-path":    {mutate: func(c *Config) { c.Path = "" }, wantErr: true},
		"zero-depth":    {mutate: func(c *Config) { c.MaxCallDepth = 0 }, wantErr: true},
		"zero-pipe":     {mutate: func(c *Config) { c.PipeDepth = 0 }, wantErr: true},
		"bad-hostname":  {mutate: func(c *Config) { c.SSH.Hostname = "not a hostname!" }, wantErr: true},
		"no-hostname":   {mutate: func(c *Config) { c.SSH.Hostname = "" }},
		"negative-rate": {mutate: func(c *Config) { c.SSH.OutputBytesPerSecond = -1 }, wantErr: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	writeConfig := func(t *testing.T, contents string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
		return path
	}

	t.Run("overrides-defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "prompt: '> '\npipe_depth: 4\n"))
		require.NoError(t, err)
		assert.Equal(t, "> ", cfg.Prompt)
		assert.Equal(t, 4, cfg.PipeDepth)
		// Untouched fields keep their defaults.
		assert.Equal(t, Default().Path, cfg.Path)
	})

	t.Run("env-map", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "env:\n  GREETING: hi\n"))
		require.NoError(t, err)
		assert.Equal(t, "hi", cfg.Env["GREETING"])
	})

	t.Run("unknown-field-rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, "no_such_option: true\n"))
		assert.NotNil(t, err)
	})

	t.Run("invalid-value-rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, "max_call_depth: 0\n"))
		assert.NotNil(t, err)
	})

	t.Run("missing-file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.NotNil(t, err)
	})
}
