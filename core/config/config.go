// Package config holds the embedsh runtime configuration: the initial
// shell environment and the interpreter's resource limits.
package config

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config is the embedsh configuration, loaded from YAML or built from
// Default().
type Config struct {
	// Path is the initial $PATH used for external program lookup.
	Path string `json:"path" validate:"required"`

	// Prompt is the initial $PS1. \u, \h, \w and \$ expand the usual
	// way in interactive sessions.
	Prompt string `json:"prompt"`

	// Env holds additional initial environment variables.
	Env map[string]string `json:"env"`

	// MaxCallDepth bounds function recursion.
	MaxCallDepth int `json:"max_call_depth" validate:"gte=1"`

	// PipeDepth is the number of chunks buffered between pipeline
	// stages before a writer blocks.
	PipeDepth int `json:"pipe_depth" validate:"gte=1"`

	SSH SSH `json:"ssh"`
}

// SSH configures the optional SSH front end.
type SSH struct {
	// Addr is the listen address for "embedsh serve".
	Addr string `json:"addr"`

	// Hostname is reported by \h in prompts.
	Hostname string `json:"hostname" validate:"omitempty,hostname_rfc1123"`

	// HostKeyPath points at a PEM encoded host key. When empty the
	// server generates an ephemeral ed25519 key at startup.
	HostKeyPath string `json:"host_key_path"`

	// Password guards SSH logins. Empty accepts any password.
	Password string `json:"password"`

	// OutputBytesPerSecond rate-limits session output; 0 disables
	// limiting.
	OutputBytesPerSecond int64 `json:"output_bytes_per_second" validate:"gte=0"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Path:         "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		Prompt:       `\u@\h:\w\$ `,
		MaxCallDepth: 100,
		PipeDepth:    16,
		SSH: SSH{
			Addr:     ":2222",
			Hostname: "embedsh",
		},
	}
}

// Validate checks the configuration for basic semantic errors.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}
