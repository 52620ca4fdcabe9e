package config

import (
	"io/ioutil"

	"sigs.k8s.io/yaml"
)

// Load reads and validates a YAML configuration file. Missing fields
// fall back to the defaults.
func Load(path string) (*Config, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	out := Default()
	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
