package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/skiffhq/skiff/internal/util/naming"
)

// EnvironmentsFile is the declarative environment inventory (skiff.yaml).
// Persistent environments are listed explicitly; the ephemeral template
// describes how PR-bound environments are derived.
type EnvironmentsFile struct {
	Environments []Environment     `mapstructure:"environments" yaml:"environments"`
	Ephemeral    EphemeralTemplate `mapstructure:"ephemeral" yaml:"ephemeral"`
}

// EphemeralTemplate is the shape stamped out for every pr-<n> environment.
type EphemeralTemplate struct {
	Providers []string          `mapstructure:"providers" yaml:"providers"`
	Preset    string            `mapstructure:"preset" yaml:"preset"`
	Tier      ResourceTier      `mapstructure:"tier" yaml:"tier"`
	Overrides map[string]string `mapstructure:"overrides" yaml:"overrides"`
}

// LoadEnvironmentsFile reads and validates the environment inventory.
func LoadEnvironmentsFile(path string) (*EnvironmentsFile, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environments file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var f EnvironmentsFile
	if err := mapstructure.Decode(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode environments file: %w", err)
	}

	// Ephemeral template defaults
	if len(f.Ephemeral.Providers) == 0 {
		f.Ephemeral.Providers = []string{"gcp", "railway"}
	}
	if f.Ephemeral.Preset == "" {
		f.Ephemeral.Preset = "fullstack"
	}

	for i := range f.Environments {
		if f.Environments[i].Kind == "" {
			f.Environments[i].Kind = Persistent
		}
		if err := f.Environments[i].Validate(); err != nil {
			return nil, fmt.Errorf("environments file validation failed: %w", err)
		}
	}

	if err := f.checkUniqueNames(); err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *EnvironmentsFile) checkUniqueNames() error {
	seen := make(map[string]bool, len(f.Environments))
	for _, env := range f.Environments {
		if seen[env.Name] {
			return fmt.Errorf("environments file validation failed: duplicate environment %q", env.Name)
		}
		seen[env.Name] = true
	}
	return nil
}

// Environment returns the declared environment with the given name, or a
// derived ephemeral environment when the name matches pr-<number>.
func (f *EnvironmentsFile) Environment(name string) (Environment, error) {
	for _, env := range f.Environments {
		if env.Name == name {
			return env, nil
		}
	}

	if naming.IsEphemeral(name) {
		return Environment{
			Name:      name,
			Kind:      Ephemeral,
			Providers: f.Ephemeral.Providers,
			Preset:    f.Ephemeral.Preset,
			Tier:      f.Ephemeral.Tier,
			Overrides: f.Ephemeral.Overrides,
		}, nil
	}

	return Environment{}, &UnknownEnvironmentError{Name: name}
}
