// Package config implements the configuration store: per-environment
// key/value configuration resolved from built-in defaults, named presets,
// environment override files, and administrative overrides, with
// secret-classified values encrypted at rest.
package config

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/skiffhq/skiff/internal/util/naming"
)

// EnvironmentKind distinguishes PR-bound stacks from operator-managed ones.
type EnvironmentKind string

const (
	// Ephemeral environments are created and destroyed by PR lifecycle events.
	Ephemeral EnvironmentKind = "ephemeral"
	// Persistent environments are operator-assigned (dev, qa, production).
	Persistent EnvironmentKind = "persistent"
)

// Classification marks whether a config entry may appear in logs and
// plain provider fields, or must flow through the secret propagator only.
type Classification string

const (
	Plain  Classification = "plain"
	Secret Classification = "secret"
)

// ValueType is the declared type of a config entry. Overrides must keep
// the type declared by the default or preset they shadow.
type ValueType string

const (
	StringType ValueType = "string"
	IntType    ValueType = "int"
	BoolType   ValueType = "bool"
)

// Entry is a single configuration key scoped to one environment.
// Values are carried in canonical string form; Type records how the
// value parses.
type Entry struct {
	Key            string
	Value          string
	Type           ValueType
	Classification Classification
}

// Bool returns the entry value as a bool. False for non-bool entries.
func (e Entry) Bool() bool {
	v, err := strconv.ParseBool(e.Value)
	return err == nil && v
}

// Int returns the entry value as an int, or 0 if it does not parse.
func (e Entry) Int() int {
	v, _ := strconv.Atoi(e.Value)
	return v
}

// Redacted returns the value suitable for display: secret-classified
// values are masked, plain values pass through.
func (e Entry) Redacted() string {
	if e.Classification == Secret {
		return "********"
	}
	return e.Value
}

// ResourceTier bounds the compute shape an environment may request.
type ResourceTier struct {
	CPU         string `mapstructure:"cpu" yaml:"cpu"`
	Memory      string `mapstructure:"memory" yaml:"memory"`
	MaxReplicas int    `mapstructure:"max_replicas" yaml:"max_replicas"`
}

// Environment is a named deployment target.
type Environment struct {
	Name         string            `mapstructure:"name" yaml:"name"`
	Kind         EnvironmentKind   `mapstructure:"kind" yaml:"kind"`
	Providers    []string          `mapstructure:"providers" yaml:"providers"`
	Tier         ResourceTier      `mapstructure:"tier" yaml:"tier"`
	Preset       string            `mapstructure:"preset" yaml:"preset"`
	Overrides    map[string]string `mapstructure:"overrides" yaml:"overrides"`
	AllowedUsers []string          `mapstructure:"allowed_users" yaml:"allowed_users"`
}

// PublicByDefault reports whether compute services in this environment
// get unauthenticated invoker access when no allowed users are configured.
// Only ephemeral and dev environments default to public; production never.
func (e Environment) PublicByDefault() bool {
	if e.Name == "production" {
		return false
	}
	return e.Kind == Ephemeral || e.Name == "dev"
}

// Validate checks environment fields for common mistakes.
func (e Environment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	if e.Kind != Ephemeral && e.Kind != Persistent {
		return fmt.Errorf("environment %s: kind must be %q or %q, got %q", e.Name, Ephemeral, Persistent, e.Kind)
	}
	if e.Kind == Ephemeral {
		if _, ok := naming.PRNumber(e.Name); !ok {
			return fmt.Errorf("environment %s: ephemeral environments must be named pr-<number>", e.Name)
		}
	}
	if len(e.Providers) == 0 {
		return fmt.Errorf("environment %s: at least one provider must be enabled", e.Name)
	}
	for _, p := range e.Providers {
		if !validProviders[p] {
			return fmt.Errorf("environment %s: unknown provider %q", e.Name, p)
		}
	}
	return nil
}

var validProviders = map[string]bool{
	"gcp":     true,
	"railway": true,
	"modal":   true,
}

// SortedKeys returns the keys of a resolved config in lexicographic order.
// Resolution output is a map; every consumer that needs determinism
// iterates via SortedKeys.
func SortedKeys(resolved map[string]Entry) []string {
	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
