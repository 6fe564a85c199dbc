// Package graph turns a resolved environment configuration into a
// dependency-ordered deployment plan. Plans are computed fresh on every
// reconciliation and never persisted; only their outcomes are.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a resource spec.
type Kind string

const (
	Compute       Kind = "compute"
	Database      Kind = "database"
	Cache         Kind = "cache"
	SecretBinding Kind = "secret-binding"
)

// Spec is a declarative description of one infrastructure unit.
type Spec struct {
	ID         string
	Kind       Kind
	Provider   string
	DependsOn  []string
	Properties map[string]string
	// Secrets lists the config keys whose values this resource consumes.
	// They are propagated to the resource's provider before its compute
	// adapter is ever invoked.
	Secrets []string
}

// PropertiesHash returns a deterministic digest of the spec's desired
// properties. Unchanged hashes let the reconciler skip provider calls.
func (s Spec) PropertiesHash() string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s\n", s.ID, s.Kind, s.Provider)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, s.Properties[k])
	}
	deps := append([]string(nil), s.DependsOn...)
	sort.Strings(deps)
	fmt.Fprintf(h, "deps=%s\n", strings.Join(deps, ","))
	secrets := append([]string(nil), s.Secrets...)
	sort.Strings(secrets)
	fmt.Fprintf(h, "secrets=%s\n", strings.Join(secrets, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// Plan is the topologically sorted list of specs for one environment.
type Plan struct {
	Environment string
	Specs       []Spec
}

// Spec returns the spec with the given id, or false.
func (p *Plan) Spec(id string) (Spec, bool) {
	for _, s := range p.Specs {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// Providers returns the distinct providers used by the plan, sorted.
// The reconciler sizes its worker pool from this: provider rate limits
// are the real concurrency constraint.
func (p *Plan) Providers() []string {
	seen := map[string]bool{}
	for _, s := range p.Specs {
		seen[s.Provider] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Fingerprint returns a canonical textual form of the plan. Two builds
// from identical config must produce byte-identical fingerprints.
func (p *Plan) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "environment: %s\n", p.Environment)
	for _, s := range p.Specs {
		fmt.Fprintf(&b, "%s kind=%s provider=%s hash=%s\n", s.ID, s.Kind, s.Provider, s.PropertiesHash())
	}
	return b.String()
}
