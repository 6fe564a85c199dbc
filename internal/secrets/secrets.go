// Package secrets propagates secret-classified configuration into
// provider-native secret stores and tracks the resulting bindings.
package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/provider"
)

// Binding records one secret key written to one provider. A new
// version is created whenever the underlying value changes; old
// provider-side versions are retained for rollback, not deleted.
type Binding struct {
	Key         string    `json:"key"`
	Provider    string    `json:"provider"`
	Ref         string    `json:"ref"`
	ContentHash string    `json:"contentHash"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Error reports a propagation failure for one key on one provider.
// It is fatal for resources consuming that binding, not the whole plan.
type Error struct {
	Key      string
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to propagate secret %q to %s: %v", e.Key, e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Propagator writes secret values through each provider's native
// secret mechanism.
type Propagator struct {
	registry *provider.Registry
}

// NewPropagator creates a propagator over the registered providers.
func NewPropagator(registry *provider.Registry) *Propagator {
	return &Propagator{registry: registry}
}

// Propagate writes the given secret entries to one provider, reusing
// previous bindings whose content hash is unchanged. It returns the
// complete set of current bindings for that provider.
func (p *Propagator) Propagate(ctx context.Context, environment string, entries []config.Entry, providerName string, previous []Binding) ([]Binding, error) {
	writer, err := p.registry.SecretWriter(providerName)
	if err != nil {
		return nil, &Error{Provider: providerName, Err: err}
	}

	prior := make(map[string]Binding, len(previous))
	for _, b := range previous {
		if b.Provider == providerName {
			prior[b.Key] = b
		}
	}

	bindings := make([]Binding, 0, len(entries))
	for _, entry := range entries {
		hash := ContentHash(entry.Value)
		if old, ok := prior[entry.Key]; ok && old.ContentHash == hash {
			bindings = append(bindings, old)
			continue
		}

		ref, err := writer.WriteSecret(ctx, environment, entry.Key, entry.Value)
		if err != nil {
			return bindings, &Error{Key: entry.Key, Provider: providerName, Err: err}
		}
		version := 1
		if old, ok := prior[entry.Key]; ok {
			version = old.Version + 1
		}
		bindings = append(bindings, Binding{
			Key:         entry.Key,
			Provider:    providerName,
			Ref:         ref,
			ContentHash: hash,
			Version:     version,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return bindings, nil
}

// Revoke deletes the provider-side secrets behind the given bindings.
// Used during destroy, after dependent compute resources are gone.
func (p *Propagator) Revoke(ctx context.Context, environment string, bindings []Binding) error {
	for _, b := range bindings {
		writer, err := p.registry.SecretWriter(b.Provider)
		if err != nil {
			return &Error{Key: b.Key, Provider: b.Provider, Err: err}
		}
		if err := writer.DeleteSecret(ctx, environment, b.Key); err != nil {
			return &Error{Key: b.Key, Provider: b.Provider, Err: err}
		}
	}
	return nil
}

// ContentHash is the digest used for change detection. Only the hash
// is ever persisted or logged, never the value.
func ContentHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
