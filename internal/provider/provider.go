// Package provider defines the adapter seam between the reconciler and
// cloud platforms. Each adapter owns exactly one provider's resource
// kinds and translates resource specs into provider-native calls; the
// reconciler never sees a provider SDK type.
package provider

import (
	"context"
	"time"

	"github.com/skiffhq/skiff/internal/graph"
)

// ResourceState is the uniform record an adapter returns after a
// successful apply. It is the only thing persisted about a resource.
type ResourceState struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	ProviderID     string    `json:"providerId"`
	URL            string    `json:"url,omitempty"`
	PropertiesHash string    `json:"propertiesHash"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Adapter translates resource specs into provider-native create/update/
// delete calls. Apply must be idempotent: re-applying an unchanged spec
// converges without destructive side effects.
type Adapter interface {
	// Name returns the provider name ("gcp", "railway", "modal").
	Name() string

	// Apply creates or updates the resource described by spec.
	// previous is the last known state, or nil on first apply.
	Apply(ctx context.Context, environment string, spec graph.Spec, previous *ResourceState) (*ResourceState, error)

	// Destroy deletes the resource. Destroying a resource that no longer
	// exists is success, not an error.
	Destroy(ctx context.Context, state ResourceState) error
}

// SecretWriter is implemented by adapters whose provider has a native
// secret mechanism. WriteSecret stores one secret value and returns the
// provider-native reference. Implementations must create a new version
// rather than mutate in place; old versions are retained for rollback.
type SecretWriter interface {
	// WriteSecret writes the value under the environment-scoped key and
	// returns the provider-native secret reference.
	WriteSecret(ctx context.Context, environment, key, value string) (ref string, err error)

	// DeleteSecret removes the secret and all its versions. Missing
	// secrets are success.
	DeleteSecret(ctx context.Context, environment, key string) error
}

// Timeout returns the provider call timeout for a resource kind.
// Managed databases take far longer to converge than compute services.
func Timeout(kind graph.Kind) time.Duration {
	switch kind {
	case graph.Database:
		return 10 * time.Minute
	case graph.Cache:
		return 5 * time.Minute
	default:
		return 5 * time.Minute
	}
}
