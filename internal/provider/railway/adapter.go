package railway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/util/naming"
)

// Adapter applies compute, database, and cache specs as Railway
// services. Secret bindings become sensitive environment variables,
// which is Railway's native secret mechanism.
type Adapter struct {
	api API
}

// NewAdapter wraps an API implementation.
func NewAdapter(api API) *Adapter {
	return &Adapter{api: api}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "railway"
}

// Apply creates or updates the Railway service for a spec.
func (a *Adapter) Apply(ctx context.Context, environment string, spec graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
	req := ServiceRequest{
		Environment: environment,
		Name:        naming.Resource(environment, spec.ID),
	}

	switch spec.Kind {
	case graph.Compute:
		image := spec.Properties["image"]
		if image == "" {
			return nil, a.classify(spec.ID, "apply",
				errors.New("compute spec has no image reference"))
		}
		req.Image = image
		req.Replicas, _ = strconv.Atoi(spec.Properties["replicas"])
	case graph.Database, graph.Cache:
		req.Engine = spec.Properties["engine"]
		req.EngineVersion = spec.Properties["engineVersion"]
	default:
		return nil, a.classify(spec.ID, "apply",
			fmt.Errorf("railway adapter does not handle %s resources", spec.Kind))
	}

	result, err := a.api.UpsertService(ctx, req)
	if err != nil {
		return nil, a.classify(spec.ID, "apply", err)
	}

	url := result.ConnectionURL
	if spec.Kind == graph.Compute {
		url = "https://" + result.Domain
	}
	return &provider.ResourceState{
		ID:             spec.ID,
		Provider:       a.Name(),
		ProviderID:     result.ServiceID,
		URL:            url,
		PropertiesHash: spec.PropertiesHash(),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Destroy deletes the Railway service.
func (a *Adapter) Destroy(ctx context.Context, state provider.ResourceState) error {
	if err := a.api.DeleteService(ctx, state.ProviderID); err != nil {
		return a.classify(state.ID, "destroy", err)
	}
	return nil
}

// WriteSecret stores the value as a sensitive environment variable.
func (a *Adapter) WriteSecret(ctx context.Context, environment, key, value string) (string, error) {
	name := secretVariableName(key)
	if err := a.api.UpsertVariable(ctx, environment, name, value, true); err != nil {
		return "", a.classify(key, "write-secret", err)
	}
	return fmt.Sprintf("railway://%s/%s", environment, name), nil
}

// DeleteSecret removes the sensitive variable.
func (a *Adapter) DeleteSecret(ctx context.Context, environment, key string) error {
	if err := a.api.DeleteVariable(ctx, environment, secretVariableName(key)); err != nil {
		return a.classify(key, "delete-secret", err)
	}
	return nil
}

func (a *Adapter) classify(resourceID, op string, err error) error {
	transient := true
	var ae *apiError
	if errors.As(err, &ae) {
		transient = provider.TransientStatus(ae.Status)
	}
	return &provider.Error{
		Provider:   a.Name(),
		ResourceID: resourceID,
		Op:         op,
		Message:    err.Error(),
		Transient:  transient,
		Err:        err,
	}
}

// secretVariableName converts a config key to Railway's env var form
// (databaseUrl -> DATABASE_URL).
func secretVariableName(key string) string {
	out := make([]byte, 0, len(key)+4)
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, c)
			continue
		}
		if c >= 'a' && c <= 'z' {
			out = append(out, c-('a'-'A'))
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
