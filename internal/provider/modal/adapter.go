package modal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/util/naming"
)

// Adapter deploys compute specs as Modal apps. Modal has no managed
// databases or caches, so only compute is handled. Secrets become
// named Modal secrets mounted into the app.
type Adapter struct {
	api API
}

// NewAdapter wraps an API implementation.
func NewAdapter(api API) *Adapter {
	return &Adapter{api: api}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "modal"
}

// Apply deploys the spec as a Modal app.
func (a *Adapter) Apply(ctx context.Context, environment string, spec graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
	if spec.Kind != graph.Compute {
		return nil, a.classify(spec.ID, "apply",
			fmt.Errorf("modal adapter does not handle %s resources", spec.Kind))
	}
	image := spec.Properties["image"]
	if image == "" {
		return nil, a.classify(spec.ID, "apply",
			errors.New("compute spec has no image reference"))
	}

	secrets := make([]string, 0, len(spec.Secrets))
	for _, key := range spec.Secrets {
		secrets = append(secrets, naming.Secret(environment, key))
	}

	result, err := a.api.DeployApp(ctx, AppRequest{
		Name:    naming.Resource(environment, spec.ID),
		Image:   image,
		CPU:     spec.Properties["cpu"],
		Memory:  spec.Properties["memory"],
		Secrets: secrets,
	})
	if err != nil {
		return nil, a.classify(spec.ID, "apply", err)
	}

	return &provider.ResourceState{
		ID:             spec.ID,
		Provider:       a.Name(),
		ProviderID:     result.AppID,
		URL:            result.URL,
		PropertiesHash: spec.PropertiesHash(),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Destroy stops and removes the Modal app.
func (a *Adapter) Destroy(ctx context.Context, state provider.ResourceState) error {
	if err := a.api.StopApp(ctx, state.ProviderID); err != nil {
		return a.classify(state.ID, "destroy", err)
	}
	return nil
}

// WriteSecret stores the value as a single-entry named Modal secret.
func (a *Adapter) WriteSecret(ctx context.Context, environment, key, value string) (string, error) {
	name := naming.Secret(environment, key)
	err := a.api.PutSecret(ctx, name, map[string]string{envVarName(key): value})
	if err != nil {
		return "", a.classify(key, "write-secret", err)
	}
	return "modal://" + name, nil
}

// DeleteSecret removes the named Modal secret.
func (a *Adapter) DeleteSecret(ctx context.Context, environment, key string) error {
	if err := a.api.DeleteSecret(ctx, naming.Secret(environment, key)); err != nil {
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

// envVarName converts a config key to env var form (databaseUrl ->
// DATABASE_URL).
func envVarName(key string) string {
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
