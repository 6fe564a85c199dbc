package gcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/util/naming"
)

// requiredAPIs must be enabled on the project before any GCP resource in
// a plan is applied.
var requiredAPIs = []string{
	"run.googleapis.com",
	"secretmanager.googleapis.com",
	"iam.googleapis.com",
}

// Adapter applies compute specs as Cloud Run services and secret
// bindings as Secret Manager secrets.
type Adapter struct {
	api API

	apisMu    sync.Mutex
	apisReady bool
}

// NewAdapter wraps an API implementation.
func NewAdapter(api API) *Adapter {
	return &Adapter{api: api}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "gcp"
}

// ensureAPIs enables required project APIs, caching success so later
// applies in the same process skip the calls. Failures are never
// cached: a retried apply re-attempts enablement.
func (a *Adapter) ensureAPIs(ctx context.Context) error {
	a.apisMu.Lock()
	defer a.apisMu.Unlock()
	if a.apisReady {
		return nil
	}
	for _, name := range requiredAPIs {
		if err := a.api.EnableService(ctx, name); err != nil {
			return fmt.Errorf("failed to enable %s: %w", name, err)
		}
	}
	a.apisReady = true
	return nil
}

// Apply creates or updates the Cloud Run service for a compute spec.
func (a *Adapter) Apply(ctx context.Context, environment string, spec graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
	if spec.Kind != graph.Compute {
		return nil, a.classify(spec.ID, "apply",
			fmt.Errorf("gcp adapter does not handle %s resources", spec.Kind))
	}
	if err := a.ensureAPIs(ctx); err != nil {
		return nil, a.classify(spec.ID, "enable-apis", err)
	}

	image := spec.Properties["image"]
	if image == "" {
		return nil, a.classify(spec.ID, "apply",
			errors.New("compute spec has no image reference"))
	}

	maxInstances, _ := strconv.Atoi(spec.Properties["replicas"])
	if maxInstances < 1 {
		maxInstances = 1
	}

	req := ServiceRequest{
		Name:         naming.Resource(environment, spec.ID),
		Region:       spec.Properties["region"],
		Image:        image,
		CPU:          spec.Properties["cpu"],
		Memory:       spec.Properties["memory"],
		MaxInstances: maxInstances,
		EnvVars: map[string]string{
			"SKIFF_ENVIRONMENT": environment,
		},
		SecretEnvVars: map[string]string{},
	}
	// Secrets are mounted by Secret Manager reference only; the value
	// itself never appears in a plain service field.
	for _, key := range spec.Secrets {
		req.SecretEnvVars[envVarName(key)] = naming.Secret(environment, key)
	}

	result, err := a.api.UpsertService(ctx, req)
	if err != nil {
		return nil, a.classify(spec.ID, "apply", err)
	}

	if err := a.api.SetInvokerPolicy(ctx, result.FullName, invokerMembers(spec)); err != nil {
		return nil, a.classify(spec.ID, "set-iam", err)
	}

	return &provider.ResourceState{
		ID:             spec.ID,
		Provider:       a.Name(),
		ProviderID:     result.FullName,
		URL:            result.URI,
		PropertiesHash: spec.PropertiesHash(),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Destroy deletes the Cloud Run service.
func (a *Adapter) Destroy(ctx context.Context, state provider.ResourceState) error {
	if err := a.api.DeleteService(ctx, state.ProviderID); err != nil {
		return a.classify(state.ID, "destroy", err)
	}
	return nil
}

// WriteSecret stores the value as a new Secret Manager version. Old
// versions are retained for rollback.
func (a *Adapter) WriteSecret(ctx context.Context, environment, key, value string) (string, error) {
	name := naming.Secret(environment, key)
	if err := a.api.CreateSecret(ctx, name); err != nil {
		return "", a.classify(name, "create-secret", err)
	}
	ref, err := a.api.AddSecretVersion(ctx, name, []byte(value))
	if err != nil {
		return "", a.classify(name, "add-secret-version", err)
	}
	return ref, nil
}

// DeleteSecret removes the secret and its versions.
func (a *Adapter) DeleteSecret(ctx context.Context, environment, key string) error {
	name := naming.Secret(environment, key)
	if err := a.api.DeleteSecret(ctx, name); err != nil {
		return a.classify(name, "delete-secret", err)
	}
	return nil
}

// invokerMembers derives the IAM members granted run.invoker.
func invokerMembers(spec graph.Spec) []string {
	if spec.Properties["public"] == "true" {
		return []string{"allUsers"}
	}
	var members []string
	if users := spec.Properties["allowedUsers"]; users != "" {
		for _, u := range strings.Split(users, ",") {
			members = append(members, "user:"+strings.TrimSpace(u))
		}
	}
	return members
}

// classify wraps an error with transient/permanent classification from
// the HTTP status. Network-level failures are treated as transient.
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

// envVarName converts a config key to its env var form
// (databaseUrl -> DATABASE_URL).
func envVarName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
