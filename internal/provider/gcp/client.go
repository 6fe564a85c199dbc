// Package gcp adapts resource specs to Google Cloud: Cloud Run services
// for compute and Secret Manager for secret bindings.
package gcp

import "context"

// ServiceRequest describes a Cloud Run service to create or update.
type ServiceRequest struct {
	Name         string
	Region       string
	Image        string
	CPU          string
	Memory       string
	MaxInstances int
	EnvVars      map[string]string
	// SecretEnvVars maps env var names to Secret Manager secret names;
	// values are mounted by reference, never inlined.
	SecretEnvVars map[string]string
}

// ServiceResult is the provider-assigned identity of a Cloud Run service.
type ServiceResult struct {
	FullName string // projects/{p}/locations/{l}/services/{s}
	URI      string
}

// API is the narrow surface of Google Cloud the adapter needs. It exists
// so tests can run against MockAPI and so the REST plumbing stays out of
// the adapter logic.
type API interface {
	// EnableService turns on an API (e.g. run.googleapis.com) for the
	// project. Enabling an already-enabled API is a no-op.
	EnableService(ctx context.Context, apiName string) error

	// UpsertService creates or fully replaces a Cloud Run service.
	UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error)

	// DeleteService removes a Cloud Run service. Missing services are success.
	DeleteService(ctx context.Context, fullName string) error

	// SetInvokerPolicy grants run.invoker on the service to the given
	// members (e.g. "allUsers", "user:alice@example.com").
	SetInvokerPolicy(ctx context.Context, fullName string, members []string) error

	// CreateSecret ensures the named secret exists in Secret Manager.
	CreateSecret(ctx context.Context, name string) error

	// AddSecretVersion appends a new version and returns its full
	// resource name. Old versions are retained.
	AddSecretVersion(ctx context.Context, name string, payload []byte) (string, error)

	// DeleteSecret removes a secret and all versions. Missing is success.
	DeleteSecret(ctx context.Context, name string) error
}
