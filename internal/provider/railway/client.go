// Package railway adapts resource specs to Railway: services for
// compute, template deployments for Postgres and Redis, and sensitive
// environment variables for secret bindings (Railway has no separate
// secret store).
package railway

import "context"

// ServiceRequest describes a Railway service to create or update. For
// database and cache kinds the image is empty and Engine/EngineVersion
// select the template.
type ServiceRequest struct {
	Environment   string
	Name          string
	Image         string
	Engine        string
	EngineVersion string
	Replicas      int
}

// ServiceResult is the provider-assigned identity of a Railway service.
type ServiceResult struct {
	ServiceID string
	Domain    string
	// ConnectionURL is set for database/cache services.
	ConnectionURL string
}

// API is the narrow surface of Railway's GraphQL API the adapter needs.
type API interface {
	// UpsertService creates or redeploys a service in the named
	// Railway environment, creating the environment on first use.
	UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error)

	// DeleteService removes a service. Missing services are success.
	DeleteService(ctx context.Context, serviceID string) error

	// UpsertVariable sets an environment-scoped variable. Sensitive
	// variables are Railway's secret mechanism: masked in its UI and
	// excluded from build logs.
	UpsertVariable(ctx context.Context, environment, name, value string, sensitive bool) error

	// DeleteVariable removes a variable. Missing variables are success.
	DeleteVariable(ctx context.Context, environment, name string) error
}
