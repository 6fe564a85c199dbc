// Package modal adapts resource specs to Modal: serverless apps for
// compute workers and named Modal secrets for secret bindings.
package modal

import "context"

// AppRequest describes a Modal app deployment.
type AppRequest struct {
	Name   string
	Image  string
	CPU    string
	Memory string
	// Secrets lists Modal secret names mounted into the app.
	Secrets []string
}

// AppResult is the provider-assigned identity of a deployed app.
type AppResult struct {
	AppID string
	URL   string
}

// API is the narrow surface of Modal's HTTP API the adapter needs.
type API interface {
	// DeployApp creates or redeploys an app.
	DeployApp(ctx context.Context, req AppRequest) (*AppResult, error)

	// StopApp stops and removes an app. Missing apps are success.
	StopApp(ctx context.Context, appID string) error

	// PutSecret creates or updates a named secret with one entry.
	PutSecret(ctx context.Context, name string, entries map[string]string) error

	// DeleteSecret removes a named secret. Missing is success.
	DeleteSecret(ctx context.Context, name string) error
}
