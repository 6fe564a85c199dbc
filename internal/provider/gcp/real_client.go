package gcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	runEndpoint          = "https://run.googleapis.com/v2"
	secretsEndpoint      = "https://secretmanager.googleapis.com/v1"
	serviceUsageEndpoint = "https://serviceusage.googleapis.com/v1"
	cloudPlatformScope   = "https://www.googleapis.com/auth/cloud-platform"
)

// RealClient implements API against the Google Cloud REST surface using
// application default credentials.
type RealClient struct {
	project string
	http    *http.Client
}

// NewRealClient builds a client authenticated via application default
// credentials (GOOGLE_APPLICATION_CREDENTIALS or ambient metadata).
func NewRealClient(ctx context.Context, project string) (*RealClient, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve google credentials: %w", err)
	}
	return &RealClient{
		project: project,
		http:    oauth2.NewClient(ctx, ts),
	}, nil
}

// apiError carries the HTTP status so the adapter can classify
// transient vs permanent failures.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("google api error (status %d): %s", e.Status, e.Body)
}

func (c *RealClient) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// EnableService enables an API on the project via Service Usage.
func (c *RealClient) EnableService(ctx context.Context, apiName string) error {
	url := fmt.Sprintf("%s/projects/%s/services/%s:enable", serviceUsageEndpoint, c.project, apiName)
	err := c.do(ctx, http.MethodPost, url, map[string]any{}, nil)
	if isAlreadyDone(err) {
		return nil
	}
	return err
}

// UpsertService creates the Cloud Run service, falling back to a full
// update when it already exists.
func (c *RealClient) UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", c.project, req.Region)
	fullName := fmt.Sprintf("%s/services/%s", parent, req.Name)
	payload := serviceBody(req)

	createURL := fmt.Sprintf("%s/%s/services?serviceId=%s", runEndpoint, parent, req.Name)
	err := c.do(ctx, http.MethodPost, createURL, payload, nil)
	if isAlreadyDone(err) {
		patchURL := fmt.Sprintf("%s/%s", runEndpoint, fullName)
		err = c.do(ctx, http.MethodPatch, patchURL, payload, nil)
	}
	if err != nil {
		return nil, err
	}

	var svc struct {
		URI string `json:"uri"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", runEndpoint, fullName), nil, &svc); err != nil {
		return nil, err
	}
	return &ServiceResult{FullName: fullName, URI: svc.URI}, nil
}

// serviceBody builds the Cloud Run v2 service representation.
func serviceBody(req ServiceRequest) map[string]any {
	var envs []map[string]any
	for name, value := range req.EnvVars {
		envs = append(envs, map[string]any{"name": name, "value": value})
	}
	for name, secretName := range req.SecretEnvVars {
		envs = append(envs, map[string]any{
			"name": name,
			"valueSource": map[string]any{
				"secretKeyRef": map[string]any{
					"secret":  secretName,
					"version": "latest",
				},
			},
		})
	}

	return map[string]any{
		"template": map[string]any{
			"scaling": map[string]any{
				"maxInstanceCount": req.MaxInstances,
			},
			"containers": []map[string]any{{
				"image": req.Image,
				"env":   envs,
				"resources": map[string]any{
					"limits": map[string]string{
						"cpu":    req.CPU,
						"memory": req.Memory,
					},
				},
			}},
		},
	}
}

// DeleteService removes a Cloud Run service.
func (c *RealClient) DeleteService(ctx context.Context, fullName string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", runEndpoint, fullName), nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// SetInvokerPolicy replaces the run.invoker binding on the service.
func (c *RealClient) SetInvokerPolicy(ctx context.Context, fullName string, members []string) error {
	url := fmt.Sprintf("%s/%s:setIamPolicy", runEndpoint, fullName)
	body := map[string]any{
		"policy": map[string]any{
			"bindings": []map[string]any{{
				"role":    "roles/run.invoker",
				"members": members,
			}},
		},
	}
	return c.do(ctx, http.MethodPost, url, body, nil)
}

// CreateSecret ensures the secret container exists.
func (c *RealClient) CreateSecret(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/projects/%s/secrets?secretId=%s", secretsEndpoint, c.project, name)
	body := map[string]any{
		"replication": map[string]any{"automatic": map[string]any{}},
	}
	err := c.do(ctx, http.MethodPost, url, body, nil)
	if isAlreadyDone(err) {
		return nil
	}
	return err
}

// AddSecretVersion appends a new secret version.
func (c *RealClient) AddSecretVersion(ctx context.Context, name string, payload []byte) (string, error) {
	url := fmt.Sprintf("%s/projects/%s/secrets/%s:addVersion", secretsEndpoint, c.project, name)
	body := map[string]any{
		"payload": map[string]any{
			"data": base64.StdEncoding.EncodeToString(payload),
		},
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodPost, url, body, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// DeleteSecret removes the secret and all of its versions.
func (c *RealClient) DeleteSecret(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/projects/%s/secrets/%s", secretsEndpoint, c.project, name)
	err := c.do(ctx, http.MethodDelete, url, nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func isAlreadyDone(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return false
	}
	return (ae.Status == http.StatusConflict && strings.Contains(ae.Body, "ALREADY_EXISTS")) ||
		(ae.Status == http.StatusBadRequest && strings.Contains(ae.Body, "already enabled"))
}

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
