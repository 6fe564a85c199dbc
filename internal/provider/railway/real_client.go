package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const graphqlEndpoint = "https://backboard.railway.app/graphql/v2"

// RealClient implements API against Railway's GraphQL endpoint.
type RealClient struct {
	projectID string
	token     string
	endpoint  string
	http      *http.Client
}

// NewRealClient creates a client for one Railway project. The token is
// a project or account token (RAILWAY_TOKEN).
func NewRealClient(projectID, token string) *RealClient {
	return &RealClient{
		projectID: projectID,
		token:     token,
		endpoint:  graphqlEndpoint,
		http:      http.DefaultClient,
	}
}

// apiError carries the HTTP status for transient/permanent classification.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("railway api error (status %d): %s", e.Status, e.Message)
}

// execute posts one GraphQL operation and decodes data into out.
func (c *RealClient) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

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
		return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &apiError{Status: resp.StatusCode, Message: envelope.Errors[0].Message}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode graphql data: %w", err)
		}
	}
	return nil
}

const environmentUpsertQuery = `
mutation($projectId: String!, $name: String!) {
  environmentUpsert(input: {projectId: $projectId, name: $name}) { id }
}`

const serviceUpsertQuery = `
mutation($projectId: String!, $environmentId: String!, $name: String!, $source: ServiceSourceInput, $replicas: Int) {
  serviceUpsert(input: {projectId: $projectId, environmentId: $environmentId, name: $name, source: $source, numReplicas: $replicas}) {
    id
    domain
    connectionUrl
  }
}`

const serviceDeleteQuery = `
mutation($id: String!) {
  serviceDelete(id: $id)
}`

const variableUpsertQuery = `
mutation($projectId: String!, $environmentId: String!, $name: String!, $value: String!, $isSensitive: Boolean!) {
  variableUpsert(input: {projectId: $projectId, environmentId: $environmentId, name: $name, value: $value, isSensitive: $isSensitive})
}`

const variableDeleteQuery = `
mutation($projectId: String!, $environmentId: String!, $name: String!) {
  variableDelete(input: {projectId: $projectId, environmentId: $environmentId, name: $name})
}`

// ensureEnvironment creates (or finds) the Railway environment and
// returns its id.
func (c *RealClient) ensureEnvironment(ctx context.Context, name string) (string, error) {
	var out struct {
		EnvironmentUpsert struct {
			ID string `json:"id"`
		} `json:"environmentUpsert"`
	}
	err := c.execute(ctx, environmentUpsertQuery, map[string]any{
		"projectId": c.projectID,
		"name":      name,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.EnvironmentUpsert.ID, nil
}

// UpsertService creates or redeploys a service.
func (c *RealClient) UpsertService(ctx context.Context, req ServiceRequest) (*ServiceResult, error) {
	envID, err := c.ensureEnvironment(ctx, req.Environment)
	if err != nil {
		return nil, err
	}

	var source map[string]any
	if req.Image != "" {
		source = map[string]any{"image": req.Image}
	} else if req.Engine != "" {
		source = map[string]any{"image": fmt.Sprintf("%s:%s", req.Engine, req.EngineVersion)}
	}

	replicas := req.Replicas
	if replicas < 1 {
		replicas = 1
	}

	var out struct {
		ServiceUpsert struct {
			ID            string `json:"id"`
			Domain        string `json:"domain"`
			ConnectionURL string `json:"connectionUrl"`
		} `json:"serviceUpsert"`
	}
	err = c.execute(ctx, serviceUpsertQuery, map[string]any{
		"projectId":     c.projectID,
		"environmentId": envID,
		"name":          req.Name,
		"source":        source,
		"replicas":      replicas,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &ServiceResult{
		ServiceID:     out.ServiceUpsert.ID,
		Domain:        out.ServiceUpsert.Domain,
		ConnectionURL: out.ServiceUpsert.ConnectionURL,
	}, nil
}

// DeleteService removes a service.
func (c *RealClient) DeleteService(ctx context.Context, serviceID string) error {
	err := c.execute(ctx, serviceDeleteQuery, map[string]any{"id": serviceID}, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// UpsertVariable sets an environment-scoped variable.
func (c *RealClient) UpsertVariable(ctx context.Context, environment, name, value string, sensitive bool) error {
	envID, err := c.ensureEnvironment(ctx, environment)
	if err != nil {
		return err
	}
	return c.execute(ctx, variableUpsertQuery, map[string]any{
		"projectId":     c.projectID,
		"environmentId": envID,
		"name":          name,
		"value":         value,
		"isSensitive":   sensitive,
	}, nil)
}

// DeleteVariable removes a variable.
func (c *RealClient) DeleteVariable(ctx context.Context, environment, name string) error {
	envID, err := c.ensureEnvironment(ctx, environment)
	if err != nil {
		return err
	}
	err = c.execute(ctx, variableDeleteQuery, map[string]any{
		"projectId":     c.projectID,
		"environmentId": envID,
		"name":          name,
	}, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == http.StatusNotFound || strings.Contains(ae.Message, "not found")
}
