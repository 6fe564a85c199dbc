package modal

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

const apiEndpoint = "https://api.modal.com/v1"

// RealClient implements API against Modal's HTTP API using token-id /
// token-secret credentials (MODAL_TOKEN_ID / MODAL_TOKEN_SECRET).
type RealClient struct {
	tokenID     string
	tokenSecret string
	endpoint    string
	http        *http.Client
}

// NewRealClient creates a Modal API client.
func NewRealClient(tokenID, tokenSecret string) *RealClient {
	return &RealClient{
		tokenID:     tokenID,
		tokenSecret: tokenSecret,
		endpoint:    apiEndpoint,
		http:        http.DefaultClient,
	}
}

// apiError carries the HTTP status for transient/permanent classification.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("modal api error (status %d): %s", e.Status, e.Message)
}

func (c *RealClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Modal-Token-Id", c.tokenID)
	req.Header.Set("Modal-Token-Secret", c.tokenSecret)

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
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// DeployApp creates or redeploys an app.
func (c *RealClient) DeployApp(ctx context.Context, req AppRequest) (*AppResult, error) {
	var out struct {
		AppID string `json:"app_id"`
		URL   string `json:"web_url"`
	}
	err := c.do(ctx, http.MethodPost, "/apps/deploy", map[string]any{
		"name":    req.Name,
		"image":   req.Image,
		"cpu":     req.CPU,
		"memory":  req.Memory,
		"secrets": req.Secrets,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &AppResult{AppID: out.AppID, URL: out.URL}, nil
}

// StopApp stops and removes an app.
func (c *RealClient) StopApp(ctx context.Context, appID string) error {
	err := c.do(ctx, http.MethodPost, "/apps/"+appID+"/stop", nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// PutSecret creates or updates a named secret.
func (c *RealClient) PutSecret(ctx context.Context, name string, entries map[string]string) error {
	return c.do(ctx, http.MethodPut, "/secrets/"+name, map[string]any{
		"entries": entries,
	}, nil)
}

// DeleteSecret removes a named secret.
func (c *RealClient) DeleteSecret(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/secrets/"+name, nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
