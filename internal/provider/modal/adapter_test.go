package modal

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
)

func TestApply_DeploysApp(t *testing.T) {
	t.Parallel()
	var captured AppRequest
	mock := &MockAPI{
		DeployAppFunc: func(_ context.Context, req AppRequest) (*AppResult, error) {
			captured = req
			return &AppResult{AppID: "ap-1", URL: "https://pr-4-ml-worker.modal.run"}, nil
		},
	}
	a := NewAdapter(mock)

	spec := graph.Spec{
		ID:   "ml-worker",
		Kind: graph.Compute,
		Properties: map[string]string{
			"image":  "ghcr.io/test/worker:sha1",
			"cpu":    "1",
			"memory": "1Gi",
		},
		Secrets: []string{"apiKey", "databaseUrl"},
	}
	state, err := a.Apply(context.Background(), "pr-4", spec, nil)
	require.NoError(t, err)
	require.Equal(t, "pr-4-ml-worker", captured.Name)
	require.Equal(t, []string{"pr-4-api-key", "pr-4-database-url"}, captured.Secrets)
	require.Equal(t, "ap-1", state.ProviderID)
	require.Equal(t, "https://pr-4-ml-worker.modal.run", state.URL)
}

func TestApply_NonComputeIsPermanent(t *testing.T) {
	t.Parallel()
	a := NewAdapter(&MockAPI{})
	spec := graph.Spec{ID: "postgres", Kind: graph.Database}

	_, err := a.Apply(context.Background(), "dev", spec, nil)
	require.Error(t, err)
	require.False(t, provider.IsTransient(err))
}

func TestApply_MissingImageIsPermanent(t *testing.T) {
	t.Parallel()
	a := NewAdapter(&MockAPI{})
	spec := graph.Spec{ID: "ml-worker", Kind: graph.Compute, Properties: map[string]string{}}

	_, err := a.Apply(context.Background(), "dev", spec, nil)
	require.Error(t, err)
	require.False(t, provider.IsTransient(err))
}

func TestApply_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()
	mock := &MockAPI{
		DeployAppFunc: func(context.Context, AppRequest) (*AppResult, error) {
			return nil, &apiError{Status: http.StatusBadGateway, Message: "upstream"}
		},
	}
	spec := graph.Spec{ID: "ml-worker", Kind: graph.Compute, Properties: map[string]string{"image": "x"}}
	_, err := NewAdapter(mock).Apply(context.Background(), "dev", spec, nil)
	require.True(t, provider.IsTransient(err))
}

func TestWriteSecret_NamedSecret(t *testing.T) {
	t.Parallel()
	mock := &MockAPI{}
	a := NewAdapter(mock)

	ref, err := a.WriteSecret(context.Background(), "pr-4", "apiKey", "sk-123")
	require.NoError(t, err)
	require.Equal(t, "modal://pr-4-api-key", ref)
	require.Equal(t, map[string]string{"API_KEY": "sk-123"}, mock.Secrets["pr-4-api-key"])
}

func TestDeleteSecret_RemovesNamedSecret(t *testing.T) {
	t.Parallel()
	mock := &MockAPI{Secrets: map[string]map[string]string{
		"pr-4-api-key": {"API_KEY": "sk-123"},
	}}
	a := NewAdapter(mock)

	require.NoError(t, a.DeleteSecret(context.Background(), "pr-4", "apiKey"))
	require.NotContains(t, mock.Secrets, "pr-4-api-key")
}
