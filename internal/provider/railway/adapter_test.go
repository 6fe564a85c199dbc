package railway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
)

func TestApply_ComputeService(t *testing.T) {
	t.Parallel()
	var captured ServiceRequest
	mock := &MockAPI{
		UpsertServiceFunc: func(_ context.Context, req ServiceRequest) (*ServiceResult, error) {
			captured = req
			return &ServiceResult{ServiceID: "svc-1", Domain: "pr-9-frontend.up.railway.app"}, nil
		},
	}
	a := NewAdapter(mock)

	spec := graph.Spec{
		ID:   "frontend",
		Kind: graph.Compute,
		Properties: map[string]string{
			"image":    "ghcr.io/test/frontend:sha1",
			"replicas": "2",
		},
	}
	state, err := a.Apply(context.Background(), "pr-9", spec, nil)
	require.NoError(t, err)
	require.Equal(t, "pr-9-frontend", captured.Name)
	require.Equal(t, 2, captured.Replicas)
	require.Equal(t, "https://pr-9-frontend.up.railway.app", state.URL)
	require.Equal(t, "svc-1", state.ProviderID)
}

func TestApply_DatabaseService(t *testing.T) {
	t.Parallel()
	a := NewAdapter(&MockAPI{})
	spec := graph.Spec{
		ID:   "postgres",
		Kind: graph.Database,
		Properties: map[string]string{
			"engine":        "postgres",
			"engineVersion": "16",
		},
	}
	state, err := a.Apply(context.Background(), "dev", spec, nil)
	require.NoError(t, err)
	require.Contains(t, state.URL, "postgres://")
}

func TestApply_MissingImageIsPermanent(t *testing.T) {
	t.Parallel()
	a := NewAdapter(&MockAPI{})
	spec := graph.Spec{ID: "frontend", Kind: graph.Compute, Properties: map[string]string{}}

	_, err := a.Apply(context.Background(), "dev", spec, nil)
	require.Error(t, err)
	require.False(t, provider.IsTransient(err))
}

func TestApply_RateLimitIsTransient(t *testing.T) {
	t.Parallel()
	mock := &MockAPI{
		UpsertServiceFunc: func(context.Context, ServiceRequest) (*ServiceResult, error) {
			return nil, &apiError{Status: http.StatusTooManyRequests, Message: "slow down"}
		},
	}
	spec := graph.Spec{ID: "frontend", Kind: graph.Compute, Properties: map[string]string{"image": "x"}}
	_, err := NewAdapter(mock).Apply(context.Background(), "dev", spec, nil)
	require.True(t, provider.IsTransient(err))
}

func TestWriteSecret_SensitiveVariable(t *testing.T) {
	t.Parallel()
	mock := &MockAPI{}
	a := NewAdapter(mock)

	ref, err := a.WriteSecret(context.Background(), "pr-9", "databaseUrl", "postgres://u:p@h/db")
	require.NoError(t, err)
	require.Equal(t, "railway://pr-9/DATABASE_URL", ref)
	require.Equal(t, "postgres://u:p@h/db", mock.Variables["pr-9/DATABASE_URL"])
	require.True(t, mock.Sensitive["pr-9/DATABASE_URL"])
}

func TestSecretVariableName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "DATABASE_URL", secretVariableName("databaseUrl"))
	require.Equal(t, "JWT_SECRET", secretVariableName("jwtSecret"))
}
