package naming

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPRStack(t *testing.T) {
	t.Parallel()
	require.Equal(t, "pr-123", PRStack(123))
}

func TestIsEphemeral(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want bool
	}{
		{"pr-123", true},
		{"pr-0", true},
		{"production", false},
		{"dev", false},
		{"pr-", false},
		{"pr-abc", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, IsEphemeral(tt.name), tt.name)
	}
}

func TestPRNumber(t *testing.T) {
	t.Parallel()
	n, ok := PRNumber("pr-77")
	require.True(t, ok)
	require.Equal(t, 77, n)

	_, ok = PRNumber("qa")
	require.False(t, ok)
}

func TestSecretNaming(t *testing.T) {
	t.Parallel()
	require.Equal(t, "pr-12-database-url", Secret("pr-12", "databaseUrl"))
	require.Equal(t, "dev-api-key", Secret("dev", "apiKey"))
	require.Equal(t, "dev-backend", Resource("dev", "backend"))
}
