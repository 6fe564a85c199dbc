package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/provider"
)

func newRegistry(mocks ...*provider.Mock) *provider.Registry {
	reg := provider.NewRegistry()
	for _, m := range mocks {
		reg.Register(m)
	}
	return reg
}

func secretEntry(key, value string) config.Entry {
	return config.Entry{Key: key, Value: value, Type: config.StringType, Classification: config.Secret}
}

func TestPropagate_WritesAllEntries(t *testing.T) {
	t.Parallel()
	mock := provider.NewMock("gcp")
	p := NewPropagator(newRegistry(mock))

	bindings, err := p.Propagate(context.Background(), "pr-7", []config.Entry{
		secretEntry("databaseUrl", "postgres://u:p@h/db"),
		secretEntry("jwtSecret", "s3cr3t"),
	}, "gcp", nil)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	require.Len(t, mock.SecretWrites(), 2)
	for _, b := range bindings {
		require.Equal(t, 1, b.Version)
		require.Equal(t, "gcp", b.Provider)
		require.NotEmpty(t, b.Ref)
	}
}

func TestPropagate_UnchangedValueIsNoOp(t *testing.T) {
	t.Parallel()
	mock := provider.NewMock("railway")
	p := NewPropagator(newRegistry(mock))
	entries := []config.Entry{secretEntry("apiKey", "sk-123")}

	first, err := p.Propagate(context.Background(), "dev", entries, "railway", nil)
	require.NoError(t, err)
	require.Len(t, mock.SecretWrites(), 1)

	second, err := p.Propagate(context.Background(), "dev", entries, "railway", first)
	require.NoError(t, err)
	require.Len(t, mock.SecretWrites(), 1, "unchanged value must not be rewritten")
	require.Equal(t, first, second)
}

func TestPropagate_ChangedValueBumpsVersion(t *testing.T) {
	t.Parallel()
	mock := provider.NewMock("gcp")
	p := NewPropagator(newRegistry(mock))

	first, err := p.Propagate(context.Background(), "dev",
		[]config.Entry{secretEntry("databaseUrl", "postgres://old")}, "gcp", nil)
	require.NoError(t, err)

	second, err := p.Propagate(context.Background(), "dev",
		[]config.Entry{secretEntry("databaseUrl", "postgres://new")}, "gcp", first)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 2, second[0].Version)
	require.NotEqual(t, first[0].ContentHash, second[0].ContentHash)
	require.Len(t, mock.SecretWrites(), 2)
}

func TestPropagate_WriteFailureReturnsSecretError(t *testing.T) {
	t.Parallel()
	mock := provider.NewMock("gcp")
	mock.WriteSecretFunc = func(context.Context, string, string, string) (string, error) {
		return "", errors.New("permission denied")
	}
	p := NewPropagator(newRegistry(mock))

	_, err := p.Propagate(context.Background(), "dev",
		[]config.Entry{secretEntry("apiKey", "sk")}, "gcp", nil)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "apiKey", serr.Key)
	require.Equal(t, "gcp", serr.Provider)
	require.NotContains(t, serr.Error(), "sk")
}

func TestPropagate_UnknownProvider(t *testing.T) {
	t.Parallel()
	p := NewPropagator(provider.NewRegistry())
	_, err := p.Propagate(context.Background(), "dev",
		[]config.Entry{secretEntry("apiKey", "sk")}, "gcp", nil)
	require.Error(t, err)
}

func TestRevoke_DeletesProviderSecrets(t *testing.T) {
	t.Parallel()
	mock := provider.NewMock("modal")
	p := NewPropagator(newRegistry(mock))

	err := p.Revoke(context.Background(), "pr-7", []Binding{
		{Key: "apiKey", Provider: "modal"},
		{Key: "databaseUrl", Provider: "modal"},
	})
	require.NoError(t, err)
	require.Len(t, mock.SecretDeletes(), 2)
}

func TestContentHash_NeverEchoesValue(t *testing.T) {
	t.Parallel()
	hash := ContentHash("hunter2")
	require.Len(t, hash, 64)
	require.NotContains(t, hash, "hunter2")
}
