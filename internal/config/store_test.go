package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEnvironments(t *testing.T) *EnvironmentsFile {
	t.Helper()
	return &EnvironmentsFile{
		Environments: []Environment{
			{
				Name:      "dev",
				Kind:      Persistent,
				Providers: []string{"gcp", "railway"},
				Preset:    "fullstack",
			},
			{
				Name:      "production",
				Kind:      Persistent,
				Providers: []string{"gcp", "railway"},
				Preset:    "fullstack-cache",
				Overrides: map[string]string{"replicas": "3"},
			},
		},
		Ephemeral: EphemeralTemplate{
			Providers: []string{"gcp", "railway"},
			Preset:    "fullstack",
		},
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), []byte("test-master-key"), testEnvironments(t))
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresMasterKey(t *testing.T) {
	t.Parallel()
	_, err := NewStore(t.TempDir(), nil, testEnvironments(t))
	require.Error(t, err)
}

func TestSet_SecretEncryptedAtRest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewStore(dir, []byte("test-master-key"), testEnvironments(t))
	require.NoError(t, err)

	require.NoError(t, s.Set("dev", "databaseUrl", "postgres://u:hunter2@db/app", Plain))

	// The plaintext must not appear anywhere in the persisted blob,
	// even though the caller passed classification "plain": databaseUrl
	// is a well-known secret key.
	raw, err := os.ReadFile(filepath.Join(dir, "overrides", "dev.json"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "hunter2")

	var entries map[string]storedEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Equal(t, Secret, entries["databaseUrl"].Classification)
	require.Empty(t, entries["databaseUrl"].Value)
	require.NotEmpty(t, entries["databaseUrl"].Sealed)
}

func TestGet_MasksSecretWithoutReveal(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	require.NoError(t, s.Set("dev", "apiKey", "sk-live-abc123", Secret))

	masked, err := s.Get("dev", "apiKey", false)
	require.NoError(t, err)
	require.Equal(t, "********", masked.Value)

	revealed, err := s.Get("dev", "apiKey", true)
	require.NoError(t, err)
	require.Equal(t, "sk-live-abc123", revealed.Value)
}

func TestSet_TypeMismatchAgainstDefault(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	err := s.Set("dev", "replicas", "many", Plain)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "replicas", mismatch.Key)
	require.Equal(t, IntType, mismatch.Declared)
}

func TestList_MasksSecrets(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	require.NoError(t, s.Set("dev", "apiKey", "sk-live-abc123", Secret))
	require.NoError(t, s.Set("dev", "cpu", "2", Plain))

	entries, err := s.List("dev")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NotEqual(t, "sk-live-abc123", e.Value)
	}
}

func TestSet_WritesOverridesAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewStore(dir, []byte("test-master-key"), testEnvironments(t))
	require.NoError(t, err)

	require.NoError(t, s.Set("dev", "cpu", "2", Plain))
	require.NoError(t, s.Set("dev", "memory", "512Mi", Plain))

	// The write commits via rename; no temp file may survive and the
	// committed file must always be complete JSON.
	leftovers, err := filepath.Glob(filepath.Join(dir, "overrides", "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)

	raw, err := os.ReadFile(filepath.Join(dir, "overrides", "dev.json"))
	require.NoError(t, err)
	var entries map[string]storedEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
}

func TestStore_WrongMasterKeyFailsDecrypt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s1, err := NewStore(dir, []byte("key-one"), testEnvironments(t))
	require.NoError(t, err)
	require.NoError(t, s1.Set("dev", "apiKey", "value", Secret))

	s2, err := NewStore(dir, []byte("key-two"), testEnvironments(t))
	require.NoError(t, err)
	_, err = s2.Get("dev", "apiKey", true)
	require.Error(t, err)
}
