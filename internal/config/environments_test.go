package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleEnvironmentsYAML = `
environments:
  - name: dev
    kind: persistent
    providers: [gcp, railway]
    preset: fullstack-cache
    overrides:
      cpu: "2"
  - name: production
    kind: persistent
    providers: [gcp, railway, modal]
    preset: fullstack-cache
    allowed_users:
      - ops@example.com
    tier:
      cpu: "4"
      memory: 2Gi
      max_replicas: 10
ephemeral:
  providers: [gcp, railway]
  preset: fullstack
`

func writeEnvironmentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skiff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadEnvironmentsFile(t *testing.T) {
	t.Parallel()
	f, err := LoadEnvironmentsFile(writeEnvironmentsFile(t, sampleEnvironmentsYAML))
	require.NoError(t, err)
	require.Len(t, f.Environments, 2)

	prod, err := f.Environment("production")
	require.NoError(t, err)
	require.Equal(t, Persistent, prod.Kind)
	require.Equal(t, []string{"ops@example.com"}, prod.AllowedUsers)
	require.Equal(t, 10, prod.Tier.MaxReplicas)
}

func TestLoadEnvironmentsFile_DuplicateNames(t *testing.T) {
	t.Parallel()
	content := `
environments:
  - name: dev
    kind: persistent
    providers: [gcp]
  - name: dev
    kind: persistent
    providers: [railway]
`
	_, err := LoadEnvironmentsFile(writeEnvironmentsFile(t, content))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate environment")
}

func TestLoadEnvironmentsFile_EphemeralDefaults(t *testing.T) {
	t.Parallel()
	f, err := LoadEnvironmentsFile(writeEnvironmentsFile(t, "environments: []\n"))
	require.NoError(t, err)
	require.Equal(t, "fullstack", f.Ephemeral.Preset)
	require.NotEmpty(t, f.Ephemeral.Providers)
}
