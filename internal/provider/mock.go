package provider

import (
	"context"
	"sync"
	"time"

	"github.com/skiffhq/skiff/internal/graph"
)

// Mock is an in-memory Adapter and SecretWriter used in tests. All calls
// are counted so tests can assert no-op idempotence (zero provider
// mutations on an unchanged plan).
type Mock struct {
	ProviderName string

	// Optional overrides. When nil, the mock succeeds with synthetic state.
	ApplyFunc        func(ctx context.Context, environment string, spec graph.Spec, previous *ResourceState) (*ResourceState, error)
	DestroyFunc      func(ctx context.Context, state ResourceState) error
	WriteSecretFunc  func(ctx context.Context, environment, key, value string) (string, error)
	DeleteSecretFunc func(ctx context.Context, environment, key string) error

	mu               sync.Mutex
	applyCalls       []string
	destroyCalls     []string
	secretWrites     []string
	secretDeletes    []string
	applyStartedAt   map[string]time.Time
	destroyStartedAt map[string]time.Time
}

// NewMock creates a mock adapter for the given provider name.
func NewMock(name string) *Mock {
	return &Mock{
		ProviderName:     name,
		applyStartedAt:   make(map[string]time.Time),
		destroyStartedAt: make(map[string]time.Time),
	}
}

func (m *Mock) Name() string {
	return m.ProviderName
}

func (m *Mock) Apply(ctx context.Context, environment string, spec graph.Spec, previous *ResourceState) (*ResourceState, error) {
	m.mu.Lock()
	m.applyCalls = append(m.applyCalls, spec.ID)
	m.applyStartedAt[spec.ID] = time.Now()
	m.mu.Unlock()

	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, environment, spec, previous)
	}
	return &ResourceState{
		ID:             spec.ID,
		Provider:       m.ProviderName,
		ProviderID:     m.ProviderName + "/" + environment + "/" + spec.ID,
		URL:            "https://" + spec.ID + "." + environment + ".example.test",
		PropertiesHash: spec.PropertiesHash(),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

func (m *Mock) Destroy(ctx context.Context, state ResourceState) error {
	m.mu.Lock()
	m.destroyCalls = append(m.destroyCalls, state.ID)
	m.destroyStartedAt[state.ID] = time.Now()
	m.mu.Unlock()

	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, state)
	}
	return nil
}

func (m *Mock) WriteSecret(ctx context.Context, environment, key, value string) (string, error) {
	m.mu.Lock()
	m.secretWrites = append(m.secretWrites, key)
	m.mu.Unlock()

	if m.WriteSecretFunc != nil {
		return m.WriteSecretFunc(ctx, environment, key, value)
	}
	return m.ProviderName + "://secrets/" + environment + "-" + key, nil
}

func (m *Mock) DeleteSecret(ctx context.Context, environment, key string) error {
	m.mu.Lock()
	m.secretDeletes = append(m.secretDeletes, key)
	m.mu.Unlock()

	if m.DeleteSecretFunc != nil {
		return m.DeleteSecretFunc(ctx, environment, key)
	}
	return nil
}

// ApplyCalls returns the resource ids applied, in call order.
func (m *Mock) ApplyCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applyCalls...)
}

// DestroyCalls returns the resource ids destroyed, in call order.
func (m *Mock) DestroyCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.destroyCalls...)
}

// SecretWrites returns the secret keys written, in call order.
func (m *Mock) SecretWrites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.secretWrites...)
}

// SecretDeletes returns the secret keys deleted, in call order.
func (m *Mock) SecretDeletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.secretDeletes...)
}

// Calls returns the total number of mutating provider calls.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applyCalls) + len(m.destroyCalls) + len(m.secretWrites) + len(m.secretDeletes)
}

// AppliedAt returns when Apply was called for a resource id.
func (m *Mock) AppliedAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.applyStartedAt[id]
	return ts, ok
}
