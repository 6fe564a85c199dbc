package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/state"
	"github.com/skiffhq/skiff/internal/util/retry"
)

func testEnv(name string) config.Environment {
	return config.Environment{Name: name, Kind: config.Persistent, Providers: []string{"gcp", "railway", "modal"}}
}

func fastRetry() Option {
	return WithRetryOptions(
		retry.WithMaxAttempts(3),
		retry.WithBaseDelay(time.Millisecond),
		retry.WithMaxDelay(2*time.Millisecond),
	)
}

func newReconciler(t *testing.T, mocks ...*provider.Mock) (*Reconciler, *provider.Registry) {
	t.Helper()
	reg := provider.NewRegistry()
	for _, m := range mocks {
		reg.Register(m)
	}
	r := New(state.NewFileStore(t.TempDir()), reg, fastRetry())
	return r, reg
}

func spec(id string, kind graph.Kind, providerName string, deps ...string) graph.Spec {
	return graph.Spec{
		ID:         id,
		Kind:       kind,
		Provider:   providerName,
		DependsOn:  deps,
		Properties: map[string]string{"image": "ghcr.io/test/" + id + ":v1"},
	}
}

func plainEntries() map[string]config.Entry {
	return map[string]config.Entry{
		"backendTech": {Key: "backendTech", Value: "fastify", Type: config.StringType, Classification: config.Plain},
	}
}

func withSecret(entries map[string]config.Entry, key, value string) map[string]config.Entry {
	out := make(map[string]config.Entry, len(entries)+1)
	for k, v := range entries {
		out[k] = v
	}
	out[key] = config.Entry{Key: key, Value: value, Type: config.StringType, Classification: config.Secret}
	return out
}

func TestApply_AppliesInDependencyOrder(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("postgres", graph.Database, "gcp"),
		spec("backend", graph.Compute, "gcp", "postgres"),
	}}

	result, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	require.NoError(t, err)
	require.Equal(t, state.Applied, result.Phase)
	require.Equal(t, []string{"postgres", "backend"}, gcp.ApplyCalls())
	require.Contains(t, result.Outputs, "backend")
}

func TestApply_UnchangedConfigIsNoOp(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("backend", graph.Compute, "gcp"),
	}}
	entries := plainEntries()

	_, err := r.Apply(context.Background(), testEnv("dev"), entries, plan)
	require.NoError(t, err)
	before := gcp.Calls()

	result, err := r.Apply(context.Background(), testEnv("dev"), entries, plan)
	require.NoError(t, err)
	require.Equal(t, before, gcp.Calls(), "unchanged config must produce zero provider mutations")
	require.Equal(t, state.Applied, result.Phase)
}

func TestApply_SecretsPropagateBeforeDependentCompute(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	var writesWhenApplied int
	gcp.ApplyFunc = func(_ context.Context, environment string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		if s.ID == "backend" {
			writesWhenApplied = len(gcp.SecretWrites())
		}
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp)

	binding := graph.Spec{ID: "backend-secrets", Kind: graph.SecretBinding, Provider: "gcp", Secrets: []string{"databaseUrl"}}
	backend := spec("backend", graph.Compute, "gcp", "backend-secrets")
	backend.Secrets = []string{"databaseUrl"}
	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{binding, backend}}

	entries := withSecret(plainEntries(), "databaseUrl", "postgres://u:p@h/db")
	_, err := r.Apply(context.Background(), testEnv("dev"), entries, plan)
	require.NoError(t, err)
	require.Equal(t, 1, writesWhenApplied, "secret must be written before the compute apply")
}

func TestApply_ChangedSecretCreatesExactlyOneNewVersion(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	r, _ := newReconciler(t, gcp)
	ctx := context.Background()

	makePlan := func(fingerprint string) *graph.Plan {
		binding := graph.Spec{ID: "backend-secrets", Kind: graph.SecretBinding, Provider: "gcp", Secrets: []string{"databaseUrl"}}
		backend := spec("backend", graph.Compute, "gcp", "backend-secrets")
		backend.Secrets = []string{"databaseUrl"}
		backend.Properties["secretsFingerprint"] = fingerprint
		return &graph.Plan{Environment: "dev", Specs: []graph.Spec{binding, backend}}
	}

	_, err := r.Apply(ctx, testEnv("dev"), withSecret(plainEntries(), "databaseUrl", "postgres://old"), makePlan("f1"))
	require.NoError(t, err)
	require.Equal(t, []string{"databaseUrl"}, gcp.SecretWrites())

	_, err = r.Apply(ctx, testEnv("dev"), withSecret(plainEntries(), "databaseUrl", "postgres://new"), makePlan("f2"))
	require.NoError(t, err)
	require.Equal(t, []string{"databaseUrl", "databaseUrl"}, gcp.SecretWrites())
	require.Equal(t, []string{"backend", "backend"}, gcp.ApplyCalls(), "compute must be re-applied on secret change")

	st, err := r.store.Load(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, st.Bindings, 1)
	require.Equal(t, 2, st.Bindings[0].Version)
}

func TestApply_FailureBlocksOnlyDependents(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	railway := provider.NewMock("railway")
	gcp.ApplyFunc = func(_ context.Context, _ string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		if s.ID == "postgres" {
			return nil, &provider.Error{Provider: "gcp", ResourceID: s.ID, Op: "apply", Message: "quota exceeded", Transient: false}
		}
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp, railway)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("postgres", graph.Database, "gcp"),
		spec("frontend", graph.Compute, "railway"),
		spec("backend", graph.Compute, "gcp", "postgres"),
	}}

	result, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	var aerr *ApplyError
	require.ErrorAs(t, err, &aerr)
	require.Contains(t, aerr.Failures, "postgres")

	byID := make(map[string]Status)
	for _, s := range result.Statuses {
		byID[s.ID] = s
	}
	require.Equal(t, ActionFailed, byID["postgres"].Action)
	require.Equal(t, ActionBlocked, byID["backend"].Action)
	require.Equal(t, ActionApplied, byID["frontend"].Action, "independent branches keep going")
	require.Equal(t, state.Applying, result.Phase)
}

func TestApply_ResumeRetriesOnlyFailedResources(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	broken := true
	gcp.ApplyFunc = func(_ context.Context, _ string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		if s.ID == "backend" && broken {
			return nil, &provider.Error{Provider: "gcp", ResourceID: s.ID, Op: "apply", Message: "invalid image", Transient: false}
		}
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp)
	ctx := context.Background()

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("postgres", graph.Database, "gcp"),
		spec("backend", graph.Compute, "gcp"),
	}}

	_, err := r.Apply(ctx, testEnv("dev"), plainEntries(), plan)
	require.Error(t, err)
	require.Contains(t, gcp.ApplyCalls(), "postgres")

	broken = false
	result, err := r.Apply(ctx, testEnv("dev"), plainEntries(), plan)
	require.NoError(t, err)
	require.Equal(t, state.Applied, result.Phase)

	// postgres applied once, backend attempted twice.
	applies := map[string]int{}
	for _, id := range gcp.ApplyCalls() {
		applies[id]++
	}
	require.Equal(t, 1, applies["postgres"], "already-applied resources are not rolled back or re-applied")
	require.Equal(t, 2, applies["backend"])
}

func TestApply_TransientErrorIsRetried(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	attempts := 0
	gcp.ApplyFunc = func(_ context.Context, _ string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		attempts++
		if attempts == 1 {
			return nil, &provider.Error{Provider: "gcp", ResourceID: s.ID, Op: "apply", Message: "rate limited", Transient: true}
		}
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}
	result, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, state.Applied, result.Phase)
}

func TestApply_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	attempts := 0
	gcp.ApplyFunc = func(context.Context, string, graph.Spec, *provider.ResourceState) (*provider.ResourceState, error) {
		attempts++
		return nil, &provider.Error{Provider: "gcp", ResourceID: "backend", Op: "apply", Message: "permission denied", Transient: false}
	}
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}
	_, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestApply_SameEnvironmentIsExclusive(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	gcp.ApplyFunc = func(_ context.Context, _ string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		once.Do(func() { close(started) })
		<-release
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp)
	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}

	done := make(chan error, 1)
	go func() {
		_, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
		done <- err
	}()
	<-started

	_, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	require.ErrorIs(t, err, ErrAlreadyInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestApply_CancellationBetweenResources(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	ctx, cancel := context.WithCancel(context.Background())
	gcp.ApplyFunc = func(_ context.Context, _ string, s graph.Spec, _ *provider.ResourceState) (*provider.ResourceState, error) {
		cancel() // cancel while the first resource is mid-flight
		return &provider.ResourceState{ID: s.ID, Provider: "gcp", ProviderID: s.ID, PropertiesHash: s.PropertiesHash()}, nil
	}
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("postgres", graph.Database, "gcp"),
		spec("backend", graph.Compute, "gcp", "postgres"),
	}}

	result, err := r.Apply(ctx, testEnv("dev"), plainEntries(), plan)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"postgres"}, gcp.ApplyCalls(), "in-flight call finishes, no new calls are issued")
	require.Equal(t, state.Applying, result.Phase)

	byID := make(map[string]Status)
	for _, s := range result.Statuses {
		byID[s.ID] = s
	}
	require.Equal(t, ActionApplied, byID["postgres"].Action)
	require.Equal(t, ActionCancelled, byID["backend"].Action)
}

func TestDestroy_ReverseOrderWithBindingsLast(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var events []string
	record := func(event string) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	}

	gcp := provider.NewMock("gcp")
	gcp.DestroyFunc = func(_ context.Context, st provider.ResourceState) error {
		record("destroy:" + st.ID)
		return nil
	}
	gcp.DeleteSecretFunc = func(_ context.Context, _, key string) error {
		record("revoke:" + key)
		return nil
	}
	r, _ := newReconciler(t, gcp)
	ctx := context.Background()

	binding := graph.Spec{ID: "backend-secrets", Kind: graph.SecretBinding, Provider: "gcp", Secrets: []string{"databaseUrl"}}
	postgres := spec("postgres", graph.Database, "gcp")
	backend := spec("backend", graph.Compute, "gcp", "postgres", "backend-secrets")
	backend.Secrets = []string{"databaseUrl"}
	plan := &graph.Plan{Environment: "pr-3", Specs: []graph.Spec{binding, postgres, backend}}
	entries := withSecret(plainEntries(), "databaseUrl", "postgres://u:p@h/db")

	env := testEnv("pr-3")
	_, err := r.Apply(ctx, env, entries, plan)
	require.NoError(t, err)

	result, err := r.Destroy(ctx, env, plan)
	require.NoError(t, err)
	require.Equal(t, state.Destroyed, result.Phase)
	require.Equal(t, []string{"destroy:backend", "destroy:postgres", "revoke:databaseUrl"}, events,
		"bindings are revoked only after dependent compute is gone")

	st, err := r.store.Load(ctx, "pr-3")
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestDestroy_NeverAppliedIsSuccessWithZeroCalls(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	r, _ := newReconciler(t, gcp)

	plan := &graph.Plan{Environment: "pr-99", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}
	result, err := r.Destroy(context.Background(), testEnv("pr-99"), plan)
	require.NoError(t, err)
	require.Equal(t, state.Destroyed, result.Phase)
	require.Zero(t, gcp.Calls())
}

func TestDestroy_Idempotent(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	r, _ := newReconciler(t, gcp)
	ctx := context.Background()
	env := testEnv("pr-5")

	plan := &graph.Plan{Environment: "pr-5", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}
	_, err := r.Apply(ctx, env, plainEntries(), plan)
	require.NoError(t, err)

	_, err = r.Destroy(ctx, env, plan)
	require.NoError(t, err)
	_, err = r.Destroy(ctx, env, plan)
	require.NoError(t, err)
}

func TestDestroy_FailureLeavesResumableState(t *testing.T) {
	t.Parallel()
	gcp := provider.NewMock("gcp")
	broken := true
	gcp.DestroyFunc = func(_ context.Context, st provider.ResourceState) error {
		if st.ID == "postgres" && broken {
			return &provider.Error{Provider: "gcp", ResourceID: st.ID, Op: "destroy", Message: "locked", Transient: false}
		}
		return nil
	}
	r, _ := newReconciler(t, gcp)
	ctx := context.Background()
	env := testEnv("dev")

	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{
		spec("postgres", graph.Database, "gcp"),
		spec("backend", graph.Compute, "gcp", "postgres"),
	}}
	_, err := r.Apply(ctx, env, plainEntries(), plan)
	require.NoError(t, err)

	_, err = r.Destroy(ctx, env, plan)
	var derr *DestroyError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "postgres", derr.ResourceID)

	// backend is already gone; the retry only touches postgres.
	broken = false
	_, err = r.Destroy(ctx, env, plan)
	require.NoError(t, err)

	destroys := map[string]int{}
	for _, id := range gcp.DestroyCalls() {
		destroys[id]++
	}
	require.Equal(t, 1, destroys["backend"])
	require.Equal(t, 2, destroys["postgres"])
}

func TestApply_UnknownProviderFails(t *testing.T) {
	t.Parallel()
	r, _ := newReconciler(t)
	plan := &graph.Plan{Environment: "dev", Specs: []graph.Spec{spec("backend", graph.Compute, "gcp")}}

	_, err := r.Apply(context.Background(), testEnv("dev"), plainEntries(), plan)
	var aerr *ApplyError
	require.ErrorAs(t, err, &aerr)
	require.Contains(t, aerr.Failures, "backend")
}
