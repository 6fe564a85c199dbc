// Package reconcile drives a stack through its lifecycle: plan, apply,
// destroy. It walks the resource graph with a bounded worker pool,
// retries transient provider failures, persists partial progress, and
// never lets two reconciliations of the same environment overlap.
package reconcile

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/secrets"
	"github.com/skiffhq/skiff/internal/state"
	"github.com/skiffhq/skiff/internal/util/retry"
)

// Action is the per-resource outcome of one reconciliation.
type Action string

const (
	ActionApplied   Action = "applied"
	ActionSkipped   Action = "skipped"
	ActionFailed    Action = "failed"
	ActionBlocked   Action = "blocked"
	ActionCancelled Action = "cancelled"
	ActionDestroyed Action = "destroyed"
)

// Status is one row of the per-resource status table.
type Status struct {
	ID       string
	Provider string
	Action   Action
	Message  string
}

// Result summarizes a reconciliation run.
type Result struct {
	Environment string
	Phase       state.Phase
	Statuses    []Status
	// Outputs maps compute resource ids to their service URLs.
	Outputs map[string]string
}

// Reconciler applies and destroys stacks against a provider registry.
type Reconciler struct {
	store      state.Store
	registry   *provider.Registry
	propagator *secrets.Propagator
	logger     *log.Logger
	metrics    *Metrics
	leases     *leases
	retryOpts  []retry.Option
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the structured logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithRetryOptions overrides the provider retry policy.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(r *Reconciler) { r.retryOpts = opts }
}

// New creates a reconciler over the given state store and providers.
func New(store state.Store, registry *provider.Registry, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:      store,
		registry:   registry,
		propagator: secrets.NewPropagator(registry),
		logger:     log.New(io.Discard),
		leases:     newLeases(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reconciles the plan against recorded state. Partial failures
// leave the stack in the applying phase with per-resource errors;
// already-applied resources are never rolled back.
func (r *Reconciler) Apply(ctx context.Context, env config.Environment, resolved map[string]config.Entry, plan *graph.Plan) (*Result, error) {
	if err := r.leases.acquire(env.Name); err != nil {
		return nil, err
	}
	defer r.leases.release(env.Name)

	started := time.Now()
	result, err := r.apply(ctx, env, resolved, plan)
	r.metrics.run("apply", err)
	if r.metrics != nil {
		r.metrics.Duration.Observe(time.Since(started).Seconds())
	}
	return result, err
}

func (r *Reconciler) apply(ctx context.Context, env config.Environment, resolved map[string]config.Entry, plan *graph.Plan) (*Result, error) {
	st, err := r.store.Load(ctx, env.Name)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = state.New(env.Name)
	}

	hash := config.Hash(resolved)
	if st.Phase == state.Applied && st.LastAppliedConfigHash == hash {
		// Nothing changed since the last successful apply: no provider
		// calls at all.
		r.logger.Info("configuration unchanged, nothing to do", "environment", env.Name)
		return r.result(plan, st, map[string]Status{}), nil
	}

	st.Phase = state.Applying
	st.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, st); err != nil {
		return nil, err
	}

	exec := &execution{
		r:        r,
		env:      env,
		resolved: resolved,
		plan:     plan,
		st:       st,
	}
	failures := exec.run(ctx)

	if len(failures) == 0 && ctx.Err() == nil {
		st.Phase = state.Applied
		st.LastAppliedConfigHash = hash
	}
	st.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, st); err != nil {
		return nil, err
	}

	result := r.result(plan, st, exec.statuses)
	if len(failures) > 0 {
		return result, &ApplyError{Environment: env.Name, Failures: failures}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	r.logger.Info("stack applied", "environment", env.Name, "resources", len(plan.Specs))
	return result, nil
}

// Destroy tears the stack down in reverse dependency order, deleting
// secret bindings only after their dependent compute resources are
// gone. Destroying a never-applied or already-destroyed stack is
// success with zero provider calls.
func (r *Reconciler) Destroy(ctx context.Context, env config.Environment, plan *graph.Plan) (*Result, error) {
	if err := r.leases.acquire(env.Name); err != nil {
		return nil, err
	}
	defer r.leases.release(env.Name)

	result, err := r.destroy(ctx, env, plan)
	r.metrics.run("destroy", err)
	return result, err
}

func (r *Reconciler) destroy(ctx context.Context, env config.Environment, plan *graph.Plan) (*Result, error) {
	st, err := r.store.Load(ctx, env.Name)
	if err != nil {
		return nil, err
	}
	if st == nil || st.Phase == state.Destroyed {
		return &Result{Environment: env.Name, Phase: state.Destroyed}, nil
	}

	st.Phase = state.Destroying
	st.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, st); err != nil {
		return nil, err
	}

	var statuses []Status
	for i := len(plan.Specs) - 1; i >= 0; i-- {
		spec := plan.Specs[i]
		if err := ctx.Err(); err != nil {
			return &Result{Environment: env.Name, Phase: st.Phase, Statuses: statuses}, err
		}

		if spec.Kind == graph.SecretBinding {
			if err := r.revokeBindings(ctx, env.Name, st, spec.Provider); err != nil {
				r.saveBestEffort(ctx, st)
				return nil, &DestroyError{Environment: env.Name, ResourceID: spec.ID, Err: err}
			}
			statuses = append(statuses, Status{ID: spec.ID, Provider: spec.Provider, Action: ActionDestroyed})
			continue
		}

		recorded, ok := st.Resource(spec.ID)
		if !ok {
			statuses = append(statuses, Status{ID: spec.ID, Provider: spec.Provider, Action: ActionSkipped, Message: "never applied"})
			continue
		}
		if err := r.destroyResource(ctx, spec, recorded); err != nil {
			st.SetResourceError(spec.ID, err.Error())
			r.saveBestEffort(ctx, st)
			r.metrics.resource(spec.Provider, ActionFailed)
			return nil, &DestroyError{Environment: env.Name, ResourceID: spec.ID, Err: err}
		}
		delete(st.Resources, spec.ID)
		r.metrics.resource(spec.Provider, ActionDestroyed)
		statuses = append(statuses, Status{ID: spec.ID, Provider: spec.Provider, Action: ActionDestroyed})
		r.saveBestEffort(ctx, st)
	}

	st.Phase = state.Destroyed
	if err := r.store.Delete(ctx, env.Name); err != nil {
		return nil, err
	}
	r.logger.Info("stack destroyed", "environment", env.Name)
	return &Result{Environment: env.Name, Phase: state.Destroyed, Statuses: statuses}, nil
}

func (r *Reconciler) destroyResource(ctx context.Context, spec graph.Spec, recorded provider.ResourceState) error {
	adapter, err := r.registry.Get(spec.Provider)
	if err != nil {
		return err
	}
	return retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, provider.Timeout(spec.Kind))
		defer cancel()
		if err := adapter.Destroy(callCtx, recorded); err != nil {
			if provider.IsTransient(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return nil
	}, r.retryOpts...)
}

// revokeBindings deletes this provider's secret bindings. It runs only
// after the dependent compute resources have been destroyed.
func (r *Reconciler) revokeBindings(ctx context.Context, environment string, st *state.State, providerName string) error {
	var mine, rest []secrets.Binding
	for _, b := range st.Bindings {
		if b.Provider == providerName {
			mine = append(mine, b)
		} else {
			rest = append(rest, b)
		}
	}
	if len(mine) == 0 {
		return nil
	}
	if err := r.propagator.Revoke(ctx, environment, mine); err != nil {
		return err
	}
	st.Bindings = rest
	return nil
}

func (r *Reconciler) saveBestEffort(ctx context.Context, st *state.State) {
	st.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, st); err != nil {
		r.logger.Warn("failed to persist state", "environment", st.Environment, "error", err)
	}
}

// result builds the status table in plan order. Specs without an
// execution status were skipped as part of a whole-run no-op.
func (r *Reconciler) result(plan *graph.Plan, st *state.State, statuses map[string]Status) *Result {
	res := &Result{
		Environment: plan.Environment,
		Phase:       st.Phase,
		Outputs:     make(map[string]string),
	}
	for _, spec := range plan.Specs {
		status, ok := statuses[spec.ID]
		if !ok {
			status = Status{ID: spec.ID, Provider: spec.Provider, Action: ActionSkipped, Message: "unchanged"}
		}
		res.Statuses = append(res.Statuses, status)

		if spec.Kind == graph.Compute {
			if rec, ok := st.Resource(spec.ID); ok && rec.URL != "" {
				res.Outputs[spec.ID] = rec.URL
			}
		}
	}
	return res
}
