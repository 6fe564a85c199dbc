package reconcile

import (
	"context"
	"sync"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/secrets"
	"github.com/skiffhq/skiff/internal/state"
	"github.com/skiffhq/skiff/internal/util/retry"
)

// execution walks one plan's dependency graph with a bounded worker
// pool. Independent specs run concurrently; specs connected by a
// dependsOn edge are serialized by the indegree bookkeeping. Pool size
// is the number of distinct providers in the plan, since provider rate
// limits are the real constraint.
type execution struct {
	r        *Reconciler
	env      config.Environment
	resolved map[string]config.Entry
	plan     *graph.Plan
	st       *state.State

	mu       sync.Mutex
	statuses map[string]Status
	failures map[string]error

	// bindingMu serializes secret propagation per provider so that two
	// binding specs on the same provider cannot race on versions.
	bindingMu map[string]*sync.Mutex
}

type outcome struct {
	spec graph.Spec
	err  error
}

// run executes the plan and returns per-resource failures. Errors
// local to one spec block only its dependents; independent branches
// keep going. Cancellation is checked before each spec, never
// mid-flight within a provider call.
func (e *execution) run(ctx context.Context) map[string]error {
	e.statuses = make(map[string]Status, len(e.plan.Specs))
	e.failures = make(map[string]error)
	e.bindingMu = make(map[string]*sync.Mutex)
	for _, p := range e.plan.Providers() {
		e.bindingMu[p] = &sync.Mutex{}
	}

	indegree := make(map[string]int, len(e.plan.Specs))
	dependents := make(map[string][]string)
	for _, s := range e.plan.Specs {
		indegree[s.ID] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var ready []graph.Spec
	for _, s := range e.plan.Specs {
		if indegree[s.ID] == 0 {
			ready = append(ready, s)
		}
	}

	pool := len(e.plan.Providers())
	if pool < 1 {
		pool = 1
	}

	results := make(chan outcome)
	inFlight := 0
	finished := 0
	total := len(e.plan.Specs)
	cancelled := false

	for finished < total {
		for !cancelled && inFlight < pool && len(ready) > 0 {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			spec := ready[0]
			ready = ready[1:]
			inFlight++
			go func(s graph.Spec) {
				results <- outcome{spec: s, err: e.applyOne(ctx, s)}
			}(spec)
		}
		if inFlight == 0 {
			break
		}

		out := <-results
		inFlight--
		finished++

		if out.err != nil {
			e.mu.Lock()
			e.failures[out.spec.ID] = out.err
			e.mu.Unlock()
			finished += e.blockDependents(out.spec.ID, dependents)
			continue
		}
		for _, id := range dependents[out.spec.ID] {
			indegree[id]--
			if indegree[id] == 0 && !e.hasStatus(id) {
				spec, ok := e.plan.Spec(id)
				if ok {
					ready = append(ready, spec)
				}
			}
		}
	}

	// Anything never dispatched was cut off by cancellation.
	e.mu.Lock()
	for _, s := range e.plan.Specs {
		if _, ok := e.statuses[s.ID]; !ok {
			e.statuses[s.ID] = Status{ID: s.ID, Provider: s.Provider, Action: ActionCancelled}
		}
	}
	e.mu.Unlock()

	return e.failures
}

// blockDependents marks the transitive dependents of a failed spec as
// blocked and returns how many it marked.
func (e *execution) blockDependents(id string, dependents map[string][]string) int {
	blocked := 0
	queue := append([]string(nil), dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if e.hasStatus(next) {
			continue
		}
		spec, ok := e.plan.Spec(next)
		if !ok {
			continue
		}
		e.setStatus(spec, ActionBlocked, "dependency "+id+" failed")
		e.r.metrics.resource(spec.Provider, ActionBlocked)
		blocked++
		queue = append(queue, dependents[next]...)
	}
	return blocked
}

func (e *execution) hasStatus(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.statuses[id]
	return ok
}

func (e *execution) setStatus(spec graph.Spec, action Action, message string) {
	e.mu.Lock()
	e.statuses[spec.ID] = Status{ID: spec.ID, Provider: spec.Provider, Action: action, Message: message}
	e.mu.Unlock()
}

func (e *execution) applyOne(ctx context.Context, spec graph.Spec) error {
	if spec.Kind == graph.SecretBinding {
		return e.propagate(ctx, spec)
	}

	e.mu.Lock()
	previous, hadPrevious := e.st.Resource(spec.ID)
	e.mu.Unlock()

	if hadPrevious && previous.PropertiesHash == spec.PropertiesHash() {
		e.setStatus(spec, ActionSkipped, "unchanged")
		e.r.metrics.resource(spec.Provider, ActionSkipped)
		return nil
	}

	adapter, err := e.r.registry.Get(spec.Provider)
	if err != nil {
		e.setStatus(spec, ActionFailed, err.Error())
		return err
	}

	e.r.logger.Info("applying resource", "environment", e.env.Name, "resource", spec.ID, "provider", spec.Provider)

	var applied *provider.ResourceState
	err = retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, provider.Timeout(spec.Kind))
		defer cancel()

		var prev *provider.ResourceState
		if hadPrevious {
			prev = &previous
		}
		result, applyErr := adapter.Apply(callCtx, e.env.Name, spec, prev)
		if applyErr != nil {
			if provider.IsTransient(applyErr) {
				return applyErr
			}
			return retry.Fatal(applyErr)
		}
		applied = result
		return nil
	}, e.r.retryOpts...)

	if err != nil {
		e.mu.Lock()
		e.st.SetResourceError(spec.ID, err.Error())
		e.mu.Unlock()
		e.setStatus(spec, ActionFailed, err.Error())
		e.r.metrics.resource(spec.Provider, ActionFailed)
		e.save(ctx)
		return err
	}

	e.mu.Lock()
	e.st.SetResource(*applied)
	e.mu.Unlock()
	e.setStatus(spec, ActionApplied, "")
	e.r.metrics.resource(spec.Provider, ActionApplied)
	e.save(ctx)
	return nil
}

// propagate writes this binding's secret values through the provider's
// native secret mechanism. It must complete before the dependent
// compute spec is dispatched; the dependsOn edge guarantees that.
func (e *execution) propagate(ctx context.Context, spec graph.Spec) error {
	wanted := make(map[string]bool, len(spec.Secrets))
	for _, key := range spec.Secrets {
		wanted[key] = true
	}
	var entries []config.Entry
	for _, entry := range config.SecretEntries(e.resolved) {
		if wanted[entry.Key] {
			entries = append(entries, entry)
		}
	}

	mu := e.bindingMu[spec.Provider]
	mu.Lock()
	defer mu.Unlock()

	e.mu.Lock()
	priorBindings := append([]secrets.Binding(nil), e.st.Bindings...)
	e.mu.Unlock()

	bindings, err := e.r.propagator.Propagate(ctx, e.env.Name, entries, spec.Provider, priorBindings)
	if err != nil {
		e.setStatus(spec, ActionFailed, err.Error())
		e.r.metrics.resource(spec.Provider, ActionFailed)
		return err
	}

	e.mu.Lock()
	e.st.Bindings = mergeBindings(e.st.Bindings, bindings, spec.Provider)
	e.mu.Unlock()
	e.setStatus(spec, ActionApplied, "")
	e.save(ctx)
	return nil
}

func (e *execution) save(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.r.saveBestEffort(ctx, e.st)
}

// mergeBindings replaces one provider's bindings with the freshly
// propagated set, leaving other providers' bindings untouched.
func mergeBindings(existing, updated []secrets.Binding, providerName string) []secrets.Binding {
	merged := make([]secrets.Binding, 0, len(existing)+len(updated))
	for _, b := range existing {
		if b.Provider != providerName {
			merged = append(merged, b)
		}
	}
	seen := make(map[string]bool, len(updated))
	for _, b := range updated {
		if !seen[b.Key] {
			merged = append(merged, b)
			seen[b.Key] = true
		}
	}
	return merged
}
