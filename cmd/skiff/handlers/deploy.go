package handlers

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/reconcile"
)

// DeployOptions carries the deploy command's arguments.
type DeployOptions struct {
	Environment string
	ConfigPath  string
	Preview     bool
	Yes         bool
	Destroy     bool
}

// confirmPlan asks the operator to confirm before touching a persistent
// environment. Replaced in tests.
var confirmPlan = func(prompt string) (bool, error) {
	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Description("Review the plan above before continuing").
				Value(&confirmed),
		),
	).Run()
	return confirmed, err
}

// Deploy reconciles one environment's stack: resolve configuration,
// build the plan, confirm if needed, then apply or destroy.
//
// Persistent environments require an explicit confirmation (or --yes);
// ephemeral pr-<n> environments auto-confirm. The per-resource status
// table is rendered even when reconciliation fails partway.
func Deploy(ctx context.Context, opts DeployOptions) error {
	cfg, err := newConfigStore(opts.ConfigPath)
	if err != nil {
		return err
	}
	env, err := cfg.Environments().Environment(opts.Environment)
	if err != nil {
		return err
	}
	resolved, err := cfg.Resolve(env.Name)
	if err != nil {
		return err
	}
	plan, err := graph.Build(env, resolved)
	if err != nil {
		return err
	}

	renderPlan(stdout, plan, opts.Destroy)
	if opts.Preview {
		return nil
	}

	if err := confirmIfPersistent(env, opts); err != nil {
		return err
	}

	store, err := newStateStore(ctx)
	if err != nil {
		return err
	}
	registry, err := newRegistry(ctx, env.Providers)
	if err != nil {
		return err
	}
	reconciler := reconcile.New(store, registry, reconcile.WithLogger(newLogger()))

	var result *reconcile.Result
	if opts.Destroy {
		result, err = reconciler.Destroy(ctx, env, plan)
	} else {
		result, err = reconciler.Apply(ctx, env, resolved, plan)
	}
	if result != nil {
		renderResult(stdout, result)
	}
	return err
}

func confirmIfPersistent(env config.Environment, opts DeployOptions) error {
	if env.Kind != config.Persistent || opts.Yes {
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("refusing to modify persistent environment %q without --yes in non-interactive mode", env.Name)
	}

	verb := "Apply"
	if opts.Destroy {
		verb = "Destroy"
	}
	confirmed, err := confirmPlan(fmt.Sprintf("%s stack for %s?", verb, env.Name))
	if err != nil {
		return err
	}
	if !confirmed {
		return fmt.Errorf("aborted by operator")
	}
	return nil
}
