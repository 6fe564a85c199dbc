package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/lifecycle"
	"github.com/skiffhq/skiff/internal/reconcile"
)

// ServeWebhook runs the PR-event webhook daemon until the context is
// cancelled. Adapters are constructed once at startup for every
// provider any environment can use.
func ServeWebhook(ctx context.Context, addr, configPath string) error {
	cfg, err := newConfigStore(configPath)
	if err != nil {
		return err
	}
	store, err := newStateStore(ctx)
	if err != nil {
		return err
	}
	registry, err := newRegistry(ctx, declaredProviders(cfg.Environments()))
	if err != nil {
		return err
	}

	logger := newLogger()
	reconciler := reconcile.New(store, registry,
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(reconcile.NewMetrics(prometheus.DefaultRegisterer)),
	)
	controller := lifecycle.NewController(cfg, reconciler, logger)

	server := &http.Server{
		Addr:              addr,
		Handler:           lifecycle.NewWebhook(controller, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("webhook listening", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// declaredProviders collects the union of providers across the declared
// environments and the ephemeral template, de-duplicated in order.
func declaredProviders(envs *config.EnvironmentsFile) []string {
	seen := make(map[string]bool)
	var providers []string
	add := func(names []string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				providers = append(providers, name)
			}
		}
	}
	for _, env := range envs.Environments {
		add(env.Providers)
	}
	add(envs.Ephemeral.Providers)
	return providers
}
