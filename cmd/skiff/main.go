// Package main is the entry point for the skiff CLI.
//
// skiff deploys multi-provider application stacks (GCP Cloud Run,
// Railway, Modal) from declarative per-environment configuration. It
// resolves configuration into a dependency-ordered resource plan,
// propagates secrets into each provider's native secret store, and
// reconciles the plan against persisted stack state.
//
// Commands: deploy, config, webhook, version.
//
// For detailed usage information, run:
//
//	skiff --help
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/skiffhq/skiff/cmd/skiff/commands"
	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/reconcile"
	"github.com/skiffhq/skiff/internal/secrets"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes per failure class, so CI can distinguish a user-fixable
// configuration mistake from provider flakiness or lock contention.
const (
	exitOK       = 0
	exitGeneral  = 1
	exitConfig   = 2
	exitGraph    = 3
	exitProvider = 4
	exitSecret   = 5
	exitLocked   = 6
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var (
		unknownPreset *config.UnknownPresetError
		typeMismatch  *config.TypeMismatchError
		unknownEnv    *config.UnknownEnvironmentError
		cycle         *graph.CycleError
		dangling      *graph.DanglingDependencyError
		disabled      *graph.ProviderDisabledError
		secretErr     *secrets.Error
		applyErr      *reconcile.ApplyError
		destroyErr    *reconcile.DestroyError
	)
	switch {
	case errors.Is(err, reconcile.ErrAlreadyInProgress):
		return exitLocked
	case errors.As(err, &unknownPreset), errors.As(err, &typeMismatch), errors.As(err, &unknownEnv):
		return exitConfig
	case errors.As(err, &cycle), errors.As(err, &dangling), errors.As(err, &disabled):
		return exitGraph
	case errors.As(err, &secretErr):
		return exitSecret
	case errors.As(err, &applyErr), errors.As(err, &destroyErr):
		return exitProvider
	default:
		return exitGeneral
	}
}
