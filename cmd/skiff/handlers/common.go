// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of
// the CLI framework. External dependencies are created through factory
// function variables that tests replace with mocks.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/provider/gcp"
	"github.com/skiffhq/skiff/internal/provider/modal"
	"github.com/skiffhq/skiff/internal/provider/railway"
	"github.com/skiffhq/skiff/internal/state"
)

const (
	defaultConfigFile = "skiff.yaml"
	configDir         = ".skiff/config"
	stateDir          = ".skiff/state"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newConfigStore loads the environment inventory and opens the
	// encrypted override store. SKIFF_MASTER_KEY is required.
	newConfigStore = func(path string) (*config.Store, error) {
		if path == "" {
			path = defaultConfigFile
		}
		envs, err := config.LoadEnvironmentsFile(path)
		if err != nil {
			return nil, err
		}
		return config.NewStore(configDir, []byte(os.Getenv("SKIFF_MASTER_KEY")), envs)
	}

	// newStateStore selects the state backend. SKIFF_STATE_BACKEND=s3
	// switches to an S3-compatible bucket for shared/CI use.
	newStateStore = func(ctx context.Context) (state.Store, error) {
		if os.Getenv("SKIFF_STATE_BACKEND") != "s3" {
			return state.NewFileStore(stateDir), nil
		}
		bucket := os.Getenv("SKIFF_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("SKIFF_S3_BUCKET must be set when SKIFF_STATE_BACKEND=s3")
		}
		region := os.Getenv("SKIFF_S3_REGION")
		if region == "" {
			region = "us-east-1"
		}
		return state.NewS3Store(ctx, state.S3Config{
			Endpoint:  os.Getenv("SKIFF_S3_ENDPOINT"),
			Region:    region,
			Bucket:    bucket,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	}

	// newRegistry constructs real adapters for the enabled providers
	// from environment credentials.
	newRegistry = func(ctx context.Context, providers []string) (*provider.Registry, error) {
		reg := provider.NewRegistry()
		for _, name := range providers {
			switch name {
			case "gcp":
				project := os.Getenv("GOOGLE_CLOUD_PROJECT")
				if project == "" {
					return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT must be set for the gcp provider")
				}
				client, err := gcp.NewRealClient(ctx, project)
				if err != nil {
					return nil, err
				}
				reg.Register(gcp.NewAdapter(client))
			case "railway":
				token := os.Getenv("RAILWAY_TOKEN")
				if token == "" {
					return nil, fmt.Errorf("RAILWAY_TOKEN must be set for the railway provider")
				}
				reg.Register(railway.NewAdapter(railway.NewRealClient(os.Getenv("RAILWAY_PROJECT_ID"), token)))
			case "modal":
				tokenID := os.Getenv("MODAL_TOKEN_ID")
				if tokenID == "" {
					return nil, fmt.Errorf("MODAL_TOKEN_ID must be set for the modal provider")
				}
				reg.Register(modal.NewAdapter(modal.NewRealClient(tokenID, os.Getenv("MODAL_TOKEN_SECRET"))))
			default:
				return nil, fmt.Errorf("unknown provider %q", name)
			}
		}
		return reg, nil
	}

	// newLogger creates the structured logger for reconciliation output.
	newLogger = func() *log.Logger {
		return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}

	// isInteractive reports whether stdout is a terminal.
	isInteractive = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// stdout is the destination for user-facing output.
	stdout io.Writer = os.Stdout
)
