// Package lifecycle keeps ephemeral environments synchronized with the
// pull requests that spawned them.
package lifecycle

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/skiffhq/skiff/internal/config"
	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/reconcile"
	"github.com/skiffhq/skiff/internal/util/naming"
)

// EventType classifies pull-request lifecycle events.
type EventType string

const (
	PROpened  EventType = "PR_OPENED"
	PRUpdated EventType = "PR_UPDATED"
	PRClosed  EventType = "PR_CLOSED"
)

// Event is one pull-request lifecycle notification.
type Event struct {
	Type     EventType
	PRNumber int
}

// Reconciler is the slice of the stack reconciler the controller needs.
type Reconciler interface {
	Apply(ctx context.Context, env config.Environment, resolved map[string]config.Entry, plan *graph.Plan) (*reconcile.Result, error)
	Destroy(ctx context.Context, env config.Environment, plan *graph.Plan) (*reconcile.Result, error)
}

// Controller maps PR events onto stack operations. Opened and updated
// PRs converge the pr-<n> stack; closed PRs tear it down. Ephemeral
// environments auto-confirm, so no interactive gate applies here.
type Controller struct {
	config     *config.Store
	reconciler Reconciler
	logger     *log.Logger
}

// NewController creates a lifecycle controller.
func NewController(cfg *config.Store, rec Reconciler, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{config: cfg, reconciler: rec, logger: logger}
}

// Handle processes one event. Destroying a never-applied stack is
// success, so replayed or out-of-order close events are harmless.
func (c *Controller) Handle(ctx context.Context, ev Event) (*reconcile.Result, error) {
	envName := naming.PRStack(ev.PRNumber)
	env, err := c.config.Environments().Environment(envName)
	if err != nil {
		return nil, err
	}
	resolved, err := c.config.Resolve(envName)
	if err != nil {
		return nil, err
	}
	plan, err := graph.Build(env, resolved)
	if err != nil {
		return nil, err
	}

	switch ev.Type {
	case PROpened, PRUpdated:
		c.logger.Info("reconciling pull-request stack", "environment", envName, "event", ev.Type)
		return c.reconciler.Apply(ctx, env, resolved, plan)
	case PRClosed:
		c.logger.Info("destroying pull-request stack", "environment", envName)
		return c.reconciler.Destroy(ctx, env, plan)
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}
