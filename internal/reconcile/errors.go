package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrAlreadyInProgress signals lock contention on an environment. The
// caller should retry later; this is not a deployment failure.
var ErrAlreadyInProgress = errors.New("reconciliation already in progress")

// LockError identifies which environment's lease could not be acquired.
type LockError struct {
	Environment string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("environment %q: %v", e.Environment, ErrAlreadyInProgress)
}

func (e *LockError) Unwrap() error {
	return ErrAlreadyInProgress
}

// ApplyError aggregates per-resource failures once reconciliation
// halts. Failures never include secret values; adapter errors carry
// only provider messages and resource ids.
type ApplyError struct {
	Environment string
	Failures    map[string]error
}

func (e *ApplyError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "reconciliation of %s halted: %d resource(s) failed", e.Environment, len(ids))
	for _, id := range ids {
		fmt.Fprintf(&sb, "\n  %s: %v", id, e.Failures[id])
	}
	return sb.String()
}

// DestroyError reports a teardown failure. The stack remains in the
// destroying phase and the next destroy resumes from recorded state.
type DestroyError struct {
	Environment string
	ResourceID  string
	Err         error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("failed to destroy %s/%s: %v", e.Environment, e.ResourceID, e.Err)
}

func (e *DestroyError) Unwrap() error {
	return e.Err
}
