// Package state persists per-environment stack state: the durable
// record the reconciler reads on startup to compute diffs.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skiffhq/skiff/internal/provider"
	"github.com/skiffhq/skiff/internal/secrets"
)

// Phase is the reconciliation state machine position.
type Phase string

const (
	Uninitialized Phase = "uninitialized"
	Planned       Phase = "planned"
	Applying      Phase = "applying"
	Applied       Phase = "applied"
	Destroying    Phase = "destroying"
	Destroyed     Phase = "destroyed"
)

// State is the persisted stack state for one environment. Resources
// are keyed by spec id. Secret values never appear here, only binding
// references and content hashes.
type State struct {
	Environment           string                            `json:"environment"`
	Phase                 Phase                             `json:"phase"`
	Resources             map[string]provider.ResourceState `json:"resources"`
	Bindings              []secrets.Binding                 `json:"bindings,omitempty"`
	ResourceErrors        map[string]string                 `json:"resourceErrors,omitempty"`
	LastAppliedConfigHash string                            `json:"lastAppliedConfigHash"`
	UpdatedAt             time.Time                         `json:"updatedAt"`
}

// New creates an empty state for an environment.
func New(environment string) *State {
	return &State{
		Environment: environment,
		Phase:       Uninitialized,
		Resources:   make(map[string]provider.ResourceState),
	}
}

// Resource returns the recorded state for a spec id, if present.
func (s *State) Resource(id string) (provider.ResourceState, bool) {
	r, ok := s.Resources[id]
	return r, ok
}

// SetResource records a successful apply result and clears any
// previous error for the resource.
func (s *State) SetResource(r provider.ResourceState) {
	s.Resources[r.ID] = r
	delete(s.ResourceErrors, r.ID)
}

// SetResourceError records a per-resource failure without touching
// the last known good resource state.
func (s *State) SetResourceError(id, message string) {
	if s.ResourceErrors == nil {
		s.ResourceErrors = make(map[string]string)
	}
	s.ResourceErrors[id] = message
}

// decodeState parses a persisted state record. Hand-edited or legacy
// records may omit the resources field; default the map so SetResource
// never writes to nil.
func decodeState(data []byte, environment string) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state for %s: %w", environment, err)
	}
	if st.Resources == nil {
		st.Resources = make(map[string]provider.ResourceState)
	}
	return &st, nil
}

// Store is a durable backend for stack state. Load returns (nil, nil)
// when no state exists for the environment.
type Store interface {
	Load(ctx context.Context, environment string) (*State, error)
	Save(ctx context.Context, st *State) error
	Delete(ctx context.Context, environment string) error
}
