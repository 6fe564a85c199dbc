package reconcile

import "sync"

// leases serializes reconciliations per environment. Two runs against
// the same environment must never overlap; different environments are
// independent units of concurrency.
type leases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLeases() *leases {
	return &leases{held: make(map[string]struct{})}
}

// acquire takes the lease for an environment, failing fast on
// contention rather than queueing silently.
func (l *leases) acquire(environment string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[environment]; ok {
		return &LockError{Environment: environment}
	}
	l.held[environment] = struct{}{}
	return nil
}

func (l *leases) release(environment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, environment)
}
