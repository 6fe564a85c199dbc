package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError is returned when the dependsOn graph contains a cycle.
// A cycle is a hard stop: no partial plan is ever produced from one.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(e.Members, ", "))
}

// DanglingDependencyError is returned when a spec depends on an id that
// does not exist in the same graph.
type DanglingDependencyError struct {
	ID        string
	DependsOn string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("resource %q depends on unknown resource %q", e.ID, e.DependsOn)
}

// topoSort orders specs so every spec follows all of its dependencies.
// Ties are broken lexicographically by id, which makes repeated builds
// from identical input produce identical plans.
func topoSort(specs []Spec) ([]Spec, error) {
	byID := make(map[string]Spec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}

	indegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string, len(specs))
	for _, s := range specs {
		if _, ok := indegree[s.ID]; !ok {
			indegree[s.ID] = 0
		}
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &DanglingDependencyError{ID: s.ID, DependsOn: dep}
			}
			indegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]Spec, 0, len(specs))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]

		ordered = append(ordered, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(specs) {
		var members []string
		placed := make(map[string]bool, len(ordered))
		for _, s := range ordered {
			placed[s.ID] = true
		}
		for _, s := range specs {
			if !placed[s.ID] {
				members = append(members, s.ID)
			}
		}
		sort.Strings(members)
		return nil, &CycleError{Members: members}
	}

	return ordered, nil
}
