// Package naming provides consistent naming functions for stacks and
// provider-side resources.
//
// Ephemeral stacks are named pr-{number} so that a pull request maps to
// exactly one stack for its whole lifetime. Provider resources follow the
// pattern {environment}-{resource} to make cross-provider cleanup greppable.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var prStackPattern = regexp.MustCompile(`^pr-(\d+)$`)

// PRStack returns the stack name for a pull request number.
func PRStack(prNumber int) string {
	return fmt.Sprintf("pr-%d", prNumber)
}

// IsEphemeral reports whether the environment name denotes a PR-bound stack.
func IsEphemeral(environment string) bool {
	return prStackPattern.MatchString(environment)
}

// PRNumber extracts the pull request number from an ephemeral stack name.
// Returns false for operator-assigned (persistent) environment names.
func PRNumber(environment string) (int, bool) {
	m := prStackPattern.FindStringSubmatch(environment)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Resource returns the provider-side name for a resource in an environment.
func Resource(environment, resource string) string {
	return fmt.Sprintf("%s-%s", environment, resource)
}

// Secret returns the provider-side name for a secret. Provider secret
// stores are flat namespaces, so the environment prefix is what keeps
// values from leaking across environments.
func Secret(environment, key string) string {
	return fmt.Sprintf("%s-%s", environment, toKebab(key))
}

// toKebab converts camelCase config keys to kebab-case resource names
// (databaseUrl -> database-url) to satisfy provider naming rules.
func toKebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
