package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Resolve produces the effective configuration for one environment.
// Precedence, lowest to highest: built-in defaults, named preset,
// environment override block, administrative overrides from the store.
// Secret values are decrypted in-process; they never leave this map
// except through the secret propagator.
func (s *Store) Resolve(environmentName string) (map[string]Entry, error) {
	env, err := s.envs.Environment(environmentName)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]Entry, len(builtinDefaults))
	for key, def := range builtinDefaults {
		resolved[key] = def
	}

	preset, err := lookupPreset(env.Preset)
	if err != nil {
		return nil, err
	}
	if err := mergeValues(resolved, preset); err != nil {
		return nil, fmt.Errorf("preset %q: %w", env.Preset, err)
	}

	if err := mergeValues(resolved, env.Overrides); err != nil {
		return nil, fmt.Errorf("environment %q overrides: %w", env.Name, err)
	}

	admin, err := s.overrides(environmentName)
	if err != nil {
		return nil, err
	}
	for key, entry := range admin {
		if def, ok := resolved[key]; ok {
			if err := checkType(key, def.Type, entry.Value); err != nil {
				return nil, err
			}
			entry.Type = def.Type
		}
		resolved[key] = entry
	}

	// Force well-known secret keys regardless of how they entered.
	for key, entry := range resolved {
		if IsSecretKey(key) && entry.Classification != Secret {
			entry.Classification = Secret
			resolved[key] = entry
		}
	}

	return resolved, nil
}

// mergeValues overlays raw string values onto the resolved map, keeping
// the declared type of any key they shadow.
func mergeValues(resolved map[string]Entry, values map[string]string) error {
	for key, value := range values {
		entry := Entry{Key: key, Value: value, Type: StringType, Classification: Plain}
		if def, ok := resolved[key]; ok {
			if err := checkType(key, def.Type, value); err != nil {
				return err
			}
			entry.Type = def.Type
			entry.Classification = def.Classification
		}
		resolved[key] = entry
	}
	return nil
}

// checkType verifies that value is representable as the declared type.
func checkType(key string, declared ValueType, value string) error {
	switch declared {
	case IntType:
		if _, err := strconv.Atoi(value); err != nil {
			return &TypeMismatchError{Key: key, Declared: IntType, Override: inferType(value)}
		}
	case BoolType:
		if _, err := strconv.ParseBool(value); err != nil {
			return &TypeMismatchError{Key: key, Declared: BoolType, Override: inferType(value)}
		}
	case StringType:
		// Everything is representable as a string.
	}
	return nil
}

func inferType(value string) ValueType {
	if _, err := strconv.Atoi(value); err == nil {
		return IntType
	}
	if _, err := strconv.ParseBool(value); err == nil {
		return BoolType
	}
	return StringType
}

// Hash returns a deterministic digest of a resolved configuration.
// Secret values participate via their own digests so that a changed
// secret changes the config hash without the value itself being
// reproducible from the hash.
func Hash(resolved map[string]Entry) string {
	h := sha256.New()
	for _, key := range SortedKeys(resolved) {
		entry := resolved[key]
		value := entry.Value
		if entry.Classification == Secret {
			sum := sha256.Sum256([]byte(entry.Value))
			value = hex.EncodeToString(sum[:])
		}
		fmt.Fprintf(h, "%s=%s\n", key, value)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SecretEntries filters a resolved configuration down to its
// secret-classified entries, sorted by key for deterministic propagation.
func SecretEntries(resolved map[string]Entry) []Entry {
	var out []Entry
	for _, key := range SortedKeys(resolved) {
		if resolved[key].Classification == Secret {
			out = append(out, resolved[key])
		}
	}
	return out
}
