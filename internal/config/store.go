package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltFile  = "salt"
	saltSize  = 16
	nonceSize = 24
)

// Store holds per-environment administrative overrides on disk.
// Secret-classified values are sealed with a key derived from the master
// key before they ever reach the filesystem; plain values are stored
// as-is. Reads are safe concurrently; writes are serialized per
// environment so two Set calls cannot lose updates to the same blob.
type Store struct {
	dir  string
	envs *EnvironmentsFile
	key  [32]byte

	mu    sync.Mutex
	envMu map[string]*sync.Mutex
}

// storedEntry is the on-disk form of an override.
type storedEntry struct {
	Value          string         `json:"value,omitempty"`
	Sealed         string         `json:"sealed,omitempty"`
	Type           ValueType      `json:"type"`
	Classification Classification `json:"classification"`
}

// NewStore opens (or initializes) the override store in dir. The
// encryption key is derived from masterKey with a per-store random salt.
func NewStore(dir string, masterKey []byte, envs *EnvironmentsFile) (*Store, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("master key is required (set SKIFF_MASTER_KEY)")
	}
	if err := os.MkdirAll(filepath.Join(dir, "overrides"), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}

	derived, err := scrypt.Key(masterKey, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive store key: %w", err)
	}

	s := &Store{
		dir:   dir,
		envs:  envs,
		envMu: make(map[string]*sync.Mutex),
	}
	copy(s.key[:], derived)
	return s, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	// #nosec G304
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltSize {
			return nil, fmt.Errorf("corrupt salt file %s", path)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to write salt: %w", err)
	}
	return salt, nil
}

// Environments exposes the environment inventory backing this store.
func (s *Store) Environments() *EnvironmentsFile {
	return s.envs
}

// Set records an administrative override for one environment. Secret
// values are encrypted before persisting. Setting a key that shadows a
// built-in default with an incompatible type fails with TypeMismatchError.
func (s *Store) Set(environment, key, value string, classification Classification) error {
	if IsSecretKey(key) {
		classification = Secret
	}

	entryType := StringType
	if def, ok := builtinDefaults[key]; ok {
		if err := checkType(key, def.Type, value); err != nil {
			return err
		}
		entryType = def.Type
	}

	mu := s.lockFor(environment)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.readOverrides(environment)
	if err != nil {
		return err
	}

	stored := storedEntry{Type: entryType, Classification: classification}
	if classification == Secret {
		sealed, err := s.seal(value)
		if err != nil {
			return err
		}
		stored.Sealed = sealed
	} else {
		stored.Value = value
	}
	entries[key] = stored

	return s.writeOverrides(environment, entries)
}

// Get returns a single override entry. Secret values are decrypted
// in-process but masked unless reveal is asserted by the caller.
func (s *Store) Get(environment, key string, reveal bool) (Entry, error) {
	entries, err := s.readOverrides(environment)
	if err != nil {
		return Entry{}, err
	}
	stored, ok := entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("no override for key %q in environment %q", key, environment)
	}

	entry, err := s.toEntry(key, stored)
	if err != nil {
		return Entry{}, err
	}
	if entry.Classification == Secret && !reveal {
		entry.Value = entry.Redacted()
	}
	return entry, nil
}

// List returns all override entries for an environment, secrets masked.
func (s *Store) List(environment string) ([]Entry, error) {
	entries, err := s.readOverrides(environment)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for key, stored := range entries {
		entry, err := s.toEntry(key, stored)
		if err != nil {
			return nil, err
		}
		if entry.Classification == Secret {
			entry.Value = entry.Redacted()
		}
		out = append(out, entry)
	}
	return out, nil
}

// overrides returns the decrypted override entries for resolution.
// Secret values stay in-process only.
func (s *Store) overrides(environment string) (map[string]Entry, error) {
	entries, err := s.readOverrides(environment)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(entries))
	for key, stored := range entries {
		entry, err := s.toEntry(key, stored)
		if err != nil {
			return nil, err
		}
		out[key] = entry
	}
	return out, nil
}

func (s *Store) toEntry(key string, stored storedEntry) (Entry, error) {
	entry := Entry{
		Key:            key,
		Type:           stored.Type,
		Classification: stored.Classification,
	}
	if stored.Classification == Secret {
		value, err := s.open(stored.Sealed)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to decrypt override %q: %w", key, err)
		}
		entry.Value = value
	} else {
		entry.Value = stored.Value
	}
	return entry, nil
}

func (s *Store) overridesPath(environment string) string {
	return filepath.Join(s.dir, "overrides", environment+".json")
}

func (s *Store) readOverrides(environment string) (map[string]storedEntry, error) {
	// #nosec G304
	data, err := os.ReadFile(s.overridesPath(environment))
	if os.IsNotExist(err) {
		return map[string]storedEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	var entries map[string]storedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse overrides for %s: %w", environment, err)
	}
	return entries, nil
}

func (s *Store) writeOverrides(environment string, entries map[string]storedEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}
	// Temp file plus rename so a concurrent reader never sees a
	// truncated overrides file.
	path := s.overridesPath(environment)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write overrides: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit overrides: %w", err)
	}
	return nil
}

func (s *Store) lockFor(environment string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.envMu[environment]
	if !ok {
		mu = &sync.Mutex{}
		s.envMu[environment] = mu
	}
	return mu
}

func (s *Store) seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("malformed sealed value: %w", err)
	}
	if len(raw) < nonceSize {
		return "", errors.New("sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("decryption failed: wrong master key or corrupt data")
	}
	return string(plain), nil
}
