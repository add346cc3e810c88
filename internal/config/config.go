// Package config provides the validated key/value store for small scalar
// settings: the active family pointer, theme, language, currency and
// per-month sort preferences.
//
// Every key is governed by a rule (see rules.go). Writes that fail their
// rule are refused with a false return and a warn log, never an error or a
// panic. Reads self-heal: a stored value that no longer passes its rule is
// deleted and the key's default is returned instead. The store is the only
// writer of its file; all mutations go through the validated Set.
//
// Persistence is a viper-managed JSON file under the application data
// directory. The in-memory map is authoritative between writes so that
// Remove and Clear work without viper's append-only Set semantics getting
// in the way.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// foldKey lowercases a key the way viper folds keys on read and write.
// Keys are case-insensitive end to end: without folding at this boundary,
// a key stored with uppercase would come back lowercased after a reload
// and lookups under the original spelling would miss.
func foldKey(key string) string {
	return strings.ToLower(key)
}

// Store is the secure config store. Safe for concurrent use; individual
// operations are atomic with last-write-wins semantics.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	logger *log.Logger
}

// Open loads (or creates) the config file at path and validates every
// stored entry, pruning anything invalid. It never fails on bad content,
// only on unusable paths.
//
// If logger is nil, a default logger writing to stderr is used.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[config] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	s := &Store{
		path:   path,
		values: make(map[string]string),
		logger: logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	s.ValidateAll()
	return s, nil
}

// load reads the file into the in-memory map. A missing file is an empty
// store; a corrupt file is logged and treated as empty rather than fatal.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return nil
		}
		if _, parseErr := err.(viper.ConfigParseError); parseErr {
			s.logger.Printf("WARNING: config file unreadable, starting empty: %v", err)
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	s.values = make(map[string]string)
	for key, raw := range v.AllSettings() {
		str, isString := raw.(string)
		if !isString {
			s.logger.Printf("WARNING: dropping non-string config entry %q", key)
			continue
		}
		s.values[key] = str
	}
	return nil
}

// persist writes the current map back to disk through a fresh viper
// instance. Viper cannot unset keys, so the file is rebuilt each time.
func (s *Store) persist() bool {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	for key, val := range s.values {
		v.Set(key, val)
	}
	if err := v.WriteConfig(); err != nil {
		s.logger.Printf("ERROR: failed to persist config: %v", err)
		return false
	}
	return true
}

// Get returns the value for key. Unknown keys return ("", false). A stored
// value that fails its rule is pruned and the key's default is returned
// instead of the bad value — never the bad value, never a panic.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = foldKey(key)
	r, known := ruleFor(key)
	if !known {
		s.logger.Printf("WARNING: get of unknown config key %q", key)
		return "", false
	}

	val, present := s.values[key]
	if !present {
		if r.def != "" {
			return r.def, true
		}
		return "", false
	}

	if !r.validate(val) {
		s.logger.Printf("WARNING: pruning invalid stored value for %q", key)
		delete(s.values, key)
		s.persist()
		if r.def != "" {
			return r.def, true
		}
		return "", false
	}
	return val, true
}

// Set validates value against key's rule and persists it. Returns false —
// and persists nothing — for unknown keys, pattern mismatches and reserved
// words. Failure is silent toward the caller beyond the boolean; details go
// to the warn log.
func (s *Store) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = foldKey(key)
	r, known := ruleFor(key)
	if !known {
		s.logger.Printf("WARNING: refusing to set unknown config key %q", key)
		return false
	}
	if !r.validate(value) {
		s.logger.Printf("WARNING: refusing invalid value for %q (rule %s)", key, r.name)
		return false
	}

	s.values[key] = value
	return s.persist()
}

// Remove deletes key from the store. Removing an absent key succeeds.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = foldKey(key)
	if _, present := s.values[key]; !present {
		return true
	}
	delete(s.values, key)
	return s.persist()
}

// Clear removes every stored entry.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]string)
	return s.persist()
}

// ValidateAll re-applies every rule to every stored entry, pruning values
// that fail and keys no rule claims. Run once at process start and again
// whenever the file changes underneath us.
func (s *Store) ValidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false
	for key, val := range s.values {
		r, known := ruleFor(key)
		if !known {
			s.logger.Printf("WARNING: pruning unknown config key %q", key)
			delete(s.values, key)
			dirty = true
			continue
		}
		if !r.validate(val) {
			s.logger.Printf("WARNING: pruning invalid value for %q (rule %s)", key, r.name)
			delete(s.values, key)
			dirty = true
		}
	}
	if dirty {
		s.persist()
	}
}

// Keys returns the stored keys, for diagnostics.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// reload re-reads the file and re-validates, used by the watcher when the
// file changes on disk.
func (s *Store) reload() {
	if err := s.load(); err != nil {
		s.logger.Printf("WARNING: reload failed: %v", err)
		return
	}
	s.ValidateAll()
}
