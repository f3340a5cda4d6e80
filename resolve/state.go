package resolve

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// StateStore is an in-memory typed value resolver and writer. It backs the
// "flow" and "global" scopes with plain maps and handles the literal and
// environment value classes directly. It is the default collaborator wired
// by the CLI; hosts with their own state mechanism supply their own
// TypedResolver/TypedWriter instead.
type StateStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string]interface{}
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{scopes: make(map[string]map[string]interface{})}
}

// Resolve implements TypedResolver.
func (s *StateStore) Resolve(kind, spec string, env map[string]interface{}) (interface{}, bool) {
	switch kind {
	case "str", "":
		return spec, true
	case "num":
		if n, err := strconv.ParseInt(spec, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(spec, 64); err == nil {
			return f, true
		}
		return nil, false
	case "bool":
		return strings.EqualFold(strings.TrimSpace(spec), "true"), true
	case "env":
		v, ok := os.LookupEnv(spec)
		if !ok {
			return nil, false
		}
		return v, true
	default:
		return s.Get(kind, spec)
	}
}

// Write implements TypedWriter.
func (s *StateStore) Write(scope, path string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		m = make(map[string]interface{})
		s.scopes[scope] = m
	}
	m[path] = value
}

// Get reads a value previously written to a scope.
func (s *StateStore) Get(scope, path string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.scopes[scope]
	if !ok {
		return nil, false
	}
	v, ok := m[path]
	return v, ok
}
