// Package security keeps provider credentials out of logs and guards the
// HTTP surface: redaction, audit trail, per-client rate limits, request
// validation and outbound URL filtering.
package security

import (
	"slices"
	"sync"
)

// CredentialStore is a thread-safe store for sensitive credentials.
// Provider modules' configured API keys are collected here at startup so
// the redactor can mask them as literals.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[string]string),
	}
}

// Set stores a credential under name, replacing any previous value.
// Empty values are ignored.
func (s *CredentialStore) Set(name, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = value
}

// Get returns the credential value and true, or "" and false if not found.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// Names returns a sorted list of all credential names.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Values returns all credential values. Order is not guaranteed.
// This is intended for registering values with a Redactor.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.creds))
	for _, v := range s.creds {
		values = append(values, v)
	}
	return values
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
