// Package scope defines the access-scope table and its grant rule.
//
// Every scope carries a minimum developer level and a public-client flag. A
// scope is grantable when the requesting developer's account type does not
// exceed the scope's MinLevel; lower account type codes are more privileged.
// Public clients additionally require AllowPublic.
package scope

import (
	"errors"
	"fmt"
)

// Information describes one registered scope.
type Information struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MinLevel    int    `yaml:"min_level"`
	AllowPublic bool   `yaml:"allow_public"`
}

var (
	ErrUnknownScope   = errors.New("unknown scope")
	ErrDuplicateScope = errors.New("duplicate scope")
)

// Registry is an immutable lookup table built once at engine construction.
type Registry struct {
	byName map[string]Information
}

func NewRegistry(scopes []Information) (*Registry, error) {
	byName := make(map[string]Information, len(scopes))
	for _, s := range scopes {
		if s.Name == "" {
			return nil, errors.New("scope name empty")
		}
		if _, ok := byName[s.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScope, s.Name)
		}
		byName[s.Name] = s
	}
	return &Registry{byName: byName}, nil
}

// Get returns the scope entry for name.
func (r *Registry) Get(name string) (Information, error) {
	s, ok := r.byName[name]
	if !ok {
		return Information{}, fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	return s, nil
}

// Allowed reports whether a developer of the given account type may request
// the named scope. Unknown scopes are never allowed.
func (r *Registry) Allowed(name string, accountType int, publicClient bool) bool {
	s, ok := r.byName[name]
	if !ok {
		return false
	}
	if s.MinLevel < accountType {
		return false
	}
	if publicClient && !s.AllowPublic {
		return false
	}
	return true
}

// AllowedAll reports whether every named scope is grantable, naming the first
// offender.
func (r *Registry) AllowedAll(names []string, accountType int, publicClient bool) (string, bool) {
	for _, name := range names {
		if !r.Allowed(name, accountType, publicClient) {
			return name, false
		}
	}
	return "", true
}

// Len returns the number of registered scopes.
func (r *Registry) Len() int {
	return len(r.byName)
}
