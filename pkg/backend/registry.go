// Package backend keeps the registry of aggregator backend factories. Each
// backend package registers itself from init.
package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// Factory builds a backend from its free-form configuration map.
type Factory func(config map[string]interface{}) (feed.Backend, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a backend factory to the registry
func Register(backendType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[backendType] = factory
}

// Create creates a new backend instance by type
func Create(backendType string, config map[string]interface{}) (feed.Backend, error) {
	mu.RLock()
	factory, ok := registry[backendType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownBackend, backendType, strings.Join(List(), ", "))
	}

	if config == nil {
		config = make(map[string]interface{})
	}
	return factory(config)
}

// List returns all registered backend types, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthorityFactory builds a whitelist authority from its configuration map.
type AuthorityFactory func(config map[string]interface{}) (feed.Authority, error)

var authorities = make(map[string]AuthorityFactory)

// RegisterAuthority adds a whitelist authority factory to the registry.
func RegisterAuthority(authorityType string, factory AuthorityFactory) {
	mu.Lock()
	defer mu.Unlock()
	authorities[authorityType] = factory
}

// CreateAuthority creates a whitelist authority by type.
func CreateAuthority(authorityType string, config map[string]interface{}) (feed.Authority, error) {
	mu.RLock()
	factory, ok := authorities[authorityType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthority, authorityType)
	}

	if config == nil {
		config = make(map[string]interface{})
	}
	return factory(config)
}
