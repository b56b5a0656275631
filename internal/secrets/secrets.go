// Package secrets resolves portal credentials from the environment or memory.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// DefaultPrefix is prepended to every secret name.
const DefaultPrefix = "/GovScout/"

// Env reads secrets from environment variables. The name "Webs/Username"
// under prefix "/GovScout/" is read from GOVSCOUT_WEBS_USERNAME.
type Env struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnv creates an environment-backed store.
func NewEnv(prefix string) *Env {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Env{prefix: prefix, lookup: os.LookupEnv}
}

// VarName returns the environment variable consulted for name.
func (e *Env) VarName(name string) string {
	key := strings.Trim(e.prefix+name, "/")
	key = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(key)
	return strings.ToUpper(key)
}

// Get implements crawler.SecretStore.
func (e *Env) Get(_ context.Context, name string) (string, error) {
	v, ok := e.lookup(e.VarName(name))
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s%s is not set", crawler.ErrSecretRetrieval, e.prefix, name)
	}
	return v, nil
}

// Memory is a fixed set of secrets keyed by unprefixed name.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates a store holding a copy of values.
func NewMemory(values map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get implements crawler.SecretStore.
func (m *Memory) Get(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is not set", crawler.ErrSecretRetrieval, name)
	}
	return v, nil
}
