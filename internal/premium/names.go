// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package premium

import (
	"regexp"
	"strings"
	"sync"
)

// usernamePattern matches the only shape the identity authority accepts.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,16}$`)

// Normalize lowercases a username the way every lookup expects it.
func Normalize(username string) string {
	return strings.ToLower(username)
}

// ValidUsername reports whether the lowercase name can exist on the authority.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// NameCache is the set of lowercase usernames the authority confirmed as
// premium during this process lifetime. It only grows.
type NameCache struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewNameCache creates an empty NameCache.
func NewNameCache() *NameCache {
	return &NameCache{names: make(map[string]struct{})}
}

// Add records name as confirmed premium.
func (c *NameCache) Add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = struct{}{}
}

// Contains reports whether name was confirmed premium.
func (c *NameCache) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

// Len returns the number of confirmed names.
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
