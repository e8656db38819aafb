// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import "sync"

// NameCache caches successful reverse lookups per host address, so repeated
// rounds don't pay for repeated lookups and a slow DNS server can never stall
// snapshot assembly. Only successful resolutions are recorded
// (last-successful-wins); a failed or pending lookup simply leaves the cache
// untouched, keeping stale-but-present as the acceptable fallback.
type NameCache struct {
	mu sync.RWMutex
	m  map[string]string // host address -> reverse-resolved name
}

// NewNameCache returns a new and properly initialized NameCache object.
func NewNameCache() *NameCache {
	return &NameCache{
		m: map[string]string{},
	}
}

// Put records a successful resolution of addr into name. Empty names are
// ignored, as absence must never overwrite a previous success.
func (c *NameCache) Put(addr string, name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[addr] = name
}

// Get returns the cached name for addr, together with whether any resolution
// has succeeded so far.
func (c *NameCache) Get(addr string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.m[addr]
	return name, ok
}
