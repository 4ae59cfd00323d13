package trust

import (
	"strings"
	"sync"
)

// CEXRegistry maps known centralized-exchange hot wallet addresses to
// the exchange name. A funding edge from a registered address is a
// dead end: recorded for audit, never traced upward, never a source of
// trust.
type CEXRegistry struct {
	mu    sync.RWMutex
	byAdr map[string]string
}

// NewCEXRegistry builds a registry from address -> exchange name.
func NewCEXRegistry(addresses map[string]string) *CEXRegistry {
	r := &CEXRegistry{byAdr: make(map[string]string, len(addresses))}
	for addr, name := range addresses {
		r.byAdr[addr] = strings.ToUpper(name)
	}
	return r
}

// Lookup reports whether addr is a registered exchange wallet.
func (r *CEXRegistry) Lookup(addr string) (exchange string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exchange, ok = r.byAdr[addr]
	return exchange, ok
}

// Add registers an exchange wallet at runtime.
func (r *CEXRegistry) Add(addr, exchange string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byAdr[addr] = strings.ToUpper(exchange)
}

// Size returns the number of registered addresses.
func (r *CEXRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byAdr)
}
