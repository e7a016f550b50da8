package msgport

import (
	"log/slog"
	"sync"
	"time"
)

// PortRegistry is an optional lookup table from a stable name to a live
// Port, for processes that want to address ports by name (the admin
// server's /ports introspection endpoint, or a bridge resolving an
// inbound name to a local Port). PortState itself has no notion of
// names; this is purely a side index the caller populates, keyed by
// plain strings since a Port has no type/ID split the way an actor ref
// would.
type PortRegistry struct {
	mu    sync.RWMutex
	ports map[string]*registeredPort
}

type registeredPort struct {
	port     *Port
	lastSeen time.Time
}

func NewPortRegistry() *PortRegistry {
	return &PortRegistry{ports: make(map[string]*registeredPort)}
}

// Register adds or replaces the entry for name. A previous occupant, if
// any, is not closed automatically — callers that want replace-closes-
// old semantics should Lookup and Close it themselves first.
func (r *PortRegistry) Register(name string, p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports[name] = &registeredPort{port: p, lastSeen: time.Now()}
}

// Lookup also touches the entry's last-seen time, so RemoveIdle treats
// a looked-up port as freshly active.
func (r *PortRegistry) Lookup(name string) *Port {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp := r.ports[name]
	if rp == nil {
		return nil
	}
	rp.lastSeen = time.Now()
	return rp.port
}

// Remove closes and deregisters name's port, if present.
func (r *PortRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp := r.ports[name]
	if rp == nil {
		return
	}
	delete(r.ports, name)
	rp.port.Close()
}

// RemoveIdle closes and deregisters every port not looked up within ttl.
func (r *PortRegistry) RemoveIdle(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rp := range r.ports {
		if time.Since(rp.lastSeen) > ttl {
			slog.Info("port idle, closing", "name", name)
			delete(r.ports, name)
			rp.port.Close()
		}
	}
}

// RemoveAll closes and deregisters every known port.
func (r *PortRegistry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rp := range r.ports {
		rp.port.Close()
		delete(r.ports, name)
	}
}

// Names returns a snapshot of currently registered names.
func (r *PortRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ports))
	for name := range r.ports {
		names = append(names, name)
	}
	return names
}
