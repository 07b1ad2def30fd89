package broadcast

import "sync"

// Registry is the authoritative set of live connections. Every insert,
// removal and snapshot happens under one mutex; broadcasts iterate over a
// copy so no I/O runs while the lock is held.
type Registry struct {
	mu    sync.Mutex
	open  bool
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Open allows registrations. A new registry starts closed.
func (r *Registry) Open() {
	r.mu.Lock()
	r.open = true
	r.mu.Unlock()
}

// Register adds c and returns the resulting count. It refuses while the
// registry is closed.
func (r *Registry) Register(c *Connection) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return len(r.conns), false
	}
	r.conns[c.ID] = c
	return len(r.conns), true
}

// Unregister removes c and marks it Closing. Only the first call for a given
// connection reports true.
func (r *Registry) Unregister(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.ID] != c {
		return false
	}
	delete(r.conns, c.ID)
	c.setState(Closing)
	return true
}

// Snapshot returns the connections registered at this instant.
func (r *Registry) Snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close stops accepting registrations, empties the registry and returns what
// it held, each marked Closing.
func (r *Registry) Close() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	out := make([]*Connection, 0, len(r.conns))
	for id, c := range r.conns {
		c.setState(Closing)
		out = append(out, c)
		delete(r.conns, id)
	}
	return out
}
