package broadcast

import (
	"sync"
	"testing"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	a := newConnection(newFakeTransport(), 4)
	b := newConnection(newFakeTransport(), 4)

	if _, ok := r.Register(a); ok {
		t.Fatal("closed registry accepted a registration")
	}

	r.Open()
	if n, ok := r.Register(a); !ok || n != 1 {
		t.Fatalf("Register(a) = %d, %v", n, ok)
	}
	if n, ok := r.Register(b); !ok || n != 2 {
		t.Fatalf("Register(b) = %d, %v", n, ok)
	}

	if !r.Unregister(a) {
		t.Fatal("first Unregister(a) = false")
	}
	if r.Unregister(a) {
		t.Fatal("second Unregister(a) = true, want no-op")
	}
	if a.State() != Closing {
		t.Errorf("a.State() = %v, want Closing", a.State())
	}
	if b.State() != Active {
		t.Errorf("b.State() = %v, want Active", b.State())
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Open()
	a := newConnection(newFakeTransport(), 4)
	r.Register(a)

	snap := r.Snapshot()
	r.Unregister(a)
	r.Register(newConnection(newFakeTransport(), 4))

	if len(snap) != 1 || snap[0] != a {
		t.Fatalf("snapshot changed after mutation: %v", snap)
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	r.Open()
	conns := []*Connection{
		newConnection(newFakeTransport(), 4),
		newConnection(newFakeTransport(), 4),
	}
	for _, c := range conns {
		r.Register(c)
	}

	removed := r.Close()
	if len(removed) != 2 {
		t.Fatalf("Close() returned %d connections, want 2", len(removed))
	}
	for _, c := range removed {
		if c.State() != Closing {
			t.Errorf("connection %s state = %v, want Closing", c.ID, c.State())
		}
		if r.Unregister(c) {
			t.Errorf("Unregister after Close reported a removal")
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Close", r.Len())
	}
	if _, ok := r.Register(newConnection(newFakeTransport(), 4)); ok {
		t.Error("Register succeeded after Close")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.Open()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := newConnection(newFakeTransport(), 1)
				r.Register(c)
				_ = r.Snapshot()
				r.Unregister(c)
				r.Unregister(c)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
