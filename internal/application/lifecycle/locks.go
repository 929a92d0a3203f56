package lifecycle

import "sync"

// lockTable serializes work per invoice id. Transitions on the same id are
// mutually exclusive; transitions on different ids proceed in parallel.
// This replaces the client-side "signing in progress" de-duplication set of
// the old system, which could not exclude a second process or browser tab.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*invoiceLock
}

type invoiceLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*invoiceLock)}
}

// Lock acquires the per-invoice mutex, creating it on first use.
func (t *lockTable) Lock(id string) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &invoiceLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the per-invoice mutex and drops it once unreferenced.
func (t *lockTable) Unlock(id string) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		t.mu.Unlock()
		panic("lifecycle: unlock of unknown invoice lock " + id)
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()

	l.mu.Unlock()
}
