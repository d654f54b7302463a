package host

import "sync"

// Binder remembers which elements a script call site produced, so a later
// evaluation of the same call site can replace them.
type Binder struct {
	mu       sync.Mutex
	bindings map[string][]ElementID
}

// NewBinder returns an empty binder.
func NewBinder() *Binder {
	return &Binder{bindings: make(map[string][]ElementID)}
}

// Bind records ids for callsite and returns whatever was bound before.
func (b *Binder) Bind(callsite string, ids ...ElementID) []ElementID {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.bindings[callsite]
	b.bindings[callsite] = append([]ElementID(nil), ids...)
	return prev
}

// Lookup returns the ids bound to callsite.
func (b *Binder) Lookup(callsite string) ([]ElementID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids, ok := b.bindings[callsite]
	return append([]ElementID(nil), ids...), ok
}

// Unbind forgets callsite.
func (b *Binder) Unbind(callsite string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bindings, callsite)
}

// Len returns the number of bound call sites.
func (b *Binder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bindings)
}
