package resource

import (
	"sync"
)

type entry struct {
	value any
	kind  string
	valid bool
}

// Table maps handles to the objects activated inside one isolated context.
// Handles of removed entries are reused.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

// Insert stores value under kind and returns its handle.
func (t *Table) Insert(kind string, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{kind: kind, value: value, valid: true}
	var handle Handle
	if n := len(t.freeList); n > 0 {
		handle = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: handle, Kind: kind, Value: value})
	return handle, nil
}

func (t *Table) lookup(handle Handle) (entry, bool) {
	if handle == 0 {
		return entry{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return entry{}, false
	}
	return t.entries[idx], true
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	e, ok := t.lookup(handle)
	return e.value, ok
}

// GetKind retrieves a value only if it was inserted under kind.
func (t *Table) GetKind(handle Handle, kind string) (any, bool) {
	e, ok := t.lookup(handle)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Remove drops an object, calling Drop when it implements Dropper.
func (t *Table) Remove(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}
	t.mu.Lock()
	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return nil, false
	}
	e := t.entries[idx]
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, handle)
	t.mu.Unlock()

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: handle, Kind: e.kind, Value: e.value})
	return e.value, true
}

// Len returns the number of live objects.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Each calls fn for every live object until fn returns false.
func (t *Table) Each(fn func(Handle, string, any) bool) {
	t.mu.RLock()
	snapshot := make([]entry, len(t.entries))
	copy(snapshot, t.entries)
	t.mu.RUnlock()

	for i, e := range snapshot {
		if e.valid && !fn(Handle(i+1), e.kind, e.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Clear drops every live object.
func (t *Table) Clear() {
	var handles []Handle
	t.Each(func(h Handle, _ string, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close drops every live object and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Clear()
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
