package fiber

import "sync"

// FLSKey is an opaque fiber-local-storage key. Callers obtain one with
// NewFLSKey and share the returned pointer with whatever code needs to
// read/write that slot; comparison is by pointer identity.
//
// spec.md §3 specifies FLS keys as "opaque key ... uintptr identity, not
// hashes". The Go rendition of an identity key used here is a small struct
// behind a pointer -- it carries one byte so that every NewFLSKey call gets
// a distinct address (pointers to distinct zero-size values may compare
// equal), and it gives pointer-identity comparisons for free via ordinary
// map equality, with no need to reach for uintptr/unsafe.Pointer
// conversions.
type FLSKey struct{ _ byte }

// NewFLSKey allocates a new, distinct fiber-local-storage key.
func NewFLSKey() *FLSKey { return &FLSKey{} }

// flsEntry pairs a stored value with its cleanup function, run when the
// slot is overwritten (if requested) or when the owning fiber terminates.
type flsEntry struct {
	data    any
	cleanup func(any)
}

// flsMap is the per-context FLS table. Guarded by its own mutex, not by
// Context.mu.
type flsMap struct {
	mu      sync.Mutex
	entries map[*FLSKey]flsEntry
}

func (m *flsMap) get(key *FLSKey) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return nil
	}
	return m.entries[key].data
}

func (m *flsMap) set(key *FLSKey, data any, cleanup func(any), cleanupExisting bool) {
	m.mu.Lock()
	prev, had := m.entries[key]
	if data == nil {
		delete(m.entries, key)
	} else {
		if m.entries == nil {
			m.entries = make(map[*FLSKey]flsEntry)
		}
		m.entries[key] = flsEntry{data: data, cleanup: cleanup}
	}
	m.mu.Unlock()

	if had && cleanupExisting && prev.cleanup != nil {
		prev.cleanup(prev.data)
	}
}

// drain removes and returns every entry, for finish() to run cleanups
// against. Order is unspecified, matching spec.md §4.2.
func (m *flsMap) drain() []flsEntry {
	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	out := make([]flsEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}
