// Package registry owns the mapping of registered spam image ids to
// perceptual fingerprints, including its durable snapshot. A Registry
// is an immutable value: mutations return a new Registry, which lets
// the coordinator publish updates with a single pointer swap while
// in-flight readers keep the previous state.
package registry

import (
	"errors"
	"time"

	"sentra/internal/phash"
)

// ErrNotFound reports removal of an id that is not registered. It is a
// normal negative result, not a failure.
var ErrNotFound = errors.New("fingerprint not found")

// Entry is one registered fingerprint. The id is a stable identifier
// unique within the registry; it is not required to match any original
// filename.
type Entry struct {
	ID          string
	Fingerprint phash.Fingerprint
	AddedAt     time.Time
}

// Registry is the insertion-ordered set of known fingerprints. The
// zero value is an empty, usable registry.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// New builds a registry from entries, preserving order. Duplicate ids
// keep their first position with the last fingerprint (last write wins).
func New(entries []Entry) *Registry {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		if pos, ok := r.index[entry.ID]; ok {
			r.entries[pos] = entry
			continue
		}
		r.index[entry.ID] = len(r.entries)
		r.entries = append(r.entries, entry)
	}
	return r
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns the entries in insertion order. The slice is a copy;
// the registry itself is never mutated in place.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the entry for id if present.
func (r *Registry) Lookup(id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	pos, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[pos], true
}

// WithEntry returns a registry with entry added. An existing id is
// overwritten in place, keeping its original position in the iteration
// order.
func (r *Registry) WithEntry(entry Entry) *Registry {
	entries := r.Entries()
	if pos, ok := r.position(entry.ID); ok {
		entries[pos] = entry
		return New(entries)
	}
	return New(append(entries, entry))
}

// WithoutEntry returns a registry with id removed. The boolean reports
// whether the id was present; removing an absent id returns the
// receiver unchanged.
func (r *Registry) WithoutEntry(id string) (*Registry, bool) {
	pos, ok := r.position(id)
	if !ok {
		return r, false
	}
	entries := r.Entries()
	return New(append(entries[:pos], entries[pos+1:]...)), true
}

func (r *Registry) position(id string) (int, bool) {
	if r == nil {
		return 0, false
	}
	pos, ok := r.index[id]
	return pos, ok
}
