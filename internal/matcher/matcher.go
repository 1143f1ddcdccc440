// Package matcher answers the single question at the core of
// screening: is a query fingerprint within tolerance of any registered
// fingerprint? Entries are compared in insertion order and the first
// hit wins, so earlier registrations take precedence on ties.
package matcher

import (
	"fmt"

	"sentra/internal/phash"
	"sentra/internal/registry"
)

// Match describes the registered entry a query resolved to.
type Match struct {
	ID       string
	Distance int
}

// FindMatch scans reg in insertion order and returns the first entry
// whose Hamming distance to query is at or below tolerance. A nil
// result means no entry matched. A shape mismatch between query and a
// registered fingerprint is a real error, not a non-match.
func FindMatch(query phash.Fingerprint, reg *registry.Registry, tolerance int) (*Match, error) {
	for _, entry := range reg.Entries() {
		dist, err := phash.Distance(query, entry.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("compare against %s: %w", entry.ID, err)
		}
		if dist <= tolerance {
			return &Match{ID: entry.ID, Distance: dist}, nil
		}
	}
	return nil, nil
}

// Distances returns the Hamming distance from query to every entry in
// insertion order, for diagnostics. Entries with a shape mismatch are
// reported with a distance of -1.
func Distances(query phash.Fingerprint, reg *registry.Registry) []EntryDistance {
	entries := reg.Entries()
	out := make([]EntryDistance, 0, len(entries))
	for _, entry := range entries {
		dist, err := phash.Distance(query, entry.Fingerprint)
		if err != nil {
			dist = -1
		}
		out = append(out, EntryDistance{ID: entry.ID, Distance: dist})
	}
	return out
}

// EntryDistance pairs a registered id with its distance to a query.
type EntryDistance struct {
	ID       string
	Distance int
}
