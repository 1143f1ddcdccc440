package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentra/internal/fileutil"
	"sentra/internal/logging"
	"sentra/internal/phash"
)

// Store loads and persists registries. The snapshot is a
// human-diffable JSON array of id/fingerprint pairs; deleting it
// forces a full directory rescan on the next initialize.
type Store struct {
	snapshotPath string
	codec        phash.Codec
	logger       *slog.Logger
}

// snapshotEntry is the persisted form of one registry entry.
type snapshotEntry struct {
	ID      string    `json:"id"`
	PHash   string    `json:"phash"`
	AddedAt time.Time `json:"added_at,omitzero"`
}

// NewStore creates a store persisting to snapshotPath.
func NewStore(snapshotPath string, codec phash.Codec, logger *slog.Logger) *Store {
	return &Store{
		snapshotPath: snapshotPath,
		codec:        codec,
		logger:       logging.NewComponentLogger(logger, "registry"),
	}
}

// LoadFromSource scans dir and fingerprints every decodable image
// file. Files that fail to decode are skipped with a warning; a
// missing directory yields an empty registry. Entries are ordered by
// file name so repeated scans of an unchanged directory produce
// identical registries.
func (s *Store) LoadFromSource(dir string) (*Registry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("spam image directory does not exist, starting empty",
				logging.String("dir", dir))
			return New(nil), nil
		}
		return nil, fmt.Errorf("read spam directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		name := dirEntry.Name()
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipped unreadable file", logging.String("file", name), logging.Error(err))
			continue
		}
		fp, err := s.codec.Compute(data)
		if err != nil {
			s.logger.Warn("skipped non-image file", logging.String("file", name), logging.Error(err))
			continue
		}
		info, _ := dirEntry.Info()
		added := time.Time{}
		if info != nil {
			added = info.ModTime().UTC()
		}
		entries = append(entries, Entry{ID: name, Fingerprint: fp, AddedAt: added})
		s.logger.Debug("fingerprinted spam image",
			logging.String("id", name),
			logging.String("phash", fp.Hex()))
	}
	return New(entries), nil
}

// LoadFromSnapshot parses the persisted snapshot. It fails soft: an
// absent, empty, or unparsable snapshot yields an empty registry with
// a logged condition, because the directory scan is the fallback.
func (s *Store) LoadFromSnapshot() *Registry {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read snapshot, falling back to rescan",
				logging.String("path", s.snapshotPath), logging.Error(err))
		}
		return New(nil)
	}
	if len(data) == 0 {
		return New(nil)
	}

	var persisted []snapshotEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("failed to parse snapshot, falling back to rescan",
			logging.String("path", s.snapshotPath), logging.Error(err))
		return New(nil)
	}

	entries := make([]Entry, 0, len(persisted))
	for _, p := range persisted {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		fp, err := phash.ParseHex(p.PHash)
		if err != nil {
			s.logger.Warn("skipped snapshot entry with bad fingerprint",
				logging.String("id", id), logging.Error(err))
			continue
		}
		entries = append(entries, Entry{ID: id, Fingerprint: fp, AddedAt: p.AddedAt})
	}
	s.logger.Debug("loaded snapshot", logging.Int("entry_count", len(entries)))
	return New(entries)
}

// SaveSnapshot serializes the registry and atomically replaces the
// previous snapshot. The in-memory registry is independent of the
// write outcome.
func (s *Store) SaveSnapshot(r *Registry) error {
	persisted := make([]snapshotEntry, 0, r.Len())
	for _, entry := range r.Entries() {
		persisted = append(persisted, snapshotEntry{
			ID:      entry.ID,
			PHash:   entry.Fingerprint.Hex(),
			AddedAt: entry.AddedAt,
		})
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.logger.Debug("saved snapshot",
		logging.Int("entry_count", r.Len()),
		logging.String("path", s.snapshotPath))
	return nil
}
