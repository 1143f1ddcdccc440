// Package screening coordinates fingerprint computation, the registry,
// and the matcher behind one concurrency-safe service. The current
// registry is published through an atomic pointer: Match and List read
// whatever registry is current without locking, while mutations are
// serialized by a writer mutex and become visible with a single swap.
package screening

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sentra/internal/fileutil"
	"sentra/internal/logging"
	"sentra/internal/matcher"
	"sentra/internal/phash"
	"sentra/internal/registry"
)

// Options configures a screening service.
type Options struct {
	SpamDir      string
	SnapshotPath string
	Tolerance    int
	Logger       *slog.Logger
}

// Service owns the live registry and answers match and mutation
// requests. Create one with New and call Initialize before use.
type Service struct {
	spamDir   string
	tolerance int
	codec     phash.Codec
	store     *registry.Store
	logger    *slog.Logger

	current atomic.Pointer[registry.Registry]
	writeMu sync.Mutex
}

// MatchResult reports whether a screened image matched a registered
// fingerprint. Query is always populated on success.
type MatchResult struct {
	Matched  bool
	ID       string
	Distance int
	Query    phash.Fingerprint
}

// AddResult reports a completed registration. PersistErr carries a
// snapshot or archive write failure that did not prevent the in-memory
// registration from taking effect.
type AddResult struct {
	ID          string
	Fingerprint phash.Fingerprint
	Replaced    bool
	PersistErr  error
}

// RemoveResult reports a completed removal. Found is false when the id
// was not registered, which is a negative outcome rather than an error.
type RemoveResult struct {
	Found      bool
	PersistErr error
}

// New creates a screening service. Tolerance is the maximum Hamming
// distance still treated as a match.
func New(opts Options) *Service {
	logger := logging.NewComponentLogger(opts.Logger, "screening")
	s := &Service{
		spamDir:   opts.SpamDir,
		tolerance: opts.Tolerance,
		codec:     phash.DefaultCodec,
		store:     registry.NewStore(opts.SnapshotPath, phash.DefaultCodec, opts.Logger),
		logger:    logger,
	}
	s.current.Store(registry.New(nil))
	return s
}

// Initialize loads the registry, preferring the snapshot and falling
// back to a full scan of the spam directory. A rescan persists a fresh
// snapshot immediately so the next start is cheap. It returns the
// number of loaded fingerprints.
func (s *Service) Initialize() (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg := s.store.LoadFromSnapshot()
	if reg.Len() == 0 {
		scanned, err := s.store.LoadFromSource(s.spamDir)
		if err != nil {
			return 0, err
		}
		reg = scanned
		if reg.Len() > 0 {
			if err := s.store.SaveSnapshot(reg); err != nil {
				s.logger.Warn("failed to persist initial snapshot", logging.Error(err))
			}
		}
	}
	s.current.Store(reg)
	s.logger.Info("registry initialized", logging.Int("fingerprint_count", reg.Len()))
	return reg.Len(), nil
}

// Match fingerprints data and scans the registry in insertion order,
// returning the first entry within tolerance. Undecodable data is an
// error (wrapped phash.ErrDecode), not a non-match.
func (s *Service) Match(data []byte) (MatchResult, error) {
	query, err := s.codec.Compute(data)
	if err != nil {
		return MatchResult{}, err
	}
	return s.MatchFingerprint(query)
}

// MatchFingerprint is Match for a precomputed fingerprint.
func (s *Service) MatchFingerprint(query phash.Fingerprint) (MatchResult, error) {
	m, err := matcher.FindMatch(query, s.current.Load(), s.tolerance)
	if err != nil {
		return MatchResult{}, err
	}
	if m == nil {
		return MatchResult{Query: query}, nil
	}
	return MatchResult{Matched: true, ID: m.ID, Distance: m.Distance, Query: query}, nil
}

// Add registers data as a new spam image. The image is re-encoded to
// PNG, which strips metadata, and archived in the spam directory under
// a generated id; the fingerprint is computed from the sanitized form
// so a later rescan reproduces it exactly. A persistence failure after
// the in-memory registration is reported in AddResult.PersistErr.
func (s *Service) Add(data []byte, nameHint string) (AddResult, error) {
	img, err := s.codec.Decode(data)
	if err != nil {
		return AddResult{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return AddResult{}, fmt.Errorf("encode sanitized image: %w", err)
	}
	sanitized := buf.Bytes()

	fp, err := s.codec.Compute(sanitized)
	if err != nil {
		return AddResult{}, err
	}

	id := newEntryID(nameHint)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg := s.current.Load()
	_, replaced := reg.Lookup(id)
	next := reg.WithEntry(registry.Entry{ID: id, Fingerprint: fp, AddedAt: time.Now().UTC()})
	s.current.Store(next)

	result := AddResult{ID: id, Fingerprint: fp, Replaced: replaced}
	if err := fileutil.WriteFileAtomic(filepath.Join(s.spamDir, id), sanitized, 0o644); err != nil {
		result.PersistErr = fmt.Errorf("archive image: %w", err)
	} else if err := s.store.SaveSnapshot(next); err != nil {
		result.PersistErr = err
	}
	if result.PersistErr != nil {
		s.logger.Warn("fingerprint registered but not fully persisted",
			logging.String("id", id), logging.Error(result.PersistErr))
	} else {
		s.logger.Info("fingerprint registered",
			logging.String("id", id), logging.String("phash", fp.Hex()))
	}
	return result, nil
}

// Remove unregisters id. It does not delete the archived image file;
// a subsequent reload would re-register it from the directory, which
// keeps removal reversible.
func (s *Service) Remove(id string) RemoveResult {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, found := s.current.Load().WithoutEntry(id)
	if !found {
		return RemoveResult{Found: false}
	}
	s.current.Store(next)

	result := RemoveResult{Found: true}
	if err := s.store.SaveSnapshot(next); err != nil {
		result.PersistErr = err
		s.logger.Warn("fingerprint removed but snapshot not persisted",
			logging.String("id", id), logging.Error(err))
	} else {
		s.logger.Info("fingerprint removed", logging.String("id", id))
	}
	return result
}

// Reload rebuilds the registry from the spam directory unconditionally
// and persists a fresh snapshot. It returns the new fingerprint count.
func (s *Service) Reload() (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg, err := s.store.LoadFromSource(s.spamDir)
	if err != nil {
		return 0, err
	}
	s.current.Store(reg)
	if err := s.store.SaveSnapshot(reg); err != nil {
		s.logger.Warn("failed to persist snapshot after reload", logging.Error(err))
	}
	s.logger.Info("registry reloaded", logging.Int("fingerprint_count", reg.Len()))
	return reg.Len(), nil
}

// List returns the registered entries in insertion order.
func (s *Service) List() []registry.Entry {
	return s.current.Load().Entries()
}

// Count returns the number of registered fingerprints.
func (s *Service) Count() int {
	return s.current.Load().Len()
}

// Tolerance returns the configured matching tolerance in bits.
func (s *Service) Tolerance() int {
	return s.tolerance
}

// newEntryID builds a unique archive filename from a short random
// prefix and a sanitized name hint.
func newEntryID(nameHint string) string {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	hint := sanitizeHint(nameHint)
	if hint == "" {
		return prefix + ".png"
	}
	return prefix + "_" + hint + ".png"
}

func sanitizeHint(hint string) string {
	hint = strings.TrimSuffix(filepath.Base(hint), filepath.Ext(hint))
	var b strings.Builder
	for _, r := range strings.ToLower(hint) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
