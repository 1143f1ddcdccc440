package screening

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sentra/internal/logging"
)

func testService(t *testing.T, tolerance int) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	spamDir := filepath.Join(dir, "spam")
	if err := os.MkdirAll(spamDir, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	svc := New(Options{
		SpamDir:      spamDir,
		SnapshotPath: filepath.Join(dir, "hashes.json"),
		Tolerance:    tolerance,
		Logger:       logging.NewNop(),
	})
	return svc, spamDir
}

func renderImage(seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			v := uint8(x*3) ^ (seed * uint8(y/4))
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: seed, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, seed uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, renderImage(seed)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, seed uint8, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, renderImage(seed), &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestInitializeScansDirectoryAndPersists(t *testing.T) {
	svc, spamDir := testService(t, 5)
	if err := os.WriteFile(filepath.Join(spamDir, "scam.png"), pngBytes(t, 9), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	count, err := svc.Initialize()
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if count != 1 {
		t.Fatalf("count: got %d want 1", count)
	}

	// The scan must leave a snapshot behind.
	if _, err := os.Stat(filepath.Join(filepath.Dir(spamDir), "hashes.json")); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
}

func TestInitializePrefersSnapshot(t *testing.T) {
	svc, spamDir := testService(t, 5)
	snapshot := `[{"id":"from_snapshot.png","phash":"0123456789abcdef"}]`
	if err := os.WriteFile(filepath.Join(filepath.Dir(spamDir), "hashes.json"), []byte(snapshot), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// The directory has a different image; the snapshot must win.
	if err := os.WriteFile(filepath.Join(spamDir, "other.png"), pngBytes(t, 2), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	entries := svc.List()
	if len(entries) != 1 || entries[0].ID != "from_snapshot.png" {
		t.Fatalf("entries: %+v", entries)
	}
}

func TestMatchRecognizesReencodedImage(t *testing.T) {
	svc, _ := testService(t, 5)
	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	added, err := svc.Add(pngBytes(t, 11), "crypto scam")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.PersistErr != nil {
		t.Fatalf("persist: %v", added.PersistErr)
	}

	// The same scene re-encoded as a lossy JPEG should still match.
	result, err := svc.Match(jpegBytes(t, 11, 70))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !result.Matched || result.ID != added.ID {
		t.Fatalf("re-encoded image did not match: %+v", result)
	}

	// An unrelated image should not.
	result, err = svc.Match(pngBytes(t, 200))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched {
		t.Fatalf("unrelated image matched: %+v", result)
	}
}

func TestMatchRejectsNonImage(t *testing.T) {
	svc, _ := testService(t, 5)
	if _, err := svc.Match([]byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAddArchivesSanitizedCopy(t *testing.T) {
	svc, spamDir := testService(t, 5)
	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	added, err := svc.Add(jpegBytes(t, 4, 90), "Some Scam!.jpeg")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasSuffix(added.ID, "_some_scam.png") {
		t.Fatalf("id: got %q", added.ID)
	}

	// The archived copy must be a PNG that reproduces the stored
	// fingerprint on rescan.
	data, err := os.ReadFile(filepath.Join(spamDir, added.ID))
	if err != nil {
		t.Fatalf("archived copy missing: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("archived copy is not a png: %v", err)
	}

	count, err := svc.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if count != 1 {
		t.Fatalf("reload count: got %d want 1", count)
	}
	entry := svc.List()[0]
	if entry.Fingerprint.Hex() != added.Fingerprint.Hex() {
		t.Fatalf("rescan fingerprint %s differs from registered %s", entry.Fingerprint, added.Fingerprint)
	}
}

func TestAddSurvivesSnapshotFailure(t *testing.T) {
	svc, spamDir := testService(t, 5)
	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// A non-empty directory at the snapshot path makes the rename fail.
	snapshotPath := filepath.Join(filepath.Dir(spamDir), "hashes.json")
	if err := os.MkdirAll(filepath.Join(snapshotPath, "blocker"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	added, err := svc.Add(pngBytes(t, 6), "scam")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.PersistErr == nil {
		t.Fatal("expected a persist error")
	}
	// The in-memory registration must stand regardless.
	if svc.Count() != 1 {
		t.Fatalf("count after failed persist: got %d want 1", svc.Count())
	}
	result, err := svc.Match(pngBytes(t, 6))
	if err != nil || !result.Matched {
		t.Fatalf("registered image did not match: %+v err=%v", result, err)
	}
}

func TestRemove(t *testing.T) {
	svc, _ := testService(t, 5)
	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	added, err := svc.Add(pngBytes(t, 3), "gone soon")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	removed := svc.Remove(added.ID)
	if !removed.Found || removed.PersistErr != nil {
		t.Fatalf("remove: %+v", removed)
	}
	if svc.Count() != 0 {
		t.Fatalf("count after remove: %d", svc.Count())
	}

	if again := svc.Remove(added.ID); again.Found {
		t.Fatal("removing an absent id must report not found")
	}
}

func TestConcurrentMatchDuringMutation(t *testing.T) {
	svc, spamDir := testService(t, 5)
	for i := 0; i < 4; i++ {
		name := filepath.Join(spamDir, "seed_"+string(rune('a'+i))+".png")
		if err := os.WriteFile(name, pngBytes(t, uint8(20+i*7)), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if _, err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	query := pngBytes(t, 20)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				result, err := svc.Match(query)
				if err != nil {
					t.Errorf("match: %v", err)
					return
				}
				if !result.Matched {
					t.Error("registered image stopped matching mid-reload")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Reload(); err != nil {
				t.Errorf("reload: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"a1b2c3d4_crypto_scam.png": "Crypto Scam",
		"a1b2c3d4_nft.png":         "Nft",
		"a1b2c3d4.png":             "a1b2c3d4.png",
		"legacy_photo.jpg":         "legacy_photo.jpg",
	}
	for id, want := range cases {
		if got := DisplayName(id); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", id, got, want)
		}
	}
}
