package phash

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"
)

// gradientImage renders a smooth diagonal gradient with a dark block,
// enough structure for a stable low-frequency spectrum.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + y*255/h) / 2)
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	for y := h / 4; y < h/2; y++ {
		for x := w / 4; x < w/2; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	return img
}

// noiseImage produces a deterministic pseudo-random texture that shares
// no structure with gradientImage.
func noiseImage(w, h int, seed uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	state := seed
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			state = state*6364136223846793005 + 1442695040888963407
			v := uint8(state >> 56)
			img.Set(x, y, color.RGBA{R: v, G: uint8(state >> 48), B: uint8(state >> 40), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestComputeDeterministic(t *testing.T) {
	data := encodePNG(t, gradientImage(320, 240))

	first, err := DefaultCodec.Compute(data)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := DefaultCodec.Compute(data)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if first.Hex() != second.Hex() {
		t.Fatalf("fingerprints differ for identical bytes: %s vs %s", first, second)
	}
	if first.Size() != 64 {
		t.Fatalf("expected 64-bit fingerprint, got %d", first.Size())
	}
}

func TestComputeStableAcrossReencode(t *testing.T) {
	img := gradientImage(320, 240)

	high, err := DefaultCodec.Compute(encodeJPEG(t, img, 90))
	if err != nil {
		t.Fatalf("compute q90: %v", err)
	}
	low, err := DefaultCodec.Compute(encodeJPEG(t, img, 35))
	if err != nil {
		t.Fatalf("compute q35: %v", err)
	}

	dist, err := Distance(high, low)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if dist > 5 {
		t.Fatalf("re-encoded image drifted %d bits, want <= 5", dist)
	}
}

func TestComputeStableAcrossResize(t *testing.T) {
	big, err := DefaultCodec.Compute(encodePNG(t, gradientImage(640, 480)))
	if err != nil {
		t.Fatalf("compute 640x480: %v", err)
	}
	small, err := DefaultCodec.Compute(encodePNG(t, gradientImage(160, 120)))
	if err != nil {
		t.Fatalf("compute 160x120: %v", err)
	}

	dist, err := Distance(big, small)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if dist > 5 {
		t.Fatalf("resized image drifted %d bits, want <= 5", dist)
	}
}

func TestComputeDistinguishesUnrelatedImages(t *testing.T) {
	structured, err := DefaultCodec.Compute(encodePNG(t, gradientImage(320, 240)))
	if err != nil {
		t.Fatalf("compute structured: %v", err)
	}
	unrelated, err := DefaultCodec.Compute(encodePNG(t, noiseImage(320, 240, 12345)))
	if err != nil {
		t.Fatalf("compute noise: %v", err)
	}

	dist, err := Distance(structured, unrelated)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if dist <= 10 {
		t.Fatalf("unrelated images only %d bits apart", dist)
	}
}

func TestComputeRejectsNonImage(t *testing.T) {
	_, err := DefaultCodec.Compute([]byte("definitely not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDistanceShapeMismatch(t *testing.T) {
	a, err := ParseHex("deadbeefcafef00d")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := ParseHex("deadbeef")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Distance(a, b); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestHexRoundTrip(t *testing.T) {
	const in = "8f00d1e2a3b4c5d6"
	fp, err := ParseHex(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := fp.Hex(); got != in {
		t.Fatalf("round trip: got %s want %s", got, in)
	}
	if fp.Size() != 64 {
		t.Fatalf("size: got %d want 64", fp.Size())
	}

	self, err := Distance(fp, fp)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if self != 0 {
		t.Fatalf("self distance: got %d want 0", self)
	}
}

func TestParseHexRejectsGarbage(t *testing.T) {
	if _, err := ParseHex(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := ParseHex("xyz"); err == nil {
		t.Fatal("expected error for non-hex input")
	}
}

func TestKnownDistance(t *testing.T) {
	a, err := ParseHex("0000000000000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := ParseHex("000000000000000f")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dist, err := Distance(a, b)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if dist != 4 {
		t.Fatalf("distance: got %d want 4", dist)
	}
}

func TestApplyOrientationDimensions(t *testing.T) {
	img := gradientImage(40, 20)

	for _, orientation := range []int{5, 6, 7, 8} {
		rotated := applyOrientation(img, orientation)
		bounds := rotated.Bounds()
		if bounds.Dx() != 20 || bounds.Dy() != 40 {
			t.Fatalf("orientation %d: got %dx%d, want 20x40", orientation, bounds.Dx(), bounds.Dy())
		}
	}
	for _, orientation := range []int{1, 2, 3, 4} {
		rotated := applyOrientation(img, orientation)
		bounds := rotated.Bounds()
		if bounds.Dx() != 40 || bounds.Dy() != 20 {
			t.Fatalf("orientation %d: got %dx%d, want 40x20", orientation, bounds.Dx(), bounds.Dy())
		}
	}
}

func TestApplyOrientationRotateRoundTrip(t *testing.T) {
	img := gradientImage(40, 20)

	// 180 degrees applied twice is the identity.
	twice := applyOrientation(applyOrientation(img, 3), 3)
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if twice.At(x, y) != color.RGBAModel.Convert(img.At(x, y)) {
				t.Fatalf("pixel (%d,%d) changed after double rotation", x, y)
			}
		}
	}
}

func TestDCTConstantSignal(t *testing.T) {
	grid := make([][]float64, 8)
	for y := range grid {
		grid[y] = make([]float64, 8)
		for x := range grid[y] {
			grid[y][x] = 100
		}
	}
	coeffs := dct2d(grid)
	if coeffs[0][0] == 0 {
		t.Fatal("DC coefficient of constant signal should be non-zero")
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if y == 0 && x == 0 {
				continue
			}
			if math.Abs(coeffs[y][x]) > 1e-6 {
				t.Fatalf("AC coefficient [%d][%d] = %f, want 0 for constant signal", y, x, coeffs[y][x])
			}
		}
	}
}
