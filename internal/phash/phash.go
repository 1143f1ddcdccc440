package phash

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"sort"
	"strconv"
)

var (
	// ErrDecode reports input bytes that are not a recognizable image.
	ErrDecode = errors.New("image decode failed")
	// ErrShape reports a comparison between fingerprints of different
	// bit lengths. This is a codec configuration error, not a data
	// condition.
	ErrShape = errors.New("fingerprint length mismatch")
)

// Fingerprint is an immutable fixed-length bit vector. The zero value is
// an empty fingerprint with no bits.
type Fingerprint struct {
	words []uint64
	size  int
}

// Size returns the number of bits in the fingerprint.
func (f Fingerprint) Size() int { return f.size }

// IsZero reports whether the fingerprint carries no bits.
func (f Fingerprint) IsZero() bool { return f.size == 0 }

// Hex returns the fingerprint as a fixed-width lowercase hex string,
// most significant nibble first. A 64-bit fingerprint renders as 16
// hex digits.
func (f Fingerprint) Hex() string {
	nibbles := f.size / 4
	out := make([]byte, nibbles)
	for i := 0; i < nibbles; i++ {
		shift := uint(f.size - (i+1)*4)
		word := f.words[shift/64]
		v := (word >> (shift % 64)) & 0xf
		out[i] = "0123456789abcdef"[v]
	}
	return string(out)
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return f.Hex() }

// ParseHex decodes a fingerprint from its hex form. The bit length is
// four times the number of hex digits, so a snapshot round-trip
// preserves the exact shape.
func ParseHex(s string) (Fingerprint, error) {
	if s == "" {
		return Fingerprint{}, errors.New("empty fingerprint")
	}
	size := len(s) * 4
	words := make([]uint64, (size+63)/64)
	for i := 0; i < len(s); i++ {
		v, err := strconv.ParseUint(string(s[i]), 16, 8)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("parse fingerprint %q: %w", s, err)
		}
		shift := uint(size - (i+1)*4)
		words[shift/64] |= v << (shift % 64)
	}
	return Fingerprint{words: words, size: size}, nil
}

// Distance returns the Hamming distance between two fingerprints of the
// same bit length.
func Distance(a, b Fingerprint) (int, error) {
	if a.size != b.size {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrShape, a.size, b.size)
	}
	d := 0
	for i := range a.words {
		d += bits.OnesCount64(a.words[i] ^ b.words[i])
	}
	return d, nil
}

// Codec converts raw image bytes into fingerprints. GridSize is the
// side of the downscaled luminance grid the DCT runs over; BlockSize is
// the side of the retained low-frequency coefficient block, so the
// fingerprint carries BlockSize*BlockSize bits.
type Codec struct {
	GridSize  int
	BlockSize int
}

// DefaultCodec matches the registry's persisted shape: 32x32 grid,
// 8x8 block, 64-bit fingerprints.
var DefaultCodec = Codec{GridSize: 32, BlockSize: 8}

// Bits returns the fingerprint length this codec produces.
func (c Codec) Bits() int { return c.BlockSize * c.BlockSize }

// Compute decodes data, normalizes orientation and color, and returns
// its perceptual fingerprint. Identical bytes always produce identical
// fingerprints. Returns ErrDecode when data is not a decodable image.
func (c Codec) Compute(data []byte) (Fingerprint, error) {
	img, err := decodeNormalized(data)
	if err != nil {
		return Fingerprint{}, err
	}
	return c.FromImage(img), nil
}

// Decode decodes image bytes with the same normalization Compute
// applies, for callers that need the pixels as well as the
// fingerprint.
func (c Codec) Decode(data []byte) (image.Image, error) {
	return decodeNormalized(data)
}

// FromImage fingerprints an already decoded image. Compute is the
// byte-level entry point and additionally applies EXIF orientation.
func (c Codec) FromImage(img image.Image) Fingerprint {
	grid := lumaGrid(img, c.GridSize)
	coeffs := dct2d(grid)

	n := c.BlockSize
	block := make([]float64, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			block = append(block, coeffs[y][x])
		}
	}

	// Threshold against the median of the AC coefficients only; the DC
	// term tracks overall brightness, not structure.
	ac := append([]float64(nil), block[1:]...)
	sort.Float64s(ac)
	median := ac[len(ac)/2]
	if len(ac)%2 == 0 {
		median = (ac[len(ac)/2-1] + ac[len(ac)/2]) / 2
	}

	size := n * n
	words := make([]uint64, (size+63)/64)
	for i, coeff := range block {
		if coeff > median {
			pos := uint(size - 1 - i)
			words[pos/64] |= 1 << (pos % 64)
		}
	}
	return Fingerprint{words: words, size: size}
}
