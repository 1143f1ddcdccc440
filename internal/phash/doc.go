// Package phash computes perceptual fingerprints for images.
//
// A fingerprint is a fixed-length bit vector derived from the
// low-frequency DCT coefficients of a downscaled grayscale rendition of
// the image. Two fingerprints are compared only by Hamming distance:
// re-encodes, resizes, and minor recompression of the same picture land
// within a few bits of each other, while structurally different images
// land far apart.
package phash
