package template

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// hashSampleSize caps how many points contribute to the hash.
const hashSampleSize = 40

// Hash returns a stable hex digest of the point set's content, robust
// to small quantization jitter: coordinates are rounded to the nearest
// multiple of 2 and angles to the nearest multiple of 5 (mod 360)
// before hashing.
//
// When a set exceeds the sample size, a centered window of points is
// hashed — taken from the middle of the sorted list outward, clamped at
// either edge — so the same finger contributes the same representative
// subset regardless of incidental extra points at the extremes. "First
// N" would not have that property, and a random subset would not be a
// hash at all.
//
// This is a best-effort determinism property across successful pipeline
// runs, not a formal identity guarantee.
func Hash(points minutiae.Set) string {
	if len(points) == 0 {
		return ""
	}

	rounded := make(minutiae.Set, len(points))
	for i, p := range points {
		rounded[i] = minutiae.Point{
			X:     roundTo(p.X, 2),
			Y:     roundTo(p.Y, 2),
			Theta: roundTo(p.Theta, 5) % 360,
		}
	}
	rounded = rounded.Sorted()

	if len(rounded) > hashSampleSize {
		rounded = centeredWindow(rounded, hashSampleSize)
	}

	var sb strings.Builder
	for _, p := range rounded {
		fmt.Fprintf(&sb, "%04d%04d%03d", p.X, p.Y, p.Theta)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// centeredWindow returns size consecutive points centered on the middle
// of the list, shifted inward when the window would overrun an edge.
func centeredWindow(points minutiae.Set, size int) minutiae.Set {
	start := (len(points) - size) / 2
	if start < 0 {
		start = 0
	}
	if start+size > len(points) {
		start = len(points) - size
	}
	return points[start : start+size]
}

// roundTo rounds v to the nearest multiple of step.
func roundTo(v, step int) int {
	half := step / 2
	if v < 0 {
		return -(((-v) + half) / step * step)
	}
	return (v + half) / step * step
}
