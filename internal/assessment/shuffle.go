package assessment

import "math"

// Shuffle returns a deterministic permutation of items for the given seed.
// The draw sequence is a Fisher-Yates variant whose swap index at each step is
// floor(|sin(seed)| * m), with seed incremented on every draw. It reproduces
// the ordering the legacy web portal computed client-side, so a student who
// reloads mid-attempt sees the exact same order the server recorded.
//
// This is not a cryptographic source. Ordering is cosmetic only and must never
// be used for access control or per-student secrecy.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)

	for m := len(out); m > 0; {
		i := int(math.Abs(math.Sin(float64(seed))) * float64(m))
		seed++
		m--
		out[m], out[i] = out[i], out[m]
	}

	return out
}
