// Package serial computes the stable 64-bit hash used to match HostDevice
// serial-number strings across the surrounding system. The hash function
// is an internal implementation detail, not a wire format; FNV-1a is used
// here as an unambiguous, allocation-free choice.
package serial

import "hash/fnv"

// Hash64 returns the FNV-1a 64-bit hash of s, or 0 for an empty serial.
func Hash64(s string) uint64 {
	if s == "" {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
