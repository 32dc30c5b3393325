// Package randutil centralises how seeded random sources are built so that
// every call site gets reproducible sequences from a single int64 seed.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed. rand/v2's PCG
// wants two 64-bit seeds; both are derived here so callers only carry one.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// mix is the splitmix64 finalizer, used to spread low-entropy seeds.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
