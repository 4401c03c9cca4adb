package montecarlo

import (
	"time"

	"golang.org/x/exp/rand"
)

// BlockSize is the number of consecutive paths that share one random
// stream. Streams are keyed by block index, not by worker, so the output
// for a given seed does not depend on how many workers ran.
const BlockSize = 512

// splitmix64 is the finaliser from Steele et al.; it turns correlated
// inputs (seed, seed+1, ...) into well separated PCG seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// blockStream returns the generator for block b of a run seeded with seed.
func blockStream(seed uint64, b int) *rand.Rand {
	return rand.New(rand.NewSource(splitmix64(seed ^ splitmix64(uint64(b)+1))))
}

// deriveSeed maps (seed, n) to an unrelated seed. Greek estimation uses it
// to give every bumped repricing its own draws.
func deriveSeed(seed uint64, n int) uint64 {
	if n == 0 {
		return seed
	}
	return splitmix64(seed + 0x632be59bd9b4e019*uint64(n))
}

func clockSeed() uint64 {
	s := splitmix64(uint64(time.Now().UnixNano()))
	if s == 0 {
		s = 1
	}
	return s
}
