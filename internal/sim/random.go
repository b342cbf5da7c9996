package sim

import (
	"hash/fnv"
	"math/rand"
)

// DefaultSeed is used when no seed is configured.
const DefaultSeed = "gridtd"

// DeterministicSeedValue derives a stable seed for label under rootSeed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a random source dedicated to label. Systems
// get separate streams so adding draws in one never shifts another.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}
