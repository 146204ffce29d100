// Package rng provides a seeded random source that is safe to share between
// the foreground and background cache fills.
package rng

import (
	"math/rand/v2"
	"sync"
)

// Source wraps a math/rand/v2 generator behind a mutex.
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a deterministic Source for the given seed.
func New(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a Source seeded from the runtime's random generator.
func NewRandom() *Source {
	return &Source{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Shuffle permutes n elements with a Fisher-Yates pass, so every ordering is
// equally likely.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.r.IntN(i + 1)
		swap(i, j)
	}
}
