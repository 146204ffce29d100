package catalog

import (
	"fmt"

	"panoguess/internal/models"
)

// IntSource yields uniform integers in [0, n).
type IntSource interface {
	IntN(n int) int
}

// Sampler draws correct answers and distractors uniformly from a Catalog.
type Sampler struct {
	catalog *Catalog
	rand    IntSource
}

func NewSampler(c *Catalog, src IntSource) *Sampler {
	return &Sampler{catalog: c, rand: src}
}

// SampleCorrect picks a region uniformly at random.
func (s *Sampler) SampleCorrect() (models.Region, error) {
	if s.catalog == nil || s.catalog.Len() == 0 {
		return models.Region{}, fmt.Errorf("%w: cannot sample from an empty catalog", models.ErrConfiguration)
	}
	code := s.catalog.codeAt(s.rand.IntN(s.catalog.Len()))
	return s.catalog.Lookup(code)
}

// SampleDistractors draws count distinct codes other than exclude, rejecting
// duplicates until enough unique codes are collected.
func (s *Sampler) SampleDistractors(exclude string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	if s.catalog == nil || s.catalog.Len() < count+1 {
		size := 0
		if s.catalog != nil {
			size = s.catalog.Len()
		}
		return nil, fmt.Errorf("%w: catalog has %d regions, need at least %d for %d distractors", models.ErrConfiguration, size, count+1, count)
	}

	picked := make([]string, 0, count)
	seen := map[string]struct{}{exclude: {}}
	for len(picked) < count {
		code := s.catalog.codeAt(s.rand.IntN(s.catalog.Len()))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		picked = append(picked, code)
	}
	return picked, nil
}
