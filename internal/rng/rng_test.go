package rng

import (
	"fmt"
	"testing"
)

func TestSource_SameSeedSameSequence(t *testing.T) {
	tests := []struct {
		name string
		draw func(s *Source) any
	}{
		{"IntN", func(s *Source) any { return s.IntN(1000) }},
		{"Float64", func(s *Source) any { return s.Float64() }},
		{"Shuffle", func(s *Source) any {
			xs := []int{0, 1, 2, 3, 4, 5}
			s.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
			return fmt.Sprint(xs)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := New(42), New(42)
			other := New(43)
			differs := false
			for i := 0; i < 50; i++ {
				va, vb := tt.draw(a), tt.draw(b)
				if va != vb {
					t.Fatalf("draw %d: seed 42 gave %v and %v", i, va, vb)
				}
				if tt.draw(other) != va {
					differs = true
				}
			}
			if !differs {
				t.Error("seeds 42 and 43 produced identical sequences")
			}
		})
	}
}

func TestSource_ShuffleUniformOverPermutations(t *testing.T) {
	src := New(7)
	const draws = 60000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		xs := []int{0, 1, 2}
		src.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
		counts[fmt.Sprint(xs)]++
	}

	if len(counts) != 6 {
		t.Fatalf("saw %d distinct permutations of 3 elements; want 6: %v", len(counts), counts)
	}
	// Chi-square with 5 degrees of freedom; 20.52 is the 0.999 quantile.
	expected := float64(draws) / 6
	var chi2 float64
	for _, n := range counts {
		d := float64(n) - expected
		chi2 += d * d / expected
	}
	if chi2 > 20.52 {
		t.Errorf("permutation counts %v not uniform (chi2=%.2f)", counts, chi2)
	}
}

func TestSource_IntNRange(t *testing.T) {
	src := NewRandom()
	for _, n := range []int{1, 2, 4, 52} {
		for i := 0; i < 1000; i++ {
			if v := src.IntN(n); v < 0 || v >= n {
				t.Fatalf("IntN(%d) = %d", n, v)
			}
		}
	}
}
