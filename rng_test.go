package main

import (
	"math"
	"testing"
)

// TestFloat64GoldenValues checks the uniform stream against golden values
// produced by CPython (random.seed(n); random.random()). Matching these
// proves the seeding path, the twist, the tempering, and the 53-bit double
// construction are all bit-exact.
func TestFloat64GoldenValues(t *testing.T) {
	cases := []struct {
		seed uint64
		want []float64
	}{
		{
			seed: 42,
			want: []float64{
				0.6394267984578837,
				0.025010755222666936,
				0.27502931836911926,
				0.22321073814882275,
				0.7364712141640124,
			},
		},
		{
			seed: 0,
			want: []float64{0.8444218515250481},
		},
	}

	for _, tc := range cases {
		r := NewRNG(tc.seed)
		for i, want := range tc.want {
			got := r.Float64()
			if got != want {
				t.Errorf("seed %d draw %d: got %.17g, want %.17g", tc.seed, i, got, want)
			}
		}
	}
}

// TestSeedResetsStream verifies that reseeding reproduces the stream from
// the beginning, including the cached Gaussian sample being discarded.
func TestSeedResetsStream(t *testing.T) {
	r := NewRNG(7)
	first := make([]float64, 8)
	for i := range first {
		first[i] = r.Float64()
	}
	_ = r.Gauss(0, 1) // leaves a cached second sample behind

	r.Seed(7)
	for i, want := range first {
		if got := r.Float64(); got != want {
			t.Fatalf("draw %d after reseed: got %.17g, want %.17g", i, got, want)
		}
	}
}

// TestGaussPairCaching verifies the Box-Muller pairing: two Gaussian draws
// consume exactly two uniforms, and the second draw is the sine half of the
// same pair.
func TestGaussPairCaching(t *testing.T) {
	r := NewRNG(123)
	g1 := r.Gauss(0, 1)
	g2 := r.Gauss(0, 1)

	ref := NewRNG(123)
	u1 := ref.Float64()
	u2 := ref.Float64()
	x2pi := u1 * 2 * math.Pi
	g2rad := math.Sqrt(-2.0 * math.Log(1.0-u2))

	if want := math.Cos(x2pi) * g2rad; g1 != want {
		t.Errorf("first gauss draw: got %.17g, want %.17g", g1, want)
	}
	if want := math.Sin(x2pi) * g2rad; g2 != want {
		t.Errorf("second gauss draw: got %.17g, want %.17g", g2, want)
	}

	// The pair consumed exactly two uniforms: both streams must now agree.
	if a, b := r.Float64(), ref.Float64(); a != b {
		t.Errorf("stream position diverged after gauss pair: %.17g vs %.17g", a, b)
	}
}

// TestGaussScaling checks mean/sigma are applied to the cached sample too.
func TestGaussScaling(t *testing.T) {
	a := NewRNG(5)
	b := NewRNG(5)

	for i := 0; i < 4; i++ {
		want := 3.0 + 2.0*b.Gauss(0, 1)
		got := a.Gauss(3, 2)
		if math.Abs(got-want) > 1e-15 {
			t.Fatalf("draw %d: got %g, want %g", i, got, want)
		}
	}
}

func TestShuffleDeterministic(t *testing.T) {
	shuffled := func(seed uint64) []int {
		r := NewRNG(seed)
		xs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
		return xs
	}

	a := shuffled(42)
	b := shuffled(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different permutations: %v vs %v", a, b)
		}
	}

	// A permutation must contain every element exactly once.
	seen := make(map[int]bool)
	for _, x := range a {
		if seen[x] {
			t.Fatalf("element %d appears twice in %v", x, a)
		}
		seen[x] = true
	}
	if len(seen) != 10 {
		t.Fatalf("expected 10 distinct elements, got %d", len(seen))
	}
}

func TestWeightedChoice(t *testing.T) {
	r := NewRNG(1)

	// All mass on one index: that index must always be drawn.
	for i := 0; i < 20; i++ {
		idx, err := r.WeightedChoice([]float64{0, 0, 1, 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != 2 {
			t.Fatalf("expected index 2 with all mass on it, got %d", idx)
		}
	}

	// Degenerate weight vectors are caller errors.
	degenerate := [][]float64{
		{},
		{0, 0, 0},
		{math.NaN(), 1},
		{math.Inf(1), 1},
	}
	for _, w := range degenerate {
		if _, err := r.WeightedChoice(w); err == nil {
			t.Errorf("expected error for weights %v, got none", w)
		}
	}
}

// TestWeightedChoiceReproducible verifies that two generators at the same
// state draw the same index sequence from the same distribution.
func TestWeightedChoiceReproducible(t *testing.T) {
	w := []float64{0.1, 0.4, 0.3, 0.2}
	a := NewRNG(99)
	b := NewRNG(99)
	for i := 0; i < 50; i++ {
		ia, err := a.WeightedChoice(w)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ib, _ := b.WeightedChoice(w)
		if ia != ib {
			t.Fatalf("draw %d diverged: %d vs %d", i, ia, ib)
		}
	}
}

func TestRandBelowRange(t *testing.T) {
	r := NewRNG(3)
	counts := make([]int, 5)
	for i := 0; i < 1000; i++ {
		v := r.randBelow(5)
		if v < 0 || v >= 5 {
			t.Fatalf("randBelow(5) returned %d", v)
		}
		counts[v]++
	}
	for v, c := range counts {
		if c == 0 {
			t.Errorf("value %d never drawn in 1000 tries", v)
		}
	}
}
