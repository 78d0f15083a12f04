package sampler

import (
	"errors"
	"testing"

	"artgen/internal/errkind"
	"artgen/internal/layers"
)

// seq replays fixed Float64 values.
type seq struct {
	vals []float64
	i    int
}

func (s *seq) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func TestWeightedAlwaysReturnsMember(t *testing.T) {
	items := []string{"A", "B", "C", "D"}
	weights := []float64{0.1, 5, 2.5, 0.001}
	src := New(42)
	for n := 0; n < 5000; n++ {
		got, err := Weighted(src, items, weights)
		if err != nil {
			t.Fatalf("Weighted: %v", err)
		}
		found := false
		for _, it := range items {
			if it == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("Weighted returned %q, not in %v", got, items)
		}
	}
}

func TestWeightedBoundaries(t *testing.T) {
	items := []string{"A", "B", "C"}
	weights := []float64{1, 2, 1} // cumulative 1, 3, 4 of total 4
	tests := []struct {
		r    float64
		want string
	}{
		{0, "A"},
		{0.2499, "A"},
		{0.25, "B"},
		{0.7499, "B"},
		{0.75, "C"},
		{0.99999, "C"},
		{1.0, "C"}, // rounding fallback
	}
	for _, tc := range tests {
		got, err := Weighted(&seq{vals: []float64{tc.r}}, items, weights)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("r=%v: got %q, want %q", tc.r, got, tc.want)
		}
	}
}

func TestWeightedSkipsNonPositive(t *testing.T) {
	items := []string{"never", "always", "nope"}
	weights := []float64{0, 3, -2}
	for _, r := range []float64{0, 0.5, 0.9999} {
		got, err := Weighted(&seq{vals: []float64{r}}, items, weights)
		if err != nil {
			t.Fatal(err)
		}
		if got != "always" {
			t.Errorf("r=%v: got %q", r, got)
		}
	}
}

func TestWeightedErrors(t *testing.T) {
	tests := []struct {
		name    string
		items   []string
		weights []float64
	}{
		{"empty", nil, nil},
		{"mismatch", []string{"A", "B"}, []float64{1}},
		{"all zero", []string{"A", "B"}, []float64{0, 0}},
		{"all negative", []string{"A"}, []float64{-1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Weighted(New(1), tc.items, tc.weights)
			if !errors.Is(err, errkind.ErrConfig) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestWeightedDistribution(t *testing.T) {
	items := []string{"rare", "common"}
	weights := []float64{1, 9}
	src := New(7)
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		got, _ := Weighted(src, items, weights)
		counts[got]++
	}
	frac := float64(counts["rare"]) / n
	if frac < 0.08 || frac > 0.12 {
		t.Errorf("rare fraction = %.3f, want ~0.10", frac)
	}
}

func TestSameSeedSameDraws(t *testing.T) {
	cfg, err := layers.New([]layers.Category{
		{Name: "Eyes", Items: []string{"A", "B", "C"}, Weights: []float64{1, 1, 1}, Priority: 2},
		{Name: "Mouth", Items: []string{"X", "Y"}, Weights: []float64{1, 3}, Priority: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		a, err := PickAll(ForUnit(99, i), cfg)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := PickAll(ForUnit(99, i), cfg)
		for _, name := range cfg.Names() {
			ai, _ := a.Item(name)
			bi, _ := b.Item(name)
			if ai != bi {
				t.Fatalf("unit %d %s: %q != %q", i, name, ai, bi)
			}
		}
	}
}

func TestPickAllUsesBasePriority(t *testing.T) {
	cfg, _ := layers.New([]layers.Category{
		{Name: "Background", Items: []string{"Blue"}, Weights: []float64{1}, Priority: 0},
		{Name: "Skin", Items: []string{"Tan"}, Weights: []float64{1}, Priority: 1.5},
	})
	sel, err := PickAll(New(1), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := sel.Priority("Skin"); p != 1.5 {
		t.Errorf("Skin priority = %v, want 1.5", p)
	}
	if sel.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sel.Len())
	}
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	if err != nil {
		t.Fatal(err)
	}
	if a < 0 {
		t.Errorf("seed %d is negative", a)
	}
}
