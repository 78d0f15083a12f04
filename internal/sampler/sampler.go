// Package sampler draws weighted random picks from trait categories.
//
// # Determinism
//
// No function here touches a global random source. Every draw takes a
// Source, so a run seeded with the same value draws the same items. A batch
// derives one Source per generation unit with ForUnit, which keeps the
// output of unit i independent of how units are scheduled.
package sampler

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"artgen/internal/errkind"
	"artgen/internal/layers"
)

// Source is the random capability threaded through every draw.
// *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Weighted returns one of items with probability proportional to its
// weight. Items with weight <= 0 are never drawn.
func Weighted(src Source, items []string, weights []float64) (string, error) {
	if len(items) == 0 {
		return "", errkind.New(errkind.Config, "weighted pick from empty item list")
	}
	if len(items) != len(weights) {
		return "", errkind.Errorf(errkind.Config, "%d items but %d weights", len(items), len(weights))
	}
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return "", errkind.New(errkind.Config, "all weights are <= 0")
	}

	target := src.Float64() * total
	var acc float64
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return items[i], nil
		}
	}
	// Float rounding can leave target == total; fall back to the last
	// positively weighted item.
	return items[last], nil
}

// Pick draws one item from a category.
func Pick(src Source, c layers.Category) (string, error) {
	item, err := Weighted(src, c.Items, c.Weights)
	if err != nil {
		return "", fmt.Errorf("pick %s: %w", c.Name, err)
	}
	return item, nil
}

// PickAll builds a fresh selection with one draw per category, in
// declaration order, each at its base priority.
func PickAll(src Source, cfg *layers.Config) (*layers.Selection, error) {
	sel := layers.NewSelection()
	for _, c := range cfg.Categories() {
		item, err := Pick(src, c)
		if err != nil {
			return nil, err
		}
		sel.Set(c.Name, item, c.Priority)
	}
	return sel, nil
}

// New returns a seeded source.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// ForUnit derives the source for generation unit i of a batch seeded with
// seed.
func ForUnit(seed int64, i int) *rand.Rand {
	return New(seed + int64(i))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1), nil
}
