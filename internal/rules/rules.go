// Package rules implements the two rule chains a generation unit runs
// after sampling: constraint resolution (rerolls and force-sets that
// remove incompatible combinations) and priority reordering (render-order
// adjustments, pseudo layers).
//
// Both chains are ordered lists of declarative rules. Each chain is
// evaluated exactly once per unit, top to bottom. A rule sees the effects
// of every rule before it, and nothing is re-evaluated: if a later reroll
// produces a value an earlier rule would have matched, the earlier rule
// does not run again.
package rules

import (
	"fmt"
	"log"

	"artgen/internal/errkind"
	"artgen/internal/layers"
	"artgen/internal/sampler"
)

// Condition holds when the category's current item is in In (if In is
// set) and not in NotIn. A category missing from the selection never
// satisfies a condition.
type Condition struct {
	Category string   `yaml:"category"`
	In       []string `yaml:"in,omitempty"`
	NotIn    []string `yaml:"not_in,omitempty"`
}

// Holds evaluates the condition against sel.
func (c Condition) Holds(sel *layers.Selection) bool {
	item, ok := sel.Item(c.Category)
	if !ok {
		return false
	}
	if len(c.In) > 0 && !contains(c.In, item) {
		return false
	}
	return !contains(c.NotIn, item)
}

// Rule runs Then, in order, when every condition in When holds. A rule
// with no conditions always runs.
type Rule struct {
	Name string
	When []Condition
	Then []Action
}

// Matches reports whether all conditions hold.
func (r Rule) Matches(sel *layers.Selection) bool {
	for _, c := range r.When {
		if !c.Holds(sel) {
			return false
		}
	}
	return true
}

func (r Rule) run(e *env) error {
	if !r.Matches(e.sel) {
		return nil
	}
	for _, a := range r.Then {
		if err := a.apply(e); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	return nil
}

// Resolver is the constraint chain.
type Resolver struct {
	rules  []Rule
	Logger *log.Logger // optional; logs each reroll
}

// NewResolver builds a constraint chain. Only reroll and force actions are
// allowed.
func NewResolver(rules []Rule) (*Resolver, error) {
	if err := checkKinds(rules, true); err != nil {
		return nil, err
	}
	return &Resolver{rules: rules}, nil
}

// Rules returns the chain in evaluation order.
func (r *Resolver) Rules() []Rule { return r.rules }

// Resolve runs every constraint rule once against sel, drawing rerolls
// from src.
func (r *Resolver) Resolve(sel *layers.Selection, cfg *layers.Config, src sampler.Source) error {
	e := &env{sel: sel, cfg: cfg, src: src, logger: r.Logger}
	for _, rule := range r.rules {
		if err := rule.run(e); err != nil {
			return err
		}
	}
	return nil
}

// Reorderer is the priority chain.
type Reorderer struct {
	rules []Rule
}

// NewReorderer builds a priority chain. Reroll and force actions are not
// allowed.
func NewReorderer(rules []Rule) (*Reorderer, error) {
	if err := checkKinds(rules, false); err != nil {
		return nil, err
	}
	return &Reorderer{rules: rules}, nil
}

// Rules returns the chain in evaluation order.
func (r *Reorderer) Rules() []Rule { return r.rules }

// Reorder runs every priority rule once against sel. Applying it twice to
// the same selection is not the same as applying it once.
func (r *Reorderer) Reorder(sel *layers.Selection) error {
	e := &env{sel: sel}
	for _, rule := range r.rules {
		if err := rule.run(e); err != nil {
			return err
		}
	}
	return nil
}

func checkKinds(rules []Rule, constraint bool) error {
	for _, r := range rules {
		for _, a := range r.Then {
			if constraintKinds[a.Kind()] != constraint {
				chain := "ordering"
				if constraint {
					chain = "constraint"
				}
				return errkind.Errorf(errkind.Config, "rule %s: %s action not allowed in %s chain", r.Name, a.Kind(), chain)
			}
		}
	}
	return nil
}
