package rules

import (
	"log"

	"artgen/internal/errkind"
	"artgen/internal/layers"
	"artgen/internal/sampler"
)

// DefaultEpsilon is the gap DemoteBehind leaves when none is configured.
const DefaultEpsilon = 0.1

// Kind tags an action variant.
type Kind string

const (
	KindReroll       Kind = "reroll"
	KindForceSet     Kind = "force"
	KindShiftAll     Kind = "shift"
	KindInsertPseudo Kind = "pseudo"
	KindPromoteToTop Kind = "top"
	KindDemoteBehind Kind = "behind"
	KindSetPriority  Kind = "priority"
)

// constraintKinds may appear in a constraint chain; every other kind
// belongs to the ordering chain.
var constraintKinds = map[Kind]bool{
	KindReroll:   true,
	KindForceSet: true,
}

// env is what an action may read and mutate.
type env struct {
	sel    *layers.Selection
	cfg    *layers.Config
	src    sampler.Source
	logger *log.Logger
}

func (e *env) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Action is one effect of a matched rule. An action targeting a category
// that is not in the selection does nothing.
type Action interface {
	Kind() Kind
	apply(e *env) error
}

// Reroll redraws Category while its item is one of Exclude. It never
// terminates if Exclude covers every positively weighted item of the
// category; Lint reports such rules.
type Reroll struct {
	Category string   `yaml:"category"`
	Exclude  []string `yaml:"exclude"`
}

func (Reroll) Kind() Kind { return KindReroll }

func (a Reroll) apply(e *env) error {
	cur, ok := e.sel.Item(a.Category)
	if !ok {
		return nil
	}
	cat, ok := e.cfg.Category(a.Category)
	if !ok {
		return errkind.Errorf(errkind.Config, "reroll %s: not a configured category", a.Category)
	}
	for contains(a.Exclude, cur) {
		e.logf("[rules] rerolling %s (was %q)", a.Category, cur)
		next, err := sampler.Pick(e.src, cat)
		if err != nil {
			return err
		}
		cur = next
		e.sel.SetItem(a.Category, cur)
	}
	return nil
}

// ForceSet overwrites the item of Category.
type ForceSet struct {
	Category string `yaml:"category"`
	Item     string `yaml:"item"`
}

func (ForceSet) Kind() Kind { return KindForceSet }

func (a ForceSet) apply(e *env) error {
	e.sel.SetItem(a.Category, a.Item)
	return nil
}

// ShiftAll adds Delta to the priority of every category except Except.
type ShiftAll struct {
	Delta  float64 `yaml:"delta"`
	Except string  `yaml:"except"`
}

func (ShiftAll) Kind() Kind { return KindShiftAll }

func (a ShiftAll) apply(e *env) error {
	for _, name := range e.sel.Categories() {
		if name == a.Except {
			continue
		}
		p, _ := e.sel.Priority(name)
		e.sel.SetPriority(name, p+a.Delta)
	}
	return nil
}

// InsertPseudo adds a synthetic category/item pair at a fixed priority.
type InsertPseudo struct {
	Category string  `yaml:"category"`
	Item     string  `yaml:"item"`
	Priority float64 `yaml:"priority"`
}

func (InsertPseudo) Kind() Kind { return KindInsertPseudo }

func (a InsertPseudo) apply(e *env) error {
	e.sel.Set(a.Category, a.Item, a.Priority)
	return nil
}

// PromoteToTop moves Category above everything currently in the selection.
type PromoteToTop struct {
	Category string `yaml:"category"`
}

func (PromoteToTop) Kind() Kind { return KindPromoteToTop }

func (a PromoteToTop) apply(e *env) error {
	if e.sel.Has(a.Category) {
		e.sel.SetPriority(a.Category, e.sel.MaxPriority()+1)
	}
	return nil
}

// DemoteBehind places Category just behind Behind.
type DemoteBehind struct {
	Category string  `yaml:"category"`
	Behind   string  `yaml:"of"`
	Epsilon  float64 `yaml:"epsilon"`
}

func (DemoteBehind) Kind() Kind { return KindDemoteBehind }

func (a DemoteBehind) apply(e *env) error {
	ref, ok := e.sel.Priority(a.Behind)
	if !ok || !e.sel.Has(a.Category) {
		return nil
	}
	eps := a.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	e.sel.SetPriority(a.Category, ref-eps)
	return nil
}

// SetPriority sets the priority of Category to a literal value.
type SetPriority struct {
	Category string  `yaml:"category"`
	Priority float64 `yaml:"value"`
}

func (SetPriority) Kind() Kind { return KindSetPriority }

func (a SetPriority) apply(e *env) error {
	e.sel.SetPriority(a.Category, a.Priority)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
