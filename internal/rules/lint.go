package rules

import (
	"fmt"

	"artgen/internal/layers"
)

// Warning is a static finding about a rule set checked against a layer
// configuration.
type Warning struct {
	Rule    string
	Message string
	// Hang marks a reroll that can never terminate for this configuration.
	Hang bool
}

func (w Warning) String() string {
	return fmt.Sprintf("rule %s: %s", w.Rule, w.Message)
}

// Lint reports reroll rules whose exclusion set covers every drawable item
// of their category, plus rules naming categories the configuration does
// not have. Conditions on items that are not configured are not reported:
// force actions may set such values on purpose.
func Lint(s *Set, cfg *layers.Config) []Warning {
	pseudo := map[string]bool{}
	for _, r := range s.Ordering {
		for _, a := range r.Then {
			if p, ok := a.(InsertPseudo); ok {
				pseudo[p.Category] = true
			}
		}
	}
	known := func(name string) bool {
		_, ok := cfg.Category(name)
		return ok || pseudo[name]
	}

	var out []Warning
	check := func(r Rule) {
		for _, c := range r.When {
			if !known(c.Category) {
				out = append(out, Warning{Rule: r.Name, Message: fmt.Sprintf("condition on unknown category %q never holds", c.Category)})
			}
		}
		for _, a := range r.Then {
			target := actionTarget(a)
			if target != "" && !known(target) {
				out = append(out, Warning{Rule: r.Name, Message: fmt.Sprintf("%s targets unknown category %q (no effect)", a.Kind(), target)})
				continue
			}
			rr, ok := a.(Reroll)
			if !ok {
				continue
			}
			if cat, ok := cfg.Category(rr.Category); ok && exhausts(cat, rr.Exclude) {
				out = append(out, Warning{
					Rule:    r.Name,
					Message: fmt.Sprintf("reroll of %s excludes every drawable item; a matching unit never finishes", rr.Category),
					Hang:    true,
				})
			}
		}
	}
	for _, r := range s.Constraints {
		check(r)
	}
	for _, r := range s.Ordering {
		check(r)
	}
	return out
}

func exhausts(c layers.Category, exclude []string) bool {
	for i, item := range c.Items {
		if c.Weights[i] > 0 && !contains(exclude, item) {
			return false
		}
	}
	return true
}

func actionTarget(a Action) string {
	switch x := a.(type) {
	case Reroll:
		return x.Category
	case ForceSet:
		return x.Category
	case PromoteToTop:
		return x.Category
	case DemoteBehind:
		return x.Category
	case SetPriority:
		return x.Category
	}
	return ""
}
