package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"artgen/internal/errkind"
)

//go:embed lionesses.yaml
var builtinRules []byte

// BuiltinName selects the embedded rule set.
const BuiltinName = "builtin"

// Set holds both chains as loaded from a rule file.
//
//	constraints:
//	  - name: zombie-eyes
//	    when: [{category: Skin, in: [Zombie]}]
//	    then:
//	      - reroll: {category: Eyes, exclude: [Blue, Green]}
//	ordering:
//	  - name: scuba
//	    when: [{category: Mouth, in: [Scuba]}]
//	    then:
//	      - shift: {delta: 1, except: Background}
//	      - pseudo: {category: Pseudo, item: Scuba, priority: 1}
type Set struct {
	Constraints []Rule
	Ordering    []Rule
}

// Builtin returns the embedded rule set for the Jungle Cats Lionesses
// collection.
func Builtin() *Set {
	s, err := Parse(builtinRules)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded rule set: %v", err))
	}
	return s
}

// Load reads a rule file. The name BuiltinName returns Builtin and the
// empty path returns an empty set.
func Load(path string) (*Set, error) {
	switch path {
	case "":
		return &Set{}, nil
	case BuiltinName:
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "read rules", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a rule file.
func Parse(data []byte) (*Set, error) {
	var raw struct {
		Constraints []rawRule `yaml:"constraints"`
		Ordering    []rawRule `yaml:"ordering"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errkind.Wrap(errkind.Config, "parse rules", err)
	}
	s := &Set{}
	for _, r := range raw.Constraints {
		s.Constraints = append(s.Constraints, r.rule())
	}
	for _, r := range raw.Ordering {
		s.Ordering = append(s.Ordering, r.rule())
	}
	if err := checkKinds(s.Constraints, true); err != nil {
		return nil, err
	}
	if err := checkKinds(s.Ordering, false); err != nil {
		return nil, err
	}
	return s, nil
}

// Chains builds the resolver and reorderer for the set.
func (s *Set) Chains() (*Resolver, *Reorderer, error) {
	res, err := NewResolver(s.Constraints)
	if err != nil {
		return nil, nil, err
	}
	ord, err := NewReorderer(s.Ordering)
	if err != nil {
		return nil, nil, err
	}
	return res, ord, nil
}

type rawRule struct {
	Name string      `yaml:"name"`
	When []Condition `yaml:"when"`
	Then actionList  `yaml:"then"`
}

func (r rawRule) rule() Rule {
	return Rule{Name: r.Name, When: r.When, Then: r.Then}
}

// actionList decodes a sequence of single-key mappings, the key naming the
// action kind.
type actionList []Action

func (l *actionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: then must be a list of actions", node.Line)
	}
	out := make(actionList, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: action must be a mapping with exactly one key", item.Line)
		}
		a, err := decodeAction(Kind(item.Content[0].Value), item.Content[1])
		if err != nil {
			return fmt.Errorf("line %d: %w", item.Line, err)
		}
		out = append(out, a)
	}
	*l = out
	return nil
}

func decodeAction(kind Kind, v *yaml.Node) (Action, error) {
	var (
		a   Action
		err error
	)
	switch kind {
	case KindReroll:
		var x Reroll
		err = v.Decode(&x)
		if err == nil && (x.Category == "" || len(x.Exclude) == 0) {
			err = fmt.Errorf("reroll needs category and exclude")
		}
		a = x
	case KindForceSet:
		var x ForceSet
		err = v.Decode(&x)
		if err == nil && x.Category == "" {
			err = fmt.Errorf("force needs category")
		}
		a = x
	case KindShiftAll:
		var x ShiftAll
		err = v.Decode(&x)
		a = x
	case KindInsertPseudo:
		var x InsertPseudo
		err = v.Decode(&x)
		if err == nil && (x.Category == "" || x.Item == "") {
			err = fmt.Errorf("pseudo needs category and item")
		}
		a = x
	case KindPromoteToTop:
		var x PromoteToTop
		err = v.Decode(&x)
		if err == nil && x.Category == "" {
			err = fmt.Errorf("top needs category")
		}
		a = x
	case KindDemoteBehind:
		var x DemoteBehind
		err = v.Decode(&x)
		switch {
		case err != nil:
		case x.Category == "" || x.Behind == "":
			err = fmt.Errorf("behind needs category and of")
		case x.Epsilon < 0:
			err = fmt.Errorf("behind epsilon must not be negative, got %v", x.Epsilon)
		}
		a = x
	case KindSetPriority:
		var x SetPriority
		err = v.Decode(&x)
		if err == nil && x.Category == "" {
			err = fmt.Errorf("priority needs category")
		}
		a = x
	default:
		return nil, fmt.Errorf("unknown action %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return a, nil
}
