package rules

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"artgen/internal/errkind"
	"artgen/internal/layers"
)

const sampleRules = `
constraints:
  - name: zombie-eyes
    when: [{category: Skin, in: [Zombie]}]
    then:
      - reroll: {category: Eyes, exclude: [Blue, Cat Eyes]}
      - force: {category: Nose, item: None}
ordering:
  - name: scuba
    when:
      - {category: Mouth, in: [Scuba]}
      - {category: Eyes, not_in: [Laser Eyes]}
    then:
      - shift: {delta: 1, except: Background}
      - pseudo: {category: Pseudo, item: Scuba, priority: 1}
      - top: {category: Mouth}
      - behind: {category: Accessories, of: Top, epsilon: 0.25}
      - priority: {category: Accessories, value: 1}
`

func TestParseRuleFile(t *testing.T) {
	s, err := Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Constraints) != 1 || len(s.Ordering) != 1 {
		t.Fatalf("got %d constraints, %d ordering rules", len(s.Constraints), len(s.Ordering))
	}

	c := s.Constraints[0]
	if c.Name != "zombie-eyes" {
		t.Errorf("name = %q", c.Name)
	}
	wantThen := []Action{
		Reroll{Category: "Eyes", Exclude: []string{"Blue", "Cat Eyes"}},
		ForceSet{Category: "Nose", Item: "None"},
	}
	if !reflect.DeepEqual(c.Then, wantThen) {
		t.Errorf("constraint actions = %#v", c.Then)
	}

	o := s.Ordering[0]
	wantWhen := []Condition{
		{Category: "Mouth", In: []string{"Scuba"}},
		{Category: "Eyes", NotIn: []string{"Laser Eyes"}},
	}
	if !reflect.DeepEqual(o.When, wantWhen) {
		t.Errorf("conditions = %#v", o.When)
	}
	wantOrder := []Action{
		ShiftAll{Delta: 1, Except: "Background"},
		InsertPseudo{Category: "Pseudo", Item: "Scuba", Priority: 1},
		PromoteToTop{Category: "Mouth"},
		DemoteBehind{Category: "Accessories", Behind: "Top", Epsilon: 0.25},
		SetPriority{Category: "Accessories", Priority: 1},
	}
	if !reflect.DeepEqual(o.Then, wantOrder) {
		t.Errorf("ordering actions = %#v", o.Then)
	}
}

func TestParseRuleFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown action", "constraints:\n  - name: x\n    then:\n      - explode: {category: Eyes}\n", "unknown action"},
		{"two keys", "constraints:\n  - name: x\n    then:\n      - {force: {category: A}, top: {category: B}}\n", "exactly one key"},
		{"missing category", "constraints:\n  - name: x\n    then:\n      - reroll: {exclude: [A]}\n", "reroll needs"},
		{"wrong chain", "constraints:\n  - name: x\n    then:\n      - top: {category: Mouth}\n", "not allowed"},
		{"negative epsilon", "ordering:\n  - name: x\n    then:\n      - behind: {category: A, of: B, epsilon: -0.5}\n", "must not be negative"},
		{"then not list", "ordering:\n  - name: x\n    then: {top: {category: A}}\n", "list of actions"},
		{"bad yaml", "constraints: [", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errkind.ErrConfig) {
				t.Errorf("expected ConfigError, got %v", err)
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q missing %q", err, tc.want)
			}
		})
	}
}

func TestBuiltinGroupOrder(t *testing.T) {
	s := Builtin()
	// First rule of each group, in the documented evaluation order.
	groups := []string{"Skin", "Head", "Eyes", "Mouth", "Accessories"}
	var seen []string
	for _, r := range s.Constraints {
		cat := r.When[0].Category
		if len(seen) == 0 || seen[len(seen)-1] != cat {
			seen = append(seen, cat)
		}
	}
	if !reflect.DeepEqual(seen, groups) {
		t.Errorf("constraint groups = %v, want %v", seen, groups)
	}
	if len(s.Ordering) != 7 {
		t.Errorf("ordering rules = %d, want 7", len(s.Ordering))
	}
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	if err != nil || len(s.Constraints)+len(s.Ordering) != 0 {
		t.Fatalf("Load(\"\") = %+v, %v", s, err)
	}
	s, err = Load(BuiltinName)
	if err != nil || len(s.Constraints) == 0 {
		t.Fatalf("Load(builtin) = %v", err)
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRules), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load(file): %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, errkind.ErrIO) {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestLintFindsHang(t *testing.T) {
	cfg, err := layers.New([]layers.Category{
		{Name: "Skin", Items: []string{"Tan", "Zombie"}, Weights: []float64{1, 1}},
		{Name: "Eyes", Items: []string{"Blue", "Green", "Unused"}, Weights: []float64{1, 1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := &Set{
		Constraints: []Rule{
			{Name: "ok", Then: []Action{Reroll{Category: "Eyes", Exclude: []string{"Blue"}}}},
			{Name: "hang", Then: []Action{Reroll{Category: "Eyes", Exclude: []string{"Blue", "Green"}}}},
			{Name: "ghost", When: []Condition{{Category: "Hat", In: []string{"Cap"}}}, Then: []Action{ForceSet{Category: "Mouth", Item: "None"}}},
		},
		Ordering: []Rule{
			{Name: "pseudo", Then: []Action{InsertPseudo{Category: "Pseudo", Item: "Scuba", Priority: 1}, PromoteToTop{Category: "Pseudo"}}},
		},
	}

	warnings := Lint(s, cfg)
	var hangs, other []string
	for _, w := range warnings {
		if w.Hang {
			hangs = append(hangs, w.Rule)
		} else {
			other = append(other, w.Rule)
		}
	}
	if !reflect.DeepEqual(hangs, []string{"hang"}) {
		t.Errorf("hang warnings = %v, want [hang]", hangs)
	}
	// ghost: unknown condition category and unknown force target.
	if !reflect.DeepEqual(other, []string{"ghost", "ghost"}) {
		t.Errorf("other warnings = %v, want [ghost ghost]", other)
	}
}

func TestBuiltinLintsCleanAgainstScenario(t *testing.T) {
	cfg := scenarioConfig(t)
	for _, w := range Lint(Builtin(), cfg) {
		if w.Hang {
			t.Errorf("unexpected hang warning: %s", w)
		}
	}
}
