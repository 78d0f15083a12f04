package layers_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"artgen/internal/errkind"
	"artgen/internal/layers"
)

const yamlConfig = `
Background:
  items: [Blue, Green]
  weights: [3, 1]
  priority: 0
Skin:
  items: [Tan, Zombie]
  weights: [5, 1]
  priority: 1
Eyes:
  items: [Cat Eyes, Laser Eyes]
  weights: [10, 1]
  priority: 2
`

const jsonConfig = `{
  "Nose": {"items": ["None", "Stud"], "weights": [1, 1], "priority": 4},
  "Background": {"items": ["Blue"], "weights": [1], "priority": 0},
  "Mouth": {"items": ["Smile", "Scuba"], "weights": [0.5, 0.5], "priority": 3}
}`

func TestParseKeepsDeclarationOrder(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"yaml", yamlConfig, []string{"Background", "Skin", "Eyes"}},
		{"json", jsonConfig, []string{"Nose", "Background", "Mouth"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := layers.Parse([]byte(tc.data))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := cfg.Names(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Names() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseCategoryFields(t *testing.T) {
	cfg, err := layers.Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatal(err)
	}
	eyes, ok := cfg.Category("Eyes")
	if !ok {
		t.Fatal("Eyes not found")
	}
	if eyes.Priority != 2 {
		t.Errorf("priority = %v, want 2", eyes.Priority)
	}
	if !reflect.DeepEqual(eyes.Weights, []float64{10, 1}) {
		t.Errorf("weights = %v", eyes.Weights)
	}
	if !eyes.Has("Laser Eyes") || eyes.Has("Blue") {
		t.Error("Has() mismatch")
	}
	if _, ok := cfg.Category("Hat"); ok {
		t.Error("unexpected category Hat")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"mismatch", "Eyes: {items: [A, B], weights: [1], priority: 0}"},
		{"all zero weights", "Eyes: {items: [A, B], weights: [0, -1], priority: 0}"},
		{"no items", "Eyes: {items: [], weights: [], priority: 0}"},
		{"duplicate", "Eyes: {items: [A], weights: [1]}\nEyes: {items: [B], weights: [1]}"},
		{"not a mapping", "- Eyes\n- Mouth\n"},
		{"empty", ""},
		{"bad weight type", "Eyes: {items: [A], weights: [heavy]}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := layers.Parse([]byte(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errkind.ErrConfig) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layers.yaml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := layers.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cfg.Len())
	}

	_, err = layers.Load(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, errkind.ErrIO) {
		t.Errorf("expected IOError for missing file, got %v", err)
	}
}

func TestSelectionOrderedIsStable(t *testing.T) {
	s := layers.NewSelection()
	s.Set("Background", "Blue", 0)
	s.Set("Skin", "Tan", 2)
	s.Set("Eyes", "Green", 1)
	s.Set("Mouth", "Smile", 1)
	s.Set("Pseudo", "Scuba", 1)

	var got []string
	for _, e := range s.Ordered() {
		got = append(got, e.Category)
	}
	want := []string{"Background", "Eyes", "Mouth", "Pseudo", "Skin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ordered() = %v, want %v", got, want)
	}
}

func TestSelectionMutators(t *testing.T) {
	s := layers.NewSelection()
	s.Set("Eyes", "Blue", 2)

	if s.SetItem("Hat", "Cap") {
		t.Error("SetItem on missing category reported true")
	}
	if !s.SetItem("Eyes", "Red") {
		t.Error("SetItem on existing category reported false")
	}
	if item, _ := s.Item("Eyes"); item != "Red" {
		t.Errorf("item = %q, want Red", item)
	}
	s.SetPriority("Eyes", 7.5)
	if p, _ := s.Priority("Eyes"); p != 7.5 {
		t.Errorf("priority = %v, want 7.5", p)
	}
	if s.MaxPriority() != 7.5 {
		t.Errorf("MaxPriority() = %v", s.MaxPriority())
	}

	c := s.Clone()
	c.SetItem("Eyes", "Green")
	if item, _ := s.Item("Eyes"); item != "Red" {
		t.Error("Clone shares state with original")
	}
}
