// Package layers holds the trait categories of a collection and the
// per-unit selection built from them.
//
// A layer configuration maps each category name to its selectable items,
// their weights, and a base render priority:
//
//	Background:
//	  items:    [Blue, Green]
//	  weights:  [3, 1]
//	  priority: 0
//	Eyes:
//	  items:    [Cat Eyes, Laser Eyes]
//	  weights:  [10, 1]
//	  priority: 2
//
// JSON is accepted as well (it is valid YAML). The order categories are
// declared in is significant: it is the tie-break for equal priorities.
package layers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"artgen/internal/errkind"
)

// Category is one trait slot. Immutable after loading.
type Category struct {
	Name     string
	Items    []string
	Weights  []float64
	Priority float64
}

// Has reports whether item is one of the category's configured items.
func (c Category) Has(item string) bool {
	for _, it := range c.Items {
		if it == item {
			return true
		}
	}
	return false
}

// Config is the ordered set of categories for a collection.
type Config struct {
	categories []Category
	index      map[string]int
}

// rawCategory mirrors one entry of the configuration file.
type rawCategory struct {
	Items    []string  `yaml:"items"`
	Weights  []float64 `yaml:"weights"`
	Priority float64   `yaml:"priority"`
}

// Load reads and parses the layer configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "read layer config", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a layer configuration, keeping category declaration order.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errkind.Wrap(errkind.Config, "parse layer config", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errkind.New(errkind.Config, "layer config is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errkind.New(errkind.Config, "layer config must be a mapping of category name to definition")
	}

	var cats []Category
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var raw rawCategory
		if err := val.Decode(&raw); err != nil {
			return nil, errkind.Wrap(errkind.Config, fmt.Sprintf("category %q (line %d)", key.Value, key.Line), err)
		}
		cats = append(cats, Category{
			Name:     key.Value,
			Items:    raw.Items,
			Weights:  raw.Weights,
			Priority: raw.Priority,
		})
	}
	return New(cats)
}

// New validates categories and builds a Config in the given order.
func New(categories []Category) (*Config, error) {
	if len(categories) == 0 {
		return nil, errkind.New(errkind.Config, "layer config has no categories")
	}
	cfg := &Config{index: make(map[string]int, len(categories))}
	for _, c := range categories {
		if err := validate(c); err != nil {
			return nil, err
		}
		if _, dup := cfg.index[c.Name]; dup {
			return nil, errkind.Errorf(errkind.Config, "category %q declared twice", c.Name)
		}
		cfg.index[c.Name] = len(cfg.categories)
		cfg.categories = append(cfg.categories, c)
	}
	return cfg, nil
}

func validate(c Category) error {
	if c.Name == "" {
		return errkind.New(errkind.Config, "category with empty name")
	}
	if len(c.Items) == 0 {
		return errkind.Errorf(errkind.Config, "category %q has no items", c.Name)
	}
	if len(c.Items) != len(c.Weights) {
		return errkind.Errorf(errkind.Config, "category %q has %d items but %d weights", c.Name, len(c.Items), len(c.Weights))
	}
	for _, w := range c.Weights {
		if w > 0 {
			return nil
		}
	}
	return errkind.Errorf(errkind.Config, "category %q has no positive weight", c.Name)
}

// Categories returns the categories in declaration order.
func (c *Config) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Names returns the category names in declaration order.
func (c *Config) Names() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Category looks up a category by name.
func (c *Config) Category(name string) (Category, bool) {
	i, ok := c.index[name]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Len returns the number of categories.
func (c *Config) Len() int { return len(c.categories) }
