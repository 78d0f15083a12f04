package scaffold_test

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"

	"artgen/internal/assets"
	"artgen/internal/config"
	"artgen/internal/generate"
	"artgen/internal/layers"
	"artgen/internal/metadata"
	"artgen/internal/render"
	"artgen/internal/rules"
	"artgen/internal/scaffold"
)

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cats")
	err := scaffold.Init(dir, scaffold.Answers{"name": "Jungle Cats Lionesses", "description": "Big cats"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, name := range []string{"artgen.yaml", "layers.yaml", "rules.yaml", "template.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	tpl, err := os.ReadFile(filepath.Join(dir, "template.json"))
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(tpl, "name").String(); got != "Jungle Cats Lionesses" {
		t.Errorf("template name = %q", got)
	}
	if got := gjson.GetBytes(tpl, "symbol").String(); got != "JCL" {
		t.Errorf("template symbol = %q", got)
	}
	if got := gjson.GetBytes(tpl, "description").String(); got != "Big cats" {
		t.Errorf("template description = %q", got)
	}

	f, err := os.Open(filepath.Join(dir, "layers", "Pseudo", "Scuba.png"))
	if err != nil {
		t.Fatalf("pseudo swatch: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != scaffold.SwatchSize || b.Dy() != scaffold.SwatchSize {
		t.Errorf("swatch bounds = %v", b)
	}

	// Init again must fail.
	if err := scaffold.Init(dir, nil); err == nil {
		t.Fatal("expected error on existing directory")
	}
}

func TestInitNameDefaultsToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tigers")
	if err := scaffold.Init(dir, nil); err != nil {
		t.Fatal(err)
	}
	tpl, _ := os.ReadFile(filepath.Join(dir, "template.json"))
	if got := gjson.GetBytes(tpl, "name").String(); got != "tigers" {
		t.Errorf("template name = %q", got)
	}
}

// A scaffolded project generates without further setup.
func TestInitThenGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cats")
	if err := scaffold.Init(dir, scaffold.Answers{"name": "Cats"}); err != nil {
		t.Fatal(err)
	}
	s, err := config.LoadSettings(dir)
	if err != nil || s == nil {
		t.Fatalf("LoadSettings: %v, %v", s, err)
	}
	opts := config.Resolve(dir, s, config.Env{})

	cfg, err := layers.Load(opts.Config)
	if err != nil {
		t.Fatal(err)
	}
	tpl, err := metadata.LoadTemplate(opts.Template)
	if err != nil {
		t.Fatal(err)
	}
	set, err := rules.Load(opts.Rules)
	if err != nil {
		t.Fatal(err)
	}
	if w := rules.Lint(set, cfg); len(w) != 0 {
		t.Errorf("sample rules have lint warnings: %v", w)
	}
	res, ord, err := set.Chains()
	if err != nil {
		t.Fatal(err)
	}
	dirAssets := assets.NewDir(opts.Layers)
	dirAssets.Skip = opts.Ignored

	g, err := generate.New(generate.Config{
		Layers:      cfg,
		Template:    tpl,
		Constraints: res,
		Ordering:    ord,
		Assets:      dirAssets,
		Compositor:  &render.Image{},
		Writer:      &metadata.Dir{Path: opts.Output},
		OutputDir:   opts.Output,
		Pad:         opts.Pad,
		Seed:        1,
		Concurrency: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	batch, err := g.Run(context.Background(), 25)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.Records()) != 25 {
		t.Errorf("records = %d", len(batch.Records()))
	}
	for _, r := range batch.Results {
		var mouth, acc string
		for _, tr := range r.Traits {
			switch tr.Category {
			case "Mouth":
				mouth = tr.Item
			case "Accessories":
				acc = tr.Item
			}
		}
		if mouth == "Scuba" && acc != "None" {
			t.Errorf("unit %d: Scuba with accessory %q", r.Index, acc)
		}
	}
}
