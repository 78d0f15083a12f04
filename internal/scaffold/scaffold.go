// Package scaffold creates a sample artgen project.
//
// Directory layout:
//
//	<dir>/
//	    artgen.yaml             # settings
//	    layers.yaml             # categories, items, weights, priorities
//	    rules.yaml              # constraint and ordering rules
//	    template.json           # metadata template
//	    layers/<category>/<item>.png
//	    layers/Pseudo/<item>.png  # images for pseudo layers inserted by rules
package scaffold

import (
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/tools/txtar"

	"artgen/internal/layers"
	"artgen/internal/rules"
)

//go:embed sample.txtar
var sample []byte

// SwatchSize is the edge length of generated placeholder images.
const SwatchSize = 64

// Question describes a single prompt answered before the project is written.
type Question struct {
	Key    string
	Prompt string
}

// Answers are keyed by Question.Key.
type Answers map[string]string

// Questions returns the prompts Init uses.
func Questions() []Question {
	return []Question{
		{Key: "name", Prompt: "Collection name"},
		{Key: "description", Prompt: "Description"},
	}
}

// Init writes the sample project into dir and errors if dir already exists.
func Init(dir string, answers Answers) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("project %s already exists", dir)
	}
	name := strings.TrimSpace(answers["name"])
	if name == "" {
		name = filepath.Base(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	files := make(map[string][]byte)
	for _, f := range txtar.Parse(sample).Files {
		data := f.Data
		if f.Name == "template.json" {
			var err error
			if data, err = fillTemplate(data, name, answers["description"]); err != nil {
				return err
			}
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		files[f.Name] = data
	}

	cfg, err := layers.Parse(files["layers.yaml"])
	if err != nil {
		return fmt.Errorf("sample layers: %w", err)
	}
	set, err := rules.Parse(files["rules.yaml"])
	if err != nil {
		return fmt.Errorf("sample rules: %w", err)
	}
	return writeSwatches(filepath.Join(dir, "layers"), cfg, set)
}

func fillTemplate(data []byte, name, description string) ([]byte, error) {
	var err error
	for _, kv := range []struct{ path, value string }{
		{"name", name},
		{"symbol", symbol(name)},
		{"description", description},
	} {
		if data, err = sjson.SetBytes(data, kv.path, kv.value); err != nil {
			return nil, fmt.Errorf("fill template %s: %w", kv.path, err)
		}
	}
	return pretty.Pretty(data), nil
}

// symbol is the upper-cased initials of name, at most four letters.
func symbol(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r := []rune(w)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
		if b.Len() == 4 {
			break
		}
	}
	return b.String()
}

// writeSwatches writes one flat-colour placeholder per configured item and
// per pseudo item the rules insert. Each category covers a smaller centred
// square than the one below it so a composite shows every layer; "None"
// items are fully transparent.
func writeSwatches(root string, cfg *layers.Config, set *rules.Set) error {
	cats := cfg.Categories()
	for ci, c := range cats {
		for ii, item := range c.Items {
			col := palette(ci, ii)
			if item == "None" {
				col = color.NRGBA{}
			}
			inset := ci * SwatchSize / (2 * (len(cats) + 1))
			if err := writeSwatch(filepath.Join(root, c.Name, item+".png"), col, inset); err != nil {
				return err
			}
		}
	}
	for _, p := range pseudoLayers(set) {
		col := color.NRGBA{R: 20, G: 20, B: 40, A: 160}
		if err := writeSwatch(filepath.Join(root, p.Category, p.Item+".png"), col, SwatchSize/8); err != nil {
			return err
		}
	}
	return nil
}

func pseudoLayers(set *rules.Set) []rules.InsertPseudo {
	var out []rules.InsertPseudo
	for _, r := range set.Ordering {
		for _, a := range r.Then {
			if p, ok := a.(rules.InsertPseudo); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func palette(category, item int) color.NRGBA {
	base := [][3]uint8{
		{222, 184, 135}, {46, 139, 87}, {70, 130, 180},
		{205, 92, 92}, {218, 165, 32}, {147, 112, 219},
	}[category%6]
	shift := uint8(item * 37)
	return color.NRGBA{R: base[0] + shift, G: base[1] - shift/2, B: base[2] + shift/3, A: 255}
}

func writeSwatch(path string, col color.Color, inset int) error {
	img := image.NewNRGBA(image.Rect(0, 0, SwatchSize, SwatchSize))
	for y := inset; y < SwatchSize-inset; y++ {
		for x := inset; x < SwatchSize-inset; x++ {
			img.Set(x, y, col)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create layer dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create swatch: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
