// Package metadata builds and persists the per-item metadata documents.
//
// A template is a JSON object with at least name, image and attributes
// fields. Each generated item gets a copy with those three fields replaced;
// every other field, and the order fields appear in, is kept as written.
package metadata

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"artgen/internal/errkind"
)

// Attribute is one trait entry of a metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Record is one generated item's metadata.
type Record struct {
	Index      int
	Name       string
	Attributes []Attribute
	Image      string
	// Doc is the complete compact JSON document.
	Doc []byte
}

// Template is the read-only skeleton shared by every unit of a batch.
type Template struct {
	raw  []byte
	name string
}

// LoadTemplate reads and validates the template at path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "read template", err)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate validates a template document: a JSON object with a string
// name, an image field and an attributes array.
func ParseTemplate(data []byte) (*Template, error) {
	if !gjson.ValidBytes(data) {
		return nil, errkind.New(errkind.Config, "template is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, errkind.New(errkind.Config, "template must be a JSON object")
	}
	name := doc.Get("name")
	if name.Type != gjson.String {
		return nil, errkind.New(errkind.Config, "template needs a string name field")
	}
	if !doc.Get("image").Exists() {
		return nil, errkind.New(errkind.Config, "template needs an image field")
	}
	if !doc.Get("attributes").IsArray() {
		return nil, errkind.New(errkind.Config, "template needs an attributes array")
	}
	return &Template{raw: bytes.TrimSpace(data), name: name.String()}, nil
}

// Name is the template's base name.
func (t *Template) Name() string { return t.name }

// Instantiate clones the template for item index (0-based). The name gets a
// " #<index+1>" suffix zero-padded to pad digits.
func (t *Template) Instantiate(index, pad int, attrs []Attribute, image string) (Record, error) {
	if attrs == nil {
		attrs = []Attribute{}
	}
	rec := Record{
		Index:      index,
		Name:       fmt.Sprintf("%s #%s", t.name, PadNumber(index+1, pad)),
		Attributes: attrs,
		Image:      image,
	}

	doc := append([]byte(nil), t.raw...)
	var err error
	if doc, err = sjson.SetBytes(doc, "name", rec.Name); err != nil {
		return Record{}, errkind.Wrap(errkind.IO, "set name", err)
	}
	if doc, err = sjson.SetBytes(doc, "attributes", attrs); err != nil {
		return Record{}, errkind.Wrap(errkind.IO, "set attributes", err)
	}
	if doc, err = sjson.SetBytes(doc, "image", image); err != nil {
		return Record{}, errkind.Wrap(errkind.IO, "set image", err)
	}
	rec.Doc = doc
	return rec, nil
}

// PadNumber zero-pads n to width digits.
func PadNumber(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// PadWidth is the suffix width used for a batch of amount items: at least
// min digits, more if amount needs them.
func PadWidth(amount, min int) int {
	w := len(fmt.Sprint(amount))
	if w < min {
		return min
	}
	return w
}

// Decode reads a metadata document back into a Record. Index is not part of
// the document and is left zero.
func Decode(doc []byte) (Record, error) {
	if !gjson.ValidBytes(doc) {
		return Record{}, errkind.New(errkind.Config, "metadata is not valid JSON")
	}
	r := gjson.ParseBytes(doc)
	rec := Record{
		Name:  r.Get("name").String(),
		Image: r.Get("image").String(),
		Doc:   doc,
	}
	for _, a := range r.Get("attributes").Array() {
		rec.Attributes = append(rec.Attributes, Attribute{
			TraitType: a.Get("trait_type").String(),
			Value:     a.Get("value").String(),
		})
	}
	return rec, nil
}

// DecodeAll reads an aggregate document (a JSON array of records).
func DecodeAll(data []byte) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errkind.New(errkind.Config, "aggregate is not valid JSON")
	}
	arr := gjson.ParseBytes(data)
	if !arr.IsArray() {
		return nil, errkind.New(errkind.Config, "aggregate must be a JSON array")
	}
	var out []Record
	for i, item := range arr.Array() {
		rec, err := Decode([]byte(item.Raw))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rec.Index = i
		out = append(out, rec)
	}
	return out, nil
}
