// Package generate drives generation units: one unit turns an index into
// a sampled, rule-checked, rendered image plus its metadata; a batch runs
// many units on a bounded worker pool and checks the results for
// duplicates.
package generate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"artgen/internal/assets"
	"artgen/internal/errkind"
	"artgen/internal/layers"
	"artgen/internal/metadata"
	"artgen/internal/render"
	"artgen/internal/rules"
	"artgen/internal/sampler"
)

// Config wires a Generator. Everything except Logger, Observer, Seed, Pad
// and Concurrency is required. All of it is shared read-only by every unit.
type Config struct {
	Layers      *layers.Config
	Template    *metadata.Template
	Constraints *rules.Resolver
	Ordering    *rules.Reorderer
	Assets      assets.Resolver
	Compositor  render.Compositor
	Writer      metadata.Writer

	Format    render.Format
	OutputDir string

	// Seed makes a batch reproducible; unit i draws from sampler.ForUnit(Seed, i).
	Seed int64
	// Pad is the minimum digit count of the name suffix.
	Pad int
	// Concurrency bounds in-flight units; <= 0 means runtime.NumCPU().
	Concurrency int

	Logger   *log.Logger
	Verbose  bool
	Observer Observer
}

// Trait is one selection entry after asset resolution.
type Trait struct {
	Category string
	Item     string
	URI      string
	Priority float64
}

// Result is the output of one unit.
type Result struct {
	Index       int
	ImageRef    string
	MetadataRef string
	Record      metadata.Record
	// Traits are in compositing order.
	Traits []Trait
}

// UnitError reports the unit that failed a batch.
type UnitError struct {
	Index int
	Err   error
}

func (e *UnitError) Error() string { return fmt.Sprintf("unit %d: %v", e.Index, e.Err) }

func (e *UnitError) Unwrap() error { return e.Err }

// Generator runs generation units.
type Generator struct {
	cfg    Config
	logger *log.Logger
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"layers":      cfg.Layers != nil,
		"template":    cfg.Template != nil,
		"constraints": cfg.Constraints != nil,
		"ordering":    cfg.Ordering != nil,
		"assets":      cfg.Assets != nil,
		"compositor":  cfg.Compositor != nil,
		"writer":      cfg.Writer != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errkind.Errorf(errkind.Config, "generator: missing %s", strings.Join(missing, ", "))
	}
	if cfg.Format == "" {
		cfg.Format = render.PNG
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.Pad <= 0 {
		cfg.Pad = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

// Concurrency is the effective worker limit.
func (g *Generator) Concurrency() int { return g.cfg.Concurrency }

// Select samples every category for unit i, then runs the constraint and
// ordering chains. It is pure computation.
func (g *Generator) Select(i int) (*layers.Selection, error) {
	src := sampler.ForUnit(g.cfg.Seed, i)
	sel, err := sampler.PickAll(src, g.cfg.Layers)
	if err != nil {
		return nil, err
	}
	if err := g.cfg.Constraints.Resolve(sel, g.cfg.Layers, src); err != nil {
		return nil, err
	}
	if err := g.cfg.Ordering.Reorder(sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// Unit runs the full pipeline for index i with the configured minimum
// name padding.
func (g *Generator) Unit(ctx context.Context, i int) (Result, error) {
	return g.unit(ctx, i, g.cfg.Pad)
}

func (g *Generator) unit(ctx context.Context, i, pad int) (Result, error) {
	sel, err := g.Select(i)
	if err != nil {
		return Result{}, err
	}

	traits, err := g.resolveTraits(ctx, sel)
	if err != nil {
		return Result{}, err
	}
	if g.cfg.Verbose {
		g.logger.Printf("[gen] [%d] %s", i+1, describe(traits))
	}

	job := render.Job{Index: i, Format: g.cfg.Format, OutputDir: g.cfg.OutputDir}
	attrs := make([]metadata.Attribute, len(traits))
	for n, t := range traits {
		job.Layers = append(job.Layers, t.URI)
		attrs[n] = metadata.Attribute{TraitType: t.Category, Value: t.Item}
	}
	rec, err := g.cfg.Template.Instantiate(i, pad, attrs, job.Filename())
	if err != nil {
		return Result{}, err
	}

	var (
		imagePath, metaPath string
		grp                 errgroup.Group
	)
	grp.Go(func() error {
		p, err := g.cfg.Compositor.Render(ctx, job)
		imagePath = p
		return err
	})
	grp.Go(func() error {
		p, err := g.cfg.Writer.Write(ctx, rec)
		metaPath = p
		return err
	})
	if err := grp.Wait(); err != nil {
		// Drop whichever half succeeded.
		for _, p := range []string{imagePath, metaPath} {
			if p != "" {
				os.Remove(p)
			}
		}
		return Result{}, err
	}

	return Result{
		Index:       i,
		ImageRef:    imagePath,
		MetadataRef: metaPath,
		Record:      rec,
		Traits:      traits,
	}, nil
}

// resolveTraits looks up every non-empty pick concurrently and returns the
// traits in compositing order.
func (g *Generator) resolveTraits(ctx context.Context, sel *layers.Selection) ([]Trait, error) {
	var traits []Trait
	for _, e := range sel.Ordered() {
		if e.Name == "" {
			continue
		}
		traits = append(traits, Trait{Category: e.Category, Item: e.Name, Priority: e.Priority})
	}

	var grp errgroup.Group
	for n := range traits {
		n := n
		grp.Go(func() error {
			uri, err := g.cfg.Assets.Resolve(ctx, traits[n].Category, traits[n].Item)
			if err != nil {
				return err
			}
			traits[n].URI = uri
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return traits, nil
}

func describe(traits []Trait) string {
	parts := make([]string, len(traits))
	for i, t := range traits {
		parts[i] = fmt.Sprintf("%s=%s@%g", t.Category, t.Item, t.Priority)
	}
	return strings.Join(parts, " ")
}
