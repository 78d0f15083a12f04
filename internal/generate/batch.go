package generate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"artgen/internal/errkind"
	"artgen/internal/metadata"
)

// EventKind says what happened to a unit.
type EventKind int

const (
	UnitStarted EventKind = iota
	UnitFinished
)

// Event is sent to the Observer as units start and finish.
type Event struct {
	Kind   EventKind
	Index  int
	Amount int
	Err    error // set on a failed UnitFinished
}

// Observer receives unit events. It is called from worker goroutines and
// must be safe for concurrent use.
type Observer func(Event)

// Batch is the outcome of a successful run.
type Batch struct {
	Seed         int64
	Results      []Result // by index
	Duplicates   []Duplicate
	AggregateRef string
	Started      time.Time
	Finished     time.Time
}

// Records returns the metadata records in index order.
func (b *Batch) Records() []metadata.Record {
	out := make([]metadata.Record, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Record
	}
	return out
}

// Run generates amount items. At most Concurrency units are in flight.
// Once a unit fails no further unit starts, but units already running are
// left to finish; the first failure is returned as a *UnitError. On success
// duplicates are logged and all.json is written.
func (g *Generator) Run(ctx context.Context, amount int) (*Batch, error) {
	if amount < 0 {
		return nil, errkind.Errorf(errkind.Config, "amount must be >= 0, got %d", amount)
	}
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return nil, errkind.Wrap(errkind.IO, "create output directory", err)
	}

	batch := &Batch{Seed: g.cfg.Seed, Started: time.Now()}
	pad := metadata.PadWidth(amount, g.cfg.Pad)
	results := make([]Result, amount)

	g.logger.Printf("[gen] generating %d items (seed %d, concurrency %d)", amount, g.cfg.Seed, g.cfg.Concurrency)

	var (
		grp    errgroup.Group
		failed atomic.Bool
	)
	grp.SetLimit(g.cfg.Concurrency)
	for i := 0; i < amount; i++ {
		if failed.Load() {
			break
		}
		i := i
		grp.Go(func() error {
			if failed.Load() {
				return nil
			}
			g.notify(Event{Kind: UnitStarted, Index: i, Amount: amount})
			res, err := g.unit(ctx, i, pad)
			g.notify(Event{Kind: UnitFinished, Index: i, Amount: amount, Err: err})
			if err != nil {
				failed.Store(true)
				g.logger.Printf("[gen] error: %d: %v", i+1, err)
				return &UnitError{Index: i, Err: err}
			}
			results[i] = res
			g.logger.Printf("[gen] completed: %d", i+1)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	batch.Results = results

	records := batch.Records()
	batch.Duplicates = FindDuplicates(records)
	if len(batch.Duplicates) > 0 {
		g.logger.Printf("[gen] %d repeated attribute sets:", len(batch.Duplicates))
		for _, d := range batch.Duplicates {
			g.logger.Printf("[gen]   %s", d)
		}
		g.logger.Printf("[gen] if there are too many repeats, add more items or edit them by hand")
	}

	ref, err := g.cfg.Writer.WriteAll(ctx, records)
	if err != nil {
		return nil, err
	}
	batch.AggregateRef = ref
	batch.Finished = time.Now()
	g.logger.Printf("[gen] wrote %s", ref)
	return batch, nil
}

func (g *Generator) notify(e Event) {
	if g.cfg.Observer != nil {
		g.cfg.Observer(e)
	}
}

// Duplicate is a set of units that ended with identical attribute lists.
type Duplicate struct {
	Attributes []metadata.Attribute
	Indexes    []int
	Names      []string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("%v share %s", d.Names, describeAttrs(d.Attributes))
}

// FindDuplicates groups records whose attribute lists are exactly equal
// (same traits, same values, same order). Name and image are ignored.
// Groups are ordered by their first index; records with a unique attribute
// list are not reported.
func FindDuplicates(recs []metadata.Record) []Duplicate {
	groups := make(map[string]*Duplicate)
	var order []string
	for _, r := range recs {
		key := attrKey(r.Attributes)
		d, ok := groups[key]
		if !ok {
			d = &Duplicate{Attributes: r.Attributes}
			groups[key] = d
			order = append(order, key)
		}
		d.Indexes = append(d.Indexes, r.Index)
		d.Names = append(d.Names, r.Name)
	}
	var out []Duplicate
	for _, key := range order {
		if d := groups[key]; len(d.Indexes) > 1 {
			out = append(out, *d)
		}
	}
	return out
}

// attrKey quotes every field so names containing separators cannot collide.
func attrKey(attrs []metadata.Attribute) string {
	var b []byte
	for _, a := range attrs {
		b = strconv.AppendQuote(b, a.TraitType)
		b = strconv.AppendQuote(b, a.Value)
	}
	return string(b)
}

func describeAttrs(attrs []metadata.Attribute) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.TraitType + "=" + a.Value
	}
	return strings.Join(parts, ", ")
}
