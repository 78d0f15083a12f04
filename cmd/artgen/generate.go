package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"artgen/internal/assets"
	"artgen/internal/config"
	"artgen/internal/generate"
	"artgen/internal/layers"
	"artgen/internal/ledger"
	"artgen/internal/metadata"
	"artgen/internal/progress"
	"artgen/internal/render"
	"artgen/internal/rules"
	"artgen/internal/sampler"
)

// projectFlags are the path flags shared by generate, check and verify.
type projectFlags struct {
	fs       *flag.FlagSet
	root     *string
	layers   *string
	config   *string
	template *string
	rules    *string
	out      *string
}

func addProjectFlags(fs *flag.FlagSet) *projectFlags {
	return &projectFlags{
		fs:       fs,
		root:     fs.String("root", ".", "project root"),
		layers:   fs.String("layers", "", "layer image directory"),
		config:   fs.String("config", "", "layer configuration file"),
		template: fs.String("template", "", "metadata template"),
		rules:    fs.String("rules", "", `rule set file or "builtin"`),
		out:      fs.String("out", "", "output directory"),
	}
}

// options resolves settings, environment and then every flag that was set
// explicitly. extra applies command-specific flags.
func (p *projectFlags) options(extra func(o *config.Options, name string)) (config.Options, error) {
	s, err := config.LoadSettings(*p.root)
	if err != nil {
		return config.Options{}, err
	}
	e, err := config.ParseEnv()
	if err != nil {
		return config.Options{}, err
	}
	o := config.Resolve(*p.root, s, e)
	p.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "layers":
			o.Layers = *p.layers
		case "config":
			o.Config = *p.config
		case "template":
			o.Template = *p.template
		case "rules":
			o.Rules = *p.rules
		case "out":
			o.Output = *p.out
		default:
			if extra != nil {
				extra(&o, f.Name)
			}
		}
	})
	return o, nil
}

// inputs are the read-only values every unit shares.
type inputs struct {
	layers   *layers.Config
	template *metadata.Template
	rules    *rules.Set
	resolver *rules.Resolver
	reorder  *rules.Reorderer
}

func loadInputs(o config.Options) (*inputs, error) {
	cfg, err := layers.Load(o.Config)
	if err != nil {
		return nil, err
	}
	tpl, err := metadata.LoadTemplate(o.Template)
	if err != nil {
		return nil, err
	}
	set, err := rules.Load(o.Rules)
	if err != nil {
		return nil, err
	}
	res, ord, err := set.Chains()
	if err != nil {
		return nil, err
	}
	return &inputs{layers: cfg, template: tpl, rules: set, resolver: res, reorder: ord}, nil
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	pf := addProjectFlags(fs)
	amount := fs.Int("amount", -1, "number of items")
	format := fs.String("format", "", "png or jpeg")
	concurrency := fs.Int("concurrency", 0, "units in flight")
	seed := fs.Int64("seed", 0, "random seed")
	renderer := fs.String("renderer", "", "external renderer command")
	ledgerPath := fs.String("ledger", "", "SQLite ledger file")
	pad := fs.Int("pad", 0, "minimum digits of the name suffix")
	tui := fs.Bool("tui", false, "show a progress view")
	verbose := fs.Bool("v", false, "log every unit's traits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *amount < 0 || fs.NArg() > 0 {
		return fmt.Errorf("usage: artgen generate -amount <n> [flags]")
	}

	o, err := pf.options(func(o *config.Options, name string) {
		switch name {
		case "format":
			o.Format = *format
		case "concurrency":
			o.Concurrency = *concurrency
		case "seed":
			o.Seed, o.HasSeed = *seed, true
		case "renderer":
			o.Renderer = *renderer
		case "ledger":
			o.Ledger = *ledgerPath
		case "pad":
			o.Pad = *pad
		}
	})
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *tui {
		logger.SetOutput(io.Discard)
	}

	in, err := loadInputs(o)
	if err != nil {
		return err
	}
	for _, w := range rules.Lint(in.rules, in.layers) {
		logger.Printf("[rules] warning: %s", w)
	}
	in.resolver.Logger = logger

	imgFormat, err := render.ParseFormat(o.Format)
	if err != nil {
		return err
	}
	o.Format = string(imgFormat)
	var comp render.Compositor = &render.Image{}
	if o.Renderer != "" {
		if comp, err = render.NewProcess(o.Renderer); err != nil {
			return err
		}
	}
	if !o.HasSeed {
		if o.Seed, err = sampler.NewSeed(); err != nil {
			return err
		}
	}

	dir := assets.NewDir(o.Layers)
	dir.Skip = o.Ignored

	gcfg := generate.Config{
		Layers:      in.layers,
		Template:    in.template,
		Constraints: in.resolver,
		Ordering:    in.reorder,
		Assets:      dir,
		Compositor:  comp,
		Writer:      &metadata.Dir{Path: o.Output},
		Format:      imgFormat,
		OutputDir:   o.Output,
		Seed:        o.Seed,
		Pad:         o.Pad,
		Concurrency: o.Concurrency,
		Logger:      logger,
		Verbose:     *verbose,
	}

	ctx := context.Background()
	started := time.Now()
	var (
		batch  *generate.Batch
		runErr error
	)
	if *tui {
		batch, runErr = runWithProgress(ctx, gcfg, *amount)
	} else {
		var g *generate.Generator
		if g, runErr = generate.New(gcfg); runErr == nil {
			batch, runErr = g.Run(ctx, *amount)
		}
	}

	if o.Ledger != "" {
		if err := record(o, *amount, started, batch, runErr, logger); err != nil {
			logger.Printf("[ledger] %v", err)
		}
	}
	if runErr != nil {
		var ue *generate.UnitError
		if errors.As(runErr, &ue) {
			return fmt.Errorf("generation failed at item %d (seed %d): %w", ue.Index+1, o.Seed, ue.Err)
		}
		return runErr
	}

	fmt.Printf("generated %d items in %s (seed %d)\n", len(batch.Results), o.Output, o.Seed)
	if n := len(batch.Duplicates); n > 0 {
		fmt.Printf("%d repeated attribute sets; run 'artgen verify' for the list\n", n)
	}
	return nil
}

func runWithProgress(ctx context.Context, gcfg generate.Config, amount int) (*generate.Batch, error) {
	p := tea.NewProgram(progress.New(amount))
	gcfg.Observer = progress.Observer(p)
	g, err := generate.New(gcfg)
	if err != nil {
		return nil, err
	}

	var (
		batch  *generate.Batch
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		batch, runErr = g.Run(ctx, amount)
		p.Send(progress.DoneMsg{Err: runErr})
	}()
	if _, err := p.Run(); err != nil {
		<-done
		return nil, err
	}
	<-done
	return batch, runErr
}

// record writes the run to the ledger and logs items seen in earlier runs.
func record(o config.Options, amount int, started time.Time, batch *generate.Batch, runErr error, logger *log.Logger) error {
	store, err := ledger.Open(o.Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	run := ledger.Run{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Seed:       o.Seed,
		Amount:     amount,
		Format:     o.Format,
		OutputDir:  o.Output,
		Status:     ledger.StatusOK,
	}
	if runErr != nil {
		run.Status, run.Error = ledger.StatusFailed, runErr.Error()
	} else {
		run.Items = batch.Records()
	}
	id, err := store.Record(run)
	if err != nil {
		return err
	}
	logger.Printf("[ledger] recorded run %s", id)

	if runErr != nil {
		return nil
	}
	seen, err := store.SeenBefore(id, run.Items)
	if err != nil {
		return err
	}
	for _, rec := range run.Items {
		if prev, ok := seen[rec.Index]; ok {
			logger.Printf("[ledger] %s repeats %s from run %s", rec.Name, prev[0].Name, prev[0].RunID)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	pf := addProjectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("usage: artgen check [-root <dir>] [-config <file>] [-template <file>] [-rules <file>]")
	}
	o, err := pf.options(nil)
	if err != nil {
		return err
	}
	in, err := loadInputs(o)
	if err != nil {
		return err
	}

	fmt.Printf("%d categories, %d constraint rules, %d ordering rules\n",
		in.layers.Len(), len(in.rules.Constraints), len(in.rules.Ordering))
	warnings := rules.Lint(in.rules, in.layers)
	for _, w := range warnings {
		fmt.Printf("  %s\n", w)
	}
	if len(warnings) > 0 {
		return fmt.Errorf("%d rule problems", len(warnings))
	}
	fmt.Println("ok")
	return nil
}

// ---------------------------------------------------------------------------
// verify
// ---------------------------------------------------------------------------

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	pf := addProjectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("usage: artgen verify [-root <dir>] [-out <dir>]")
	}
	o, err := pf.options(nil)
	if err != nil {
		return err
	}
	in, err := loadInputs(o)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(o.Output, metadata.AggregateName))
	if err != nil {
		return fmt.Errorf("read batch: %w", err)
	}
	recs, err := metadata.DecodeAll(data)
	if err != nil {
		return err
	}

	problems := verifyRecords(o.Output, recs, in)
	for _, p := range problems {
		fmt.Printf("  %s\n", p)
	}
	dups := generate.FindDuplicates(recs)
	for _, d := range dups {
		fmt.Printf("  repeated: %s\n", d)
	}
	fmt.Printf("%d items, %d problems, %d repeated attribute sets\n", len(recs), len(problems), len(dups))
	if len(problems) > 0 {
		return fmt.Errorf("batch in %s does not match the configuration", o.Output)
	}
	return nil
}

func verifyRecords(out string, recs []metadata.Record, in *inputs) []string {
	// Pseudo layers and forced values are valid without being configured.
	placed := make(map[string]bool)
	for _, r := range in.rules.Ordering {
		for _, a := range r.Then {
			if p, ok := a.(rules.InsertPseudo); ok {
				placed[p.Category+"/"+p.Item] = true
			}
		}
	}
	for _, r := range in.rules.Constraints {
		for _, a := range r.Then {
			if f, ok := a.(rules.ForceSet); ok {
				placed[f.Category+"/"+f.Item] = true
			}
		}
	}

	var problems []string
	for _, rec := range recs {
		for _, f := range []string{rec.Image, fmt.Sprintf("%d.json", rec.Index)} {
			if _, err := os.Stat(filepath.Join(out, f)); err != nil {
				problems = append(problems, fmt.Sprintf("%s: missing %s", rec.Name, f))
			}
		}
		for _, a := range rec.Attributes {
			if placed[a.TraitType+"/"+a.Value] {
				continue
			}
			c, ok := in.layers.Category(a.TraitType)
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("%s: unknown category %s", rec.Name, a.TraitType))
			case !c.Has(a.Value):
				problems = append(problems, fmt.Sprintf("%s: %s has no item %q", rec.Name, a.TraitType, a.Value))
			}
		}
	}
	return problems
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	path := fs.String("ledger", os.Getenv("ARTGEN_LEDGER"), "SQLite ledger file")
	n := fs.Int("n", 20, "number of runs to show (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || fs.NArg() > 0 {
		return fmt.Errorf("usage: artgen history -ledger <file> [-n <count>]")
	}
	if _, err := os.Stat(*path); err != nil {
		return fmt.Errorf("ledger %s: %w", *path, err)
	}

	store, err := ledger.Open(*path)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.ListRuns(*n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSEED\tITEMS\tFORMAT\tOUTPUT\tSTATUS")
	for _, r := range runs {
		items, err := store.CountItems(r.ID)
		if err != nil {
			return err
		}
		status := r.Status
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d/%d\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Seed, items, r.Amount, r.Format, r.OutputDir, status)
	}
	return tw.Flush()
}
