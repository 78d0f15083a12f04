package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"artgen/internal/scaffold"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "init",
		short: "Create a sample project",
		usage: "artgen init [-name <name>] [-description <text>] <dir>",
		long: `Create a sample project in <dir>: artgen.yaml, layers.yaml, rules.yaml,
template.json and placeholder images under layers/.

Prompts for the collection name and description unless given as flags.
Errors if <dir> already exists.
`,
		run: runInit,
	},
	{
		name:  "generate",
		short: "Generate a batch of images and metadata",
		usage: "artgen generate -amount <n> [flags]",
		long: `Generate <n> items into the output directory: <i>.png (or .jpeg),
<i>.json and all.json.

Paths default to the project layout written by 'artgen init' and can be
set in <root>/artgen.yaml, by ARTGEN_* environment variables, or by flags
(strongest).

Flags:
  -root <dir>         project root (default .)
  -layers <dir>       layer image directory
  -config <file>      layer configuration (YAML or JSON)
  -template <file>    metadata template
  -rules <file>       rule set file, or "builtin"
  -out <dir>          output directory
  -amount <n>         number of items (required)
  -format png|jpeg    image format
  -concurrency <n>    units in flight (default: CPU count)
  -seed <n>           random seed (default: random, logged)
  -renderer <cmd>     external renderer: <cmd> <i> <format> <out> <asset>...
  -ledger <file>      record the run in this SQLite ledger
  -pad <n>            minimum digits of the name suffix
  -tui                show a progress view
  -v                  log every unit's traits

Exits non-zero naming the failed unit if any unit fails.
`,
		run: runGenerate,
	},
	{
		name:  "check",
		short: "Validate configuration, template and rules",
		usage: "artgen check [-root <dir>] [-config <file>] [-template <file>] [-rules <file>]",
		long: `Load the layer configuration, metadata template and rule set and report
rule problems: unknown categories, and rerolls whose exclusion list covers
every item of the category (those hang generation).

Exits non-zero when anything is reported.
`,
		run: runCheck,
	},
	{
		name:  "verify",
		short: "Check a generated batch against the configuration",
		usage: "artgen verify [-root <dir>] [-out <dir>]",
		long: `Read <out>/all.json and check that every item has its image and metadata
file and that every attribute names a configured category and item (or a
pseudo layer inserted by the rules). Repeated attribute sets are listed.

Exits non-zero on any mismatch.
`,
		run: runVerify,
	},
	{
		name:  "history",
		short: "List runs recorded in a ledger",
		usage: "artgen history -ledger <file> [-n <count>]",
		long: `List the most recent runs recorded with 'artgen generate -ledger'.
`,
		run: runHistory,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "artgen - layered collectible art generator\n\n")
	fmt.Fprintf(w, "Usage:\n  artgen <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nGetting started:\n")
	fmt.Fprintf(w, "  artgen init cats && cd cats\n")
	fmt.Fprintf(w, "  artgen check\n")
	fmt.Fprintf(w, "  artgen generate -amount 100 -seed 7\n")
	fmt.Fprintf(w, "\nEnvironment: ARTGEN_CONCURRENCY, ARTGEN_FORMAT, ARTGEN_SEED, ARTGEN_RENDERER, ARTGEN_LEDGER\n")
	fmt.Fprintf(w, "\nRun 'artgen help <command>' for details on a specific command.\n")
}

// lookup returns the named command. When there is none, suggestion is the
// command the name is a prefix of, if exactly one matches.
func lookup(name string) (cmd command, suggestion string, ok bool) {
	var prefixed []string
	for _, c := range commands {
		if c.name == name {
			return c, "", true
		}
		if name != "" && strings.HasPrefix(c.name, name) {
			prefixed = append(prefixed, c.name)
		}
	}
	if len(prefixed) == 1 {
		suggestion = prefixed[0]
	}
	return command{}, suggestion, false
}

func unknownCommand(name, suggestion string) string {
	msg := fmt.Sprintf("unknown command %q", name)
	if suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return msg + "\n\nRun 'artgen help' for usage."
}

func printCommandHelp(w io.Writer, name string) {
	cmd, suggestion, ok := lookup(name)
	if !ok {
		fmt.Fprintf(w, "artgen: %s\n", unknownCommand(name, suggestion))
		return
	}
	fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	cmd, suggestion, ok := lookup(args[0])
	if !ok {
		return errors.New(unknownCommand(args[0], suggestion))
	}
	err := cmd.run(args[1:])
	if errors.Is(err, flag.ErrHelp) {
		// The flag set already listed its flags; add the long description.
		printCommandHelp(os.Stdout, cmd.name)
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	name := fs.String("name", "", "collection name")
	description := fs.String("description", "", "collection description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: artgen init [-name <name>] [-description <text>] <dir>")
	}
	dir := fs.Arg(0)

	answers := scaffold.Answers{"name": *name, "description": *description}
	var missing []scaffold.Question
	for _, q := range scaffold.Questions() {
		if answers[q.Key] == "" {
			missing = append(missing, q)
		}
	}
	if len(missing) > 0 && isTerminal(os.Stdin) {
		defaults := map[string]string{"name": filepath.Base(dir)}
		prompted, err := promptQuestions(missing, defaults)
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		for k, v := range prompted {
			answers[k] = v
		}
	}

	if err := scaffold.Init(dir, answers); err != nil {
		return err
	}
	fmt.Printf("created project %s\n", dir)
	fmt.Printf("next: cd %s && artgen generate -amount 10\n", dir)
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// ---------------------------------------------------------------------------
// TUI prompt helpers
// ---------------------------------------------------------------------------

// promptModel asks the init questions one at a time. Enter moves on,
// shift+tab goes back to the previous question, and an empty answer takes
// the question's default.
type promptModel struct {
	questions []scaffold.Question
	defaults  map[string]string
	idx       int
	inputs    []textinput.Model
	done      bool
}

func newPromptModel(questions []scaffold.Question, defaults map[string]string) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Prompt
		if d := defaults[q.Key]; d != "" {
			ti.Placeholder = d
		}
		ti.CharLimit = 512
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		defaults:  defaults,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) focus(idx int) (promptModel, tea.Cmd) {
	m.inputs[m.idx].Blur()
	m.idx = idx
	m.inputs[m.idx].Focus()
	return m, textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyShiftTab:
			if m.idx > 0 {
				return m.focus(m.idx - 1)
			}
			return m, nil
		case tea.KeyEnter:
			if m.idx < len(m.inputs)-1 {
				return m.focus(m.idx + 1)
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	return fmt.Sprintf("[%d/%d] %s: %s\n", m.idx+1, len(m.questions), q.Prompt, m.inputs[m.idx].View())
}

// answers returns the trimmed input for each question, falling back to the
// question's default when left empty.
func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		v := strings.TrimSpace(m.inputs[i].Value())
		if v == "" {
			v = m.defaults[q.Key]
		}
		out[q.Key] = v
	}
	return out
}

// promptQuestions runs the prompt and returns answers keyed by Question.Key.
func promptQuestions(questions []scaffold.Question, defaults map[string]string) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	result, err := tea.NewProgram(newPromptModel(questions, defaults)).Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("init cancelled; nothing was written")
	}
	return final.answers(), nil
}

func main() {
	log.SetFlags(0)
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
