// Package shell provides the interactive REPL for loading attention
// documents and rendering head views.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"gonum.org/v1/gonum/floats"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/display"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/heatmap"
)

// Shell is the interactive command-line interface.
type Shell struct {
	renderer *headview.Renderer
	display  headview.Display
	page     *display.Page
	prompter Prompter
	out      io.Writer
	cfg      Config

	input     *attention.Input
	inputPath string
	opts      headview.Options
	last      *headview.Result
}

// Config holds shell configuration.
type Config struct {
	HistoryFile string

	// Options are the initial render options.
	Options headview.Options

	// CSV configures /export to .csv and .tsv files.
	CSV *heatmap.CSVConfig
}

// New creates a shell rendering onto d. page, when non-nil, is what /save
// writes; it is usually the page behind d.
func New(renderer *headview.Renderer, d headview.Display, page *display.Page, cfg Config) *Shell {
	if cfg.CSV == nil {
		cfg.CSV = heatmap.DefaultCSVConfig()
	}
	return &Shell{
		renderer: renderer,
		display:  d,
		page:     page,
		prompter: NewInteractivePrompter(os.Stdin, os.Stdout),
		out:      os.Stdout,
		cfg:      cfg,
		opts:     cfg.Options,
	}
}

// SetOutput redirects command output.
func (s *Shell) SetOutput(w io.Writer) {
	s.out = w
}

// SetPrompter replaces the confirmation prompter.
func (s *Shell) SetPrompter(p Prompter) {
	s.prompter = p
}

// SetInput installs an already loaded document. Unlike /load it keeps the
// current sentence split.
func (s *Shell) SetInput(in *attention.Input, path string) {
	s.input = in
	s.inputPath = path
	s.last = nil
}

// Run starts the interactive loop.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mheadview>\033[0m ",
		HistoryFile:     s.cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewShellCompleter(),
		Stdout:          s.out,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	s.prompter = &readlinePrompter{rl: rl}

	fmt.Fprintln(s.out, "Load an attention document, then render a layer and head.")
	fmt.Fprintln(s.out, "Commands: /load, /render, /split, /prettify, /hints, /export, /save, /info, /help, /quit")
	fmt.Fprintln(s.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := s.Execute(line); err != nil {
			if err == errQuit {
				return nil
			}
			errors.Display(err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

// Execute runs one input line. It returns errQuit for /quit.
func (s *Shell) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return errors.CommandNotFound(line).
			WithSuggestion("Commands start with '/'. Type /help for the list")
	}

	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return errQuit
	case "/help", "/h":
		s.printHelp()
	case "/load":
		return s.handleLoad(args)
	case "/render", "/r":
		return s.handleRender(args)
	case "/split":
		return s.handleSplit(args)
	case "/prettify":
		return s.handlePrettify(args)
	case "/hints":
		return s.handleHints(args)
	case "/export":
		return s.handleExport(args)
	case "/save":
		return s.handleSave(args)
	case "/info":
		if len(args) > 0 {
			return s.printHead(args)
		}
		s.printInfo()
	default:
		return errors.CommandNotFound(cmd)
	}
	return nil
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  /load <file.json>          - Load tokens and attention")
	fmt.Fprintln(s.out, "  /render <layer> <head>     - Render one head (alias /r)")
	fmt.Fprintln(s.out, "  /split <n|off>             - Set the sentence B start")
	fmt.Fprintln(s.out, "  /prettify on|off           - Strip tokenizer markers")
	fmt.Fprintln(s.out, "  /hints <layer|-> [heads..] - Widget start layer and heads; /hints off clears")
	fmt.Fprintln(s.out, "  /export <file.svg|csv|tsv> - Write the last heatmap or matrix")
	fmt.Fprintln(s.out, "  /save <file.html>          - Write every output so far as a page")
	fmt.Fprintln(s.out, "  /info [layer head]         - Show the document, or the strongest key per query")
	fmt.Fprintln(s.out, "  /quit                      - Exit")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Tip: Use Tab to autocomplete /commands and file names")
}

func (s *Shell) printInfo() {
	if s.input == nil {
		fmt.Fprintln(s.out, "No document loaded.")
	} else {
		a := s.input.Attention
		fmt.Fprintf(s.out, "Document: %s\n", s.inputPath)
		fmt.Fprintf(s.out, "  Tokens: %d\n", len(s.input.Tokens))
		fmt.Fprintf(s.out, "  Layers: %d, heads: %d, positions: %d\n", a.Layers(), a.Heads(), a.Positions())
	}

	split := "off"
	if s.opts.SegmentSplit != nil {
		split = strconv.Itoa(*s.opts.SegmentSplit)
	}
	fmt.Fprintf(s.out, "  Split: %s, prettify: %t\n", split, s.opts.Prettify)
	if s.opts.Layer != nil || s.opts.Heads != nil {
		fmt.Fprintf(s.out, "  Hints: layer %s, heads %v\n", formatLayer(s.opts.Layer), s.opts.Heads)
	}
	if s.page != nil {
		fmt.Fprintf(s.out, "  Outputs: %d\n", s.page.Len())
	}
}

// printHead lists, for every query token of one (layer, head) matrix, the
// key token it attends to most.
func (s *Shell) printHead(args []string) error {
	if len(args) != 2 {
		return errors.CommandMissingArgs("/info", "/info [<layer> <head>]")
	}
	if s.input == nil {
		return errors.New(errors.ErrCommandNoInput, errors.CategoryCommand, "no document loaded").
			WithSuggestion("Load one with /load <file.json>")
	}
	a := s.input.Attention
	layer, err := parseIndex(args[0], "layer")
	if err != nil {
		return err
	}
	head, err := parseIndex(args[1], "head")
	if err != nil {
		return err
	}
	if layer < 0 || layer >= a.Layers() {
		return errors.CommandInvalidArg(args[0], fmt.Sprintf("layer in [0, %d)", a.Layers()))
	}
	if head < 0 || head >= len(a[layer]) {
		return errors.CommandInvalidArg(args[1], fmt.Sprintf("head in [0, %d)", len(a[layer])))
	}

	m := a.Matrix(layer, head)
	fmt.Fprintf(s.out, "Layer %d head %d:\n", layer, head)
	if m == nil {
		fmt.Fprintln(s.out, "  (empty or ragged matrix)")
		return nil
	}
	toks := s.input.Tokens
	rows, _ := m.Dims()
	for q := 0; q < rows; q++ {
		row := m.RawRowView(q)
		k := floats.MaxIdx(row)
		fmt.Fprintf(s.out, "  %s -> %s %.3f\n", tokenAt(toks, q), tokenAt(toks, k), row[k])
	}
	return nil
}

func tokenAt(toks []string, i int) string {
	if i < len(toks) {
		return toks[i]
	}
	return "#" + strconv.Itoa(i)
}

func formatLayer(l *int) string {
	if l == nil {
		return "-"
	}
	return strconv.Itoa(*l)
}

func (s *Shell) handleLoad(args []string) error {
	if len(args) != 1 {
		return errors.CommandMissingArgs("/load", "/load <file.json>")
	}
	in, err := attention.Load(args[0])
	if err != nil {
		return err
	}
	s.SetInput(in, args[0])
	s.opts.SegmentSplit = in.SentenceBStart

	a := in.Attention
	fmt.Fprintf(s.out, "Loaded %s: %d tokens, %d layers x %d heads\n",
		args[0], len(in.Tokens), a.Layers(), a.Heads())
	return nil
}

func (s *Shell) handleRender(args []string) error {
	if len(args) != 2 {
		return errors.CommandMissingArgs("/render", "/render <layer> <head>")
	}
	if s.input == nil {
		return errors.New(errors.ErrCommandNoInput, errors.CategoryCommand, "no document loaded").
			WithSuggestion("Load one with /load <file.json>")
	}
	layer, err := parseIndex(args[0], "layer")
	if err != nil {
		return err
	}
	head, err := parseIndex(args[1], "head")
	if err != nil {
		return err
	}

	res, err := s.renderer.Render(s.display, s.input.Attention, s.input.Tokens, layer, head, s.opts)
	if err != nil {
		return err
	}
	s.last = res
	fmt.Fprintf(s.out, "Rendered layer %d head %d into %s (%d views)\n",
		layer, head, res.ID, len(res.Payload.Attention))
	return nil
}

// parseIndex accepts any integer; range errors surface from the render.
func parseIndex(arg, name string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.CommandInvalidArg(arg, name+" must be an integer")
	}
	return n, nil
}

func (s *Shell) handleSplit(args []string) error {
	if len(args) != 1 {
		return errors.CommandMissingArgs("/split", "/split <n|off>")
	}
	if args[0] == "off" {
		s.opts.SegmentSplit = nil
		fmt.Fprintln(s.out, "Sentence split off.")
		return nil
	}
	n, err := parseIndex(args[0], "split")
	if err != nil {
		return err
	}
	s.opts.SegmentSplit = &n
	fmt.Fprintf(s.out, "Sentence B starts at token %d.\n", n)
	return nil
}

func (s *Shell) handlePrettify(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return errors.CommandMissingArgs("/prettify", "/prettify on|off")
	}
	s.opts.Prettify = args[0] == "on"
	fmt.Fprintf(s.out, "Prettify %s.\n", args[0])
	return nil
}

func (s *Shell) handleHints(args []string) error {
	if len(args) == 0 {
		return errors.CommandMissingArgs("/hints", "/hints <layer|-> [heads...]")
	}
	if args[0] == "off" {
		s.opts.Layer, s.opts.Heads = nil, nil
		fmt.Fprintln(s.out, "Widget hints cleared.")
		return nil
	}

	var layer *int
	if args[0] != "-" {
		n, err := parseIndex(args[0], "layer")
		if err != nil {
			return err
		}
		layer = &n
	}
	var heads []int
	for _, a := range args[1:] {
		n, err := parseIndex(a, "head")
		if err != nil {
			return err
		}
		heads = append(heads, n)
	}
	s.opts.Layer, s.opts.Heads = layer, heads
	fmt.Fprintf(s.out, "Widget starts at layer %s with heads %v.\n", formatLayer(layer), heads)
	return nil
}

func (s *Shell) handleExport(args []string) error {
	if len(args) != 1 {
		return errors.CommandMissingArgs("/export", "/export <file.svg|file.csv|file.tsv>")
	}
	if s.last == nil || s.last.Selection == nil {
		return errors.New(errors.ErrCommandNoInput, errors.CategoryCommand, "nothing rendered yet").
			WithSuggestion("Render a head with /render <layer> <head>")
	}

	path := args[0]
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".svg" && ext != ".csv" && ext != ".tsv" {
		return errors.CommandInvalidArg(path, "a .svg, .csv or .tsv file")
	}
	if ok, err := s.confirmOverwrite(path); !ok || err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.OutputWrite(path, err)
	}
	defer f.Close()

	switch ext {
	case ".svg":
		_, err = io.WriteString(f, s.last.SVG)
	default:
		csvCfg := *s.cfg.CSV
		if ext == ".tsv" {
			csvCfg.Dialect = heatmap.DialectTSV
		}
		err = heatmap.WriteCSV(f, s.last.Selection, s.last.Tokens, s.last.Tokens, &csvCfg)
	}
	if err != nil {
		return errors.OutputWrite(path, err)
	}
	fmt.Fprintf(s.out, "Wrote %s\n", path)
	return nil
}

func (s *Shell) handleSave(args []string) error {
	if len(args) != 1 {
		return errors.CommandMissingArgs("/save", "/save <file.html>")
	}
	if s.page == nil {
		return errors.New(errors.ErrCommandInvalidArg, errors.CategoryCommand,
			"this display cannot be saved as a page")
	}
	path := args[0]
	if ok, err := s.confirmOverwrite(path); !ok || err != nil {
		return err
	}
	if err := s.page.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %d outputs to %s\n", s.page.Len(), path)
	return nil
}

// confirmOverwrite asks before replacing an existing file. A declined
// overwrite reports false with no error.
func (s *Shell) confirmOverwrite(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return true, nil
	}
	ok, err := s.prompter.Confirm(fmt.Sprintf("%s exists. Overwrite?", path))
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(s.out, "Cancelled.")
	}
	return ok, nil
}
