// Package headview renders the attention of one (layer, head) pair as a
// static heatmap and embeds an interactive head view widget next to it.
//
// A render builds every attention view, checks the selected slice against
// the tokens, and only then writes to the Display. A failed render writes
// nothing.
package headview

import (
	"fmt"
	"runtime"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/heatmap"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/tokens"
)

// Config holds renderer settings shared by every render call.
type Config struct {
	// LoaderURL is the module loader script referenced before the widget.
	// Default: DefaultLoaderURL
	LoaderURL string

	// Driver is the widget driver template containing ParamsPlaceholder.
	// Default: EmbeddedDriver()
	Driver string

	// IDPrefix prefixes container ids.
	// Default: "bertviz"
	IDPrefix string

	// Heatmap styles the static plot. Title is set per render.
	// Default: heatmap.DefaultConfig()
	Heatmap *heatmap.Config

	// Prettifier rewrites tokens for display when Options.Prettify is set.
	// Default: tokens.DefaultReplacements with "##" stripping
	Prettifier *tokens.Prettifier
}

// DefaultConfig returns a Config with the embedded driver.
func DefaultConfig() *Config {
	return &Config{
		LoaderURL:  DefaultLoaderURL,
		Driver:     EmbeddedDriver(),
		IDPrefix:   DefaultIDPrefix,
		Heatmap:    heatmap.DefaultConfig(),
		Prettifier: tokens.Default(),
	}
}

// Options are per-render inputs beyond the tensor, tokens and selection.
type Options struct {
	// SegmentSplit is the index of the first sentence B token. When set,
	// the aa/ab/ba/bb views are built.
	SegmentSplit *int

	// Prettify strips tokenizer markers from the displayed tokens.
	Prettify bool

	// Layer is forwarded to the widget as its initial layer.
	Layer *int

	// Heads is forwarded to the widget as the heads shown initially.
	Heads []int
}

// DefaultOptions returns Options with prettification on.
func DefaultOptions() Options {
	return Options{Prettify: true}
}

// Result describes a completed render.
type Result struct {
	// ID is the widget container id.
	ID string

	// Tokens are the displayed tokens.
	Tokens []string

	// Payload is the parameter object substituted into the driver.
	Payload *Payload

	// Selection is the (row, col) attention matrix that was plotted.
	Selection *mat.Dense

	// SVG is the static heatmap document.
	SVG string

	// Markup is the container HTML.
	Markup string

	// Script is the driver with the payload substituted.
	Script string
}

// Renderer renders head views to a Display.
type Renderer struct {
	config *Config
}

// NewRenderer creates a Renderer. If config is nil, DefaultConfig() is used;
// zero fields fall back to their defaults.
func NewRenderer(config *Config) (*Renderer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.LoaderURL == "" {
		cfg.LoaderURL = DefaultLoaderURL
	}
	if cfg.Driver == "" {
		cfg.Driver = EmbeddedDriver()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = DefaultIDPrefix
	}
	if cfg.Heatmap == nil {
		cfg.Heatmap = heatmap.DefaultConfig()
	}
	if cfg.Prettifier == nil {
		cfg.Prettifier = tokens.Default()
	}
	if !strings.Contains(cfg.Driver, ParamsPlaceholder) {
		return nil, errors.Newf(errors.ErrConfigInvalid, errors.CategoryConfig,
			"widget driver has no %s placeholder", ParamsPlaceholder)
	}
	return &Renderer{config: &cfg}, nil
}

// Render draws the (row, col) attention matrix and the interactive widget on d.
//
// row and col index the layer and head axes of attn. They are not range
// checked; an out-of-range index, like an out-of-range SegmentSplit, is
// returned as an INDEX_FAILED error wrapping the runtime failure. A selected
// slice whose side differs from len(toks) is a SHAPE_MISMATCH. In both cases
// d receives nothing.
func (r *Renderer) Render(d Display, attn attention.Tensor, toks []string, row, col int, opts Options) (*Result, error) {
	res, err := r.prepare(attn, toks, row, col, opts)
	if err != nil {
		return nil, err
	}

	if err := d.LoadScript(r.config.LoaderURL); err != nil {
		return nil, errors.DisplayFailed("script loader", err)
	}
	if err := d.HTML(res.Markup); err != nil {
		return nil, errors.DisplayFailed("html", err)
	}
	if err := d.Javascript(res.Script); err != nil {
		return nil, errors.DisplayFailed("javascript", err)
	}
	if res.SVG != "" {
		if err := d.Image(MimeSVG, []byte(res.SVG)); err != nil {
			return nil, errors.DisplayFailed("image", err)
		}
	}
	return res, nil
}

// prepare runs every step that can fail before anything is displayed.
func (r *Renderer) prepare(attn attention.Tensor, toks []string, row, col int, opts Options) (*Result, error) {
	if attn.Layers() == 0 {
		return nil, errors.AttentionEmpty()
	}

	id := NewContainerID(r.config.IDPrefix)
	markup := ContainerHTML(id, opts.SegmentSplit != nil)

	shown := toks
	if opts.Prettify {
		shown = r.config.Prettifier.Apply(toks)
	}

	var (
		views     map[Filter]View
		selection [][]float64
	)
	if err := indexed(func() {
		views = BuildViews(attn, shown, opts.SegmentSplit)
		selection = views[FilterAll].Attn[row][col]
	}); err != nil {
		return nil, err
	}

	payload := &Payload{
		Attention:     views,
		DefaultFilter: FilterAll,
		RootDivID:     id,
		Layer:         copyInt(opts.Layer),
		Heads:         copyInts(opts.Heads),
	}

	if len(selection) != len(shown) {
		return nil, errors.ShapeMismatch(len(selection), len(shown))
	}
	for _, line := range selection {
		if len(line) != len(shown) {
			return nil, errors.ShapeMismatch(len(line), len(shown))
		}
	}

	script, err := Substitute(r.config.Driver, payload)
	if err != nil {
		return nil, errors.PayloadEncode(err)
	}

	dense := attention.Dense(selection)
	hm := *r.config.Heatmap
	if hm.Title != "" {
		hm.Title += " · "
	}
	hm.Title += fmt.Sprintf("Layer %d · Head %d", row, col)
	svg := ""
	if dense != nil {
		svg = heatmap.NewBuilder(&hm).SetData(dense).SetLabels(shown, shown).Build()
	}

	return &Result{
		ID:        id,
		Tokens:    views[FilterAll].LeftText,
		Payload:   payload,
		Selection: dense,
		SVG:       svg,
		Markup:    markup,
		Script:    script,
	}, nil
}

// indexed runs fn and returns the out-of-range panic of a slice or index
// expression inside it as INDEX_FAILED. Any other panic is re-raised.
func indexed(fn func()) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		rerr, ok := p.(runtime.Error)
		if !ok || !strings.Contains(rerr.Error(), "out of range") {
			panic(p)
		}
		err = errors.IndexFailed(rerr)
	}()
	fn()
	return nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInts(v []int) []int {
	if v == nil {
		return nil
	}
	return append([]int(nil), v...)
}

// Render renders with the default configuration.
func Render(d Display, attn attention.Tensor, toks []string, row, col int, opts Options) (*Result, error) {
	r, err := NewRenderer(nil)
	if err != nil {
		return nil, err
	}
	return r.Render(d, attn, toks, row, col, opts)
}
