// Package heatmap renders a square annotated attention heatmap as SVG.
package heatmap

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// SVG constants.
const (
	SVGVersion   = "1.1"
	SVGNamespace = "http://www.w3.org/2000/svg"
)

// Config specifies options for heatmap generation.
type Config struct {
	// CellSize is the side of one cell in pixels.
	// Default: 48
	CellSize int

	// FontSize is the label and annotation font size in pixels.
	// Default: 12
	FontSize int

	// Annotate writes each cell's value inside the cell.
	// Default: true
	Annotate bool

	// Precision is the number of decimals in annotations.
	// Default: 2
	Precision int

	// LabelRotation rotates tick labels counter-clockwise, in degrees.
	// Default: 45
	LabelRotation float64

	// Colormap colors cells from the minimum to the maximum value.
	// Default: Rocket
	Colormap Colormap

	// GridWidth is the stroke width of the lines between cells.
	// Default: 0.5
	GridWidth float64

	// Title is drawn above the plot when non-empty.
	Title string

	// ShowColorbar draws the value scale to the right of the plot.
	// Default: true
	ShowColorbar bool

	// FontFamily is the font for all text.
	// Default: "Arial, sans-serif"
	FontFamily string

	// Padding is the outer margin.
	// Default: 20
	Padding int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CellSize:      48,
		FontSize:      12,
		Annotate:      true,
		Precision:     2,
		LabelRotation: 45,
		Colormap:      Rocket,
		GridWidth:     0.5,
		ShowColorbar:  true,
		FontFamily:    "Arial, sans-serif",
		Padding:       20,
	}
}

const (
	colorbarGap   = 24
	colorbarWidth = 16
	colorbarText  = 44
	titleHeight   = 32
	tickLength    = 4
)

// Builder constructs a heatmap from a matrix and its axis labels.
type Builder struct {
	config    *Config
	data      mat.Matrix
	rowLabels []string
	colLabels []string
}

// NewBuilder creates a builder. If config is nil, DefaultConfig() is used.
func NewBuilder(config *Config) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Builder{config: config}
}

// SetData sets the matrix to plot.
func (b *Builder) SetData(m mat.Matrix) *Builder {
	b.data = m
	return b
}

// SetLabels sets the row (query) and column (key) labels.
func (b *Builder) SetLabels(rows, cols []string) *Builder {
	b.rowLabels = rows
	b.colLabels = cols
	return b
}

// layout holds derived geometry.
type layout struct {
	rows, cols   int
	left, top    int
	plotW, plotH int
	width        int
	height       int
	vmin, vmax   float64
}

// Build generates the SVG document. It returns "" when there is no data.
func (b *Builder) Build() string {
	if b.data == nil {
		return ""
	}
	rows, cols := b.data.Dims()
	if rows == 0 || cols == 0 {
		return ""
	}

	lay := b.computeLayout(rows, cols)

	var sb strings.Builder
	b.writeHeader(&sb, lay)
	b.writeDefinitions(&sb, lay)
	sb.WriteString(fmt.Sprintf("  <rect width=\"%d\" height=\"%d\" fill=\"#ffffff\"/>\n", lay.width, lay.height))
	if b.config.Title != "" {
		sb.WriteString(fmt.Sprintf("  <text x=\"%d\" y=\"%d\" class=\"title\" text-anchor=\"middle\">%s</text>\n",
			lay.left+lay.plotW/2, b.config.Padding+titleHeight/2, escapeXML(b.config.Title)))
	}
	b.writeCells(&sb, lay)
	b.writeLabels(&sb, lay)
	if b.config.ShowColorbar {
		b.writeColorbar(&sb, lay)
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// WriteTo writes the SVG to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, b.Build())
	return int64(n), err
}

func (b *Builder) computeLayout(rows, cols int) layout {
	cfg := b.config
	lay := layout{rows: rows, cols: cols}

	lay.vmin, lay.vmax = math.Inf(1), math.Inf(-1)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := b.data.At(i, j)
			lay.vmin = math.Min(lay.vmin, v)
			lay.vmax = math.Max(lay.vmax, v)
		}
	}

	rowExtent := b.labelExtent(b.rowLabels)
	colExtent := b.labelExtent(b.colLabels)

	lay.plotW = cols * cfg.CellSize
	lay.plotH = rows * cfg.CellSize
	lay.left = cfg.Padding + rowExtent
	lay.top = cfg.Padding
	if cfg.Title != "" {
		lay.top += titleHeight
	}
	lay.width = lay.left + lay.plotW + cfg.Padding
	if cfg.ShowColorbar {
		lay.width += colorbarGap + colorbarWidth + colorbarText
	}
	lay.height = lay.top + lay.plotH + colExtent + cfg.Padding
	return lay
}

// labelExtent estimates the space rotated labels need away from the axis.
func (b *Builder) labelExtent(labels []string) int {
	longest := 0
	for _, l := range labels {
		if n := len([]rune(l)); n > longest {
			longest = n
		}
	}
	textW := float64(longest) * float64(b.config.FontSize) * 0.6
	rad := b.config.LabelRotation * math.Pi / 180
	extent := textW*math.Sin(rad) + float64(b.config.FontSize)*math.Cos(rad)
	return int(math.Ceil(extent)) + tickLength + 6
}

func (b *Builder) writeHeader(sb *strings.Builder, lay layout) {
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	sb.WriteString(fmt.Sprintf("<svg version=\"%s\" xmlns=\"%s\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		SVGVersion, SVGNamespace, lay.width, lay.height, lay.width, lay.height))
}

func (b *Builder) writeDefinitions(sb *strings.Builder, lay layout) {
	cfg := b.config
	sb.WriteString("  <defs>\n")
	sb.WriteString("    <style type=\"text/css\">\n")
	sb.WriteString(fmt.Sprintf("      .title { font-family: %s; font-size: %dpx; font-weight: bold; fill: #262626; }\n",
		cfg.FontFamily, cfg.FontSize+4))
	sb.WriteString(fmt.Sprintf("      .tick-label { font-family: %s; font-size: %dpx; fill: #262626; }\n",
		cfg.FontFamily, cfg.FontSize))
	sb.WriteString(fmt.Sprintf("      .annot { font-family: %s; font-size: %dpx; }\n",
		cfg.FontFamily, cfg.FontSize))
	sb.WriteString("    </style>\n")
	if cfg.ShowColorbar {
		sb.WriteString("    <linearGradient id=\"colorbar\" x1=\"0\" y1=\"1\" x2=\"0\" y2=\"0\">\n")
		const stops = 10
		for i := 0; i <= stops; i++ {
			t := float64(i) / stops
			sb.WriteString(fmt.Sprintf("      <stop offset=\"%.2f\" stop-color=\"%s\"/>\n", t, cfg.Colormap.At(t).Hex()))
		}
		sb.WriteString("    </linearGradient>\n")
	}
	sb.WriteString("  </defs>\n")
}

func (b *Builder) writeCells(sb *strings.Builder, lay layout) {
	cfg := b.config
	cell := cfg.CellSize

	sb.WriteString(fmt.Sprintf("  <g class=\"cells\" transform=\"translate(%d,%d)\">\n", lay.left, lay.top))
	for i := 0; i < lay.rows; i++ {
		for j := 0; j < lay.cols; j++ {
			v := b.data.At(i, j)
			color := cfg.Colormap.At(scaleValue(v, lay.vmin, lay.vmax, 0, 1))
			x, y := j*cell, i*cell
			sb.WriteString(fmt.Sprintf("    <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"%s\" stroke=\"#ffffff\" stroke-width=\"%.2f\"/>\n",
				x, y, cell, cell, color.Hex(), cfg.GridWidth))
			if cfg.Annotate {
				sb.WriteString(fmt.Sprintf("    <text x=\"%d\" y=\"%d\" class=\"annot\" fill=\"%s\" text-anchor=\"middle\" dominant-baseline=\"central\">%s</text>\n",
					x+cell/2, y+cell/2, color.TextColor(), formatValue(v, cfg.Precision)))
			}
		}
	}
	sb.WriteString("  </g>\n")
}

// writeLabels writes the key labels under the plot and the query labels on
// its left, both rotated and right-aligned at their tick.
func (b *Builder) writeLabels(sb *strings.Builder, lay layout) {
	cfg := b.config
	cell := cfg.CellSize
	rot := -cfg.LabelRotation

	sb.WriteString("  <g class=\"x-labels\">\n")
	for j := 0; j < lay.cols && j < len(b.colLabels); j++ {
		x := lay.left + j*cell + cell/2
		y := lay.top + lay.plotH
		sb.WriteString(fmt.Sprintf("    <line x1=\"%d\" y1=\"%d\" x2=\"%d\" y2=\"%d\" stroke=\"#262626\"/>\n",
			x, y, x, y+tickLength))
		ty := y + tickLength + cfg.FontSize
		sb.WriteString(fmt.Sprintf("    <text x=\"%d\" y=\"%d\" class=\"tick-label\" text-anchor=\"end\" transform=\"rotate(%.0f, %d, %d)\">%s</text>\n",
			x, ty, rot, x, ty, escapeXML(b.colLabels[j])))
	}
	sb.WriteString("  </g>\n")

	sb.WriteString("  <g class=\"y-labels\">\n")
	for i := 0; i < lay.rows && i < len(b.rowLabels); i++ {
		x := lay.left
		y := lay.top + i*cell + cell/2
		sb.WriteString(fmt.Sprintf("    <line x1=\"%d\" y1=\"%d\" x2=\"%d\" y2=\"%d\" stroke=\"#262626\"/>\n",
			x-tickLength, y, x, y))
		tx := x - tickLength - 2
		sb.WriteString(fmt.Sprintf("    <text x=\"%d\" y=\"%d\" class=\"tick-label\" text-anchor=\"end\" dominant-baseline=\"middle\" transform=\"rotate(%.0f, %d, %d)\">%s</text>\n",
			tx, y, rot, tx, y, escapeXML(b.rowLabels[i])))
	}
	sb.WriteString("  </g>\n")
}

func (b *Builder) writeColorbar(sb *strings.Builder, lay layout) {
	x := lay.left + lay.plotW + colorbarGap
	sb.WriteString("  <g class=\"colorbar\">\n")
	sb.WriteString(fmt.Sprintf("    <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"url(#colorbar)\"/>\n",
		x, lay.top, colorbarWidth, lay.plotH))
	for _, tick := range calculateTicks(lay.vmin, lay.vmax, 5) {
		y := scaleValue(tick, lay.vmin, lay.vmax, float64(lay.top+lay.plotH), float64(lay.top))
		sb.WriteString(fmt.Sprintf("    <line x1=\"%d\" y1=\"%.1f\" x2=\"%d\" y2=\"%.1f\" stroke=\"#262626\"/>\n",
			x+colorbarWidth, y, x+colorbarWidth+tickLength, y))
		sb.WriteString(fmt.Sprintf("    <text x=\"%d\" y=\"%.1f\" class=\"tick-label\" dominant-baseline=\"middle\">%s</text>\n",
			x+colorbarWidth+tickLength+3, y, formatValue(tick, b.config.Precision)))
	}
	sb.WriteString("  </g>\n")
}

func formatValue(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// scaleValue maps value from [srcMin, srcMax] to [dstMin, dstMax].
// A degenerate source range maps to the midpoint.
func scaleValue(value, srcMin, srcMax, dstMin, dstMax float64) float64 {
	if srcMax == srcMin {
		return (dstMin + dstMax) / 2
	}
	return dstMin + (value-srcMin)*(dstMax-dstMin)/(srcMax-srcMin)
}

// calculateTicks returns round tick values covering [min, max].
func calculateTicks(min, max float64, maxTicks int) []float64 {
	if max <= min {
		return []float64{min}
	}
	roughStep := (max - min) / float64(maxTicks)
	magnitude := math.Pow(10, math.Floor(math.Log10(roughStep)))
	residual := roughStep / magnitude

	var step float64
	switch {
	case residual <= 1.5:
		step = magnitude
	case residual <= 3:
		step = 2 * magnitude
	case residual <= 7:
		step = 5 * magnitude
	default:
		step = 10 * magnitude
	}

	ticks := make([]float64, 0, maxTicks+2)
	for tick := math.Ceil(min/step-1e-9) * step; tick <= max+step*1e-9; tick += step {
		ticks = append(ticks, math.Round(tick/step)*step)
	}
	return ticks
}

// escapeXML escapes special characters for SVG text content.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
