// headview renders transformer attention for one layer and head as an
// annotated heatmap next to an interactive head view widget.
//
// Modes:
//   - one-shot (default): render -input and write a standalone HTML page
//   - -serve: live notebook server; renders appear in connected browsers
//   - -shell: interactive REPL, optionally combined with -serve
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/api"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/config"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/display"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/heatmap"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/shell"
)

const version = "1.0.0"

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Config file path (default: ./headview.yaml)")
	initConfig := flag.Bool("init", false, "Initialize default config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	inputPath := flag.String("input", "", "Attention document (JSON with tokens and attention)")
	layer := flag.Int("layer", 0, "Layer of the plotted matrix")
	head := flag.Int("head", 0, "Head of the plotted matrix")
	split := flag.String("split", "", "Sentence B start index, or \"off\" (default: from the document)")
	noPrettify := flag.Bool("no-prettify", false, "Show tokens exactly as the tokenizer produced them")
	outPath := flag.String("out", "", "HTML page to write (default: output.path)")
	svgPath := flag.String("svg", "", "Also write the heatmap as SVG")
	csvPath := flag.String("csv", "", "Also write the plotted matrix as CSV")
	serve := flag.Bool("serve", false, "Run the live notebook server")
	interactive := flag.Bool("shell", false, "Start the interactive shell")
	flag.Parse()

	if *showVersion {
		fmt.Printf("headview %s\n", version)
		os.Exit(0)
	}

	// Determine config path
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	// Initialize config if requested
	if *initConfig {
		if err := config.InitConfig(cfgPath); err != nil {
			fail(err)
		}
		fmt.Printf("Config initialized at: %s\n", cfgPath)
		os.Exit(0)
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fail(err)
	}
	rendererCfg, err := cfg.RendererConfig()
	if err != nil {
		fail(err)
	}
	renderer, err := headview.NewRenderer(rendererCfg)
	if err != nil {
		fail(err)
	}

	opts := cfg.RenderOptions()
	if *noPrettify {
		opts.Prettify = false
	}

	var in *attention.Input
	if *inputPath != "" {
		if in, err = attention.Load(*inputPath); err != nil {
			fail(err)
		}
		opts.SegmentSplit = in.SentenceBStart
	}
	if err := applySplit(&opts, *split); err != nil {
		fail(err)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	outputs := outputPaths{
		page: firstNonEmpty(*outPath, cfg.Output.Path),
		svg:  firstNonEmpty(*svgPath, cfg.Output.SVGPath),
		csv:  firstNonEmpty(*csvPath, cfg.Output.CSVPath),
	}

	switch {
	case *serve:
		err = runServer(ctx, cfg, renderer, in, opts, *layer, *head, *interactive)
	case *interactive:
		page := display.NewPage("Head view")
		sh := shell.New(renderer, page, page, shell.Config{Options: opts})
		if in != nil {
			sh.SetInput(in, *inputPath)
		}
		err = sh.Run(ctx)
	default:
		if in == nil {
			fmt.Fprintln(os.Stderr, "headview: -input is required (or use -serve / -shell)")
			flag.Usage()
			os.Exit(2)
		}
		err = renderOnce(renderer, in, opts, *layer, *head, outputs)
	}
	if err != nil && err != context.Canceled {
		fail(err)
	}
}

type outputPaths struct {
	page, svg, csv string
}

// renderOnce renders a single head and writes the page and side files.
func renderOnce(r *headview.Renderer, in *attention.Input, opts headview.Options, layer, head int, out outputPaths) error {
	page := display.NewPage(fmt.Sprintf("Head view · layer %d head %d", layer, head))
	res, err := r.Render(page, in.Attention, in.Tokens, layer, head, opts)
	if err != nil {
		return err
	}

	if err := page.Save(out.page); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d views, container %s)\n", out.page, len(res.Payload.Attention), res.ID)

	if out.svg != "" {
		if err := os.WriteFile(out.svg, []byte(res.SVG), 0644); err != nil {
			return errors.OutputWrite(out.svg, err)
		}
		fmt.Printf("Wrote %s\n", out.svg)
	}
	if out.csv != "" && res.Selection != nil {
		f, err := os.Create(out.csv)
		if err != nil {
			return errors.OutputWrite(out.csv, err)
		}
		defer f.Close()
		if err := heatmap.WriteCSV(f, res.Selection, res.Tokens, res.Tokens, nil); err != nil {
			return errors.OutputWrite(out.csv, err)
		}
		fmt.Printf("Wrote %s\n", out.csv)
	}
	return nil
}

// runServer serves the live notebook until ctx ends or the shell exits.
func runServer(ctx context.Context, cfg *config.Config, r *headview.Renderer, in *attention.Input,
	opts headview.Options, layer, head int, interactive bool) error {

	server := api.NewServer(&api.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		CORSOrigins:   cfg.Server.CORSOrigins,
		EnableLogging: cfg.Server.EnableLogging,
	})
	surface := api.NewSurface(server.Hub(), "Head view")
	api.NewRenderHandler(r, surface, server.Hub(), opts).RegisterRoutes(server.Router())

	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	fmt.Printf("Notebook: http://%s/\n", server.Address())

	if in != nil {
		if _, err := r.Render(surface, in.Attention, in.Tokens, layer, head, opts); err != nil {
			return err
		}
	}

	if interactive {
		sh := shell.New(r, surface, surface.Page(), shell.Config{Options: opts})
		if in != nil {
			sh.SetInput(in, "(command line)")
		}
		return sh.Run(ctx)
	}

	<-ctx.Done()
	return nil
}

// applySplit overrides the document's sentence B start: "" keeps it,
// "off" clears it, anything else must be an integer.
func applySplit(opts *headview.Options, flagValue string) error {
	switch flagValue {
	case "":
		return nil
	case "off":
		opts.SegmentSplit = nil
		return nil
	}
	n, err := strconv.Atoi(flagValue)
	if err != nil {
		return errors.CommandInvalidArg(flagValue, "-split takes an integer or \"off\"")
	}
	opts.SegmentSplit = &n
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fail(err error) {
	errors.Display(err)
	os.Exit(1)
}
