// Command todinspect loads one CES file of time-ordered data, prints a
// summary, and renders the tod and pointing as PNG and interactive HTML.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/quiet-tools/todinspect/internal/catalog"
	"github.com/quiet-tools/todinspect/internal/config"
	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/tod"
	"github.com/quiet-tools/todinspect/internal/todplot"
	"github.com/quiet-tools/todinspect/internal/version"
)

var (
	configPath      = flag.String("config", "", "Inspection config JSON (built-in defaults when empty)")
	filePath        = flag.String("file", "", "HDF5 CES file to inspect (overrides config; may also be given as the first argument)")
	outDir          = flag.String("out", "", "Directory for rendered plots (overrides config)")
	noPNG           = flag.Bool("no-png", false, "Skip the static PNG plots")
	noHTML          = flag.Bool("no-html", false, "Skip the interactive HTML page")
	openHTML        = flag.Bool("open", false, "Open the HTML page in the system browser")
	channelList     = flag.String("channels", "", "Comma-separated tod channels to plot (default: signal diodes of horn 0)")
	pointingChannel = flag.Int("pointing-channel", 0, "Pointing row drawn in the pointing and sky plots")
	catalogPath     = flag.String("catalog", "", "SQLite catalogue to record the inspection in (overrides config)")
	verbose         = flag.Bool("v", false, "Verbose logging")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

// runOptions carries the settings that only make sense per invocation.
type runOptions struct {
	PointingChannel int
	Open            bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg, flag.Args()); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	opts := runOptions{PointingChannel: *pointingChannel, Open: *openHTML}
	if err := run(context.Background(), cfg, opts, os.Stdout); err != nil {
		log.Fatalf("inspection failed: %v", err)
	}
}

func loadConfig(path string) (*config.InspectConfig, error) {
	if path == "" {
		return config.EmptyInspectConfig(), nil
	}
	return config.LoadInspectConfig(path)
}

// applyFlags layers explicitly set flags over cfg and revalidates it.
func applyFlags(cfg *config.InspectConfig, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("expected at most one file argument, got %d", len(args))
	}
	if len(args) == 1 {
		cfg.File = config.PtrString(args[0])
	}
	if *filePath != "" {
		cfg.File = config.PtrString(*filePath)
	}
	if *outDir != "" {
		cfg.OutputDir = config.PtrString(*outDir)
	}
	if *noPNG {
		cfg.WritePNG = config.PtrBool(false)
	}
	if *noHTML {
		cfg.WriteHTML = config.PtrBool(false)
	}
	if *catalogPath != "" {
		cfg.CatalogPath = config.PtrString(*catalogPath)
	}
	if *channelList != "" {
		chs, err := parseChannels(*channelList)
		if err != nil {
			return err
		}
		cfg.PlotChannels = chs
	}
	if cfg.GetFile() == "" {
		return fmt.Errorf("no input file: pass -file, a positional path, or set \"file\" in the config")
	}
	return cfg.Validate()
}

func parseChannels(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ch, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", part, err)
		}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no channels in %q", s)
	}
	return out, nil
}

func layoutFromConfig(cfg *config.InspectConfig) tod.Layout {
	return tod.Layout{
		Horns:         cfg.GetHorns(),
		DiodesPerHorn: cfg.GetDiodesPerHorn(),
		SignalDiodes:  cfg.GetSignalDiodes(),
	}
}

func loadOptionsFromConfig(cfg *config.InspectConfig) tod.LoadOptions {
	return tod.LoadOptions{
		TimeDataset:   cfg.GetTimeDataset(),
		TODDataset:    cfg.GetTODDataset(),
		PointDataset:  cfg.GetPointDataset(),
		PointingIndex: []int{cfg.GetPhiIndex(), cfg.GetThetaIndex(), cfg.GetPsiIndex()},
	}
}

// run performs one inspection: load, summarise, render, record.
func run(ctx context.Context, cfg *config.InspectConfig, opts runOptions, w io.Writer) error {
	path := cfg.GetFile()
	obs, err := tod.Load(path, loadOptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	layout := layoutFromConfig(cfg)
	sum := obs.Summarize(layout)
	if !sum.LayoutMatches {
		monitoring.Logf("warning: %d tod channels, layout describes %d horns x %d diodes",
			sum.Channels, layout.Horns, layout.DiodesPerHorn)
	}
	printSummary(w, sum)

	plotOpts := todplot.Options{
		OutputDir:       cfg.GetOutputDir(),
		Channels:        cfg.GetPlotChannels(),
		PointingChannel: opts.PointingChannel,
		MaxPoints:       cfg.GetMaxPlotPoints(),
		Layout:          layout,
	}
	if cfg.GetWritePNG() {
		paths, err := todplot.RenderPNG(obs, plotOpts)
		if err != nil {
			return fmt.Errorf("render png: %w", err)
		}
		for _, p := range paths {
			fmt.Fprintf(w, "plot: %s\n", p)
		}
	}
	if cfg.GetWriteHTML() {
		page, err := todplot.WriteHTML(obs, plotOpts)
		if err != nil {
			return fmt.Errorf("render html: %w", err)
		}
		fmt.Fprintf(w, "page: %s\n", page)
		if opts.Open {
			if err := todplot.OpenBrowser(page); err != nil {
				monitoring.Logf("%v", err)
			}
		}
	}

	if dbPath := cfg.GetCatalogPath(); dbPath != "" {
		store, err := catalog.Open(dbPath, nil)
		if err != nil {
			return fmt.Errorf("open catalogue: %w", err)
		}
		defer store.Close()
		entry, err := store.Record(ctx, sum)
		if err != nil {
			return fmt.Errorf("record inspection: %w", err)
		}
		fmt.Fprintf(w, "catalogue: %s (%s)\n", entry.ID, dbPath)
	}
	return nil
}

func printSummary(w io.Writer, s tod.Summary) {
	fmt.Fprintf(w, "file:     %s\n", s.Path)
	fmt.Fprintf(w, "tod:      %d channels x %d samples\n", s.Channels, s.Samples)
	fmt.Fprintf(w, "pointing: %d channels\n", s.PointingChannels)
	fmt.Fprintf(w, "time:     %.6f .. %.6f (span %.6f)\n", s.TimeStart, s.TimeEnd, s.Duration())
	fmt.Fprintf(w, "phi:      %.4f .. %.4f\n", s.Phi.Min, s.Phi.Max)
	fmt.Fprintf(w, "theta:    %.4f .. %.4f\n", s.Theta.Min, s.Theta.Max)
	fmt.Fprintf(w, "psi:      %.4f .. %.4f\n", s.Psi.Min, s.Psi.Max)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "channel\tlabel\tmean\tstddev\tmin\tmax")
	for _, cs := range s.Stats {
		fmt.Fprintf(tw, "%d\t%s\t%.6g\t%.6g\t%.6g\t%.6g\n", cs.Channel, cs.Label, cs.Mean, cs.StdDev, cs.Min, cs.Max)
	}
	tw.Flush()
}
