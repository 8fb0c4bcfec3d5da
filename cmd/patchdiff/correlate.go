package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"patchdiff/internal/config"
	"patchdiff/internal/correlate"
	"patchdiff/internal/logger"
	"patchdiff/internal/matchgraph"
	"patchdiff/internal/metrics"
	"patchdiff/internal/output"
	"patchdiff/internal/program"
)

func cmdCorrelate(args []string) error {
	fs := flag.NewFlagSet("correlate", flag.ExitOnError)
	srcLib := fs.String("src", "", "source ELF binary")
	dstLib := fs.String("dst", "", "destination ELF binary")
	srcJSON := fs.String("src-json", "", "source functions as a JSON array")
	dstJSON := fs.String("dst-json", "", "destination functions as a JSON array")
	cfgPath := fs.String("config", "", "YAML config file")
	similarity := fs.Float64("similarity", correlate.DefaultSimilarityThreshold, "minimum similarity in [0,1]")
	confidence := fs.Float64("confidence", correlate.DefaultConfidenceThreshold, "minimum confidence")
	namesMustMatch := fs.Bool("names-must-match", correlate.DefaultSymbolNamesMustMatch, "only pair functions with identical names")
	workers := fs.Int("workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	srcRange := fs.String("src-range", "", "source address set")
	dstRange := fs.String("dst-range", "", "destination address set")
	best := fs.Bool("best", false, "keep only the best match per source function")
	outDir := fs.String("out", "", "output directory (default: JSONL on stdout)")
	graph := fs.Bool("graph", false, "write matches.dot alongside matches.json")
	htmlReport := fs.Bool("html", false, "write matches.html alongside matches.json")
	metricsFile := fs.String("metrics-file", "", "write prometheus text metrics to this path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*srcLib == "") == (*srcJSON == "") || (*dstLib == "") == (*dstJSON == "") {
		return fmt.Errorf("exactly one of --src/--src-json and one of --dst/--dst-json is required")
	}
	if (*graph || *htmlReport) && *outDir == "" {
		return fmt.Errorf("--graph and --html require --out")
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "similarity":
			cfg.Correlator.SimilarityThreshold = similarity
		case "confidence":
			cfg.Correlator.ConfidenceThreshold = confidence
		case "names-must-match":
			cfg.Correlator.SymbolNamesMustMatch = namesMustMatch
		case "workers":
			cfg.Correlator.Workers = *workers
		}
	})

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	c, err := correlate.New(cfg.CorrelatorOptions(),
		correlate.WithWorkers(cfg.Correlator.Workers),
		correlate.WithLogger(log),
	)
	if err != nil {
		return err
	}

	srcSet, err := program.ParseAddressSet(*srcRange)
	if err != nil {
		return fmt.Errorf("--src-range: %w", err)
	}
	dstSet, err := program.ParseAddressSet(*dstRange)
	if err != nil {
		return fmt.Errorf("--dst-range: %w", err)
	}

	src, srcCloser, err := openProgram(*srcLib, *srcJSON)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer srcCloser.Close()
	dst, dstCloser, err := openProgram(*dstLib, *dstJSON)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer dstCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	ms, err := c.CorrelatePrograms(ctx, src, srcSet, dst, dstSet)
	if err != nil {
		return err
	}
	if *best {
		ms = ms.BestPerSource()
	}

	if *outDir == "" {
		if err := output.WriteMatchesJSONL(os.Stdout, ms); err != nil {
			return err
		}
	} else {
		if err := writeCorrelation(*outDir, *graph, *htmlReport, output.Report{
			Correlator:  correlate.Name,
			Source:      inputLabel(*srcLib, *srcJSON),
			Destination: inputLabel(*dstLib, *dstJSON),
			Options:     c.Options(),
			Matches:     output.Records(ms),
		}, ms); err != nil {
			return err
		}
	}

	if *metricsFile != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		log.Debug("metrics written", zap.String("path", *metricsFile))
	}
	return nil
}

func writeCorrelation(dir string, graph, html bool, report output.Report, ms correlate.MatchSet) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	if err := output.WriteMatchesJSON(dir, report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d matches to %s\n", len(ms), filepath.Join(dir, "matches.json"))

	if graph {
		dotPath := filepath.Join(dir, "matches.dot")
		title := fmt.Sprintf("%s: %s -> %s", correlate.Name, report.Source, report.Destination)
		if err := os.WriteFile(dotPath, []byte(matchgraph.DOT(ms, title)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", dotPath, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", dotPath)
	}

	if html {
		htmlPath := filepath.Join(dir, "matches.html")
		f, err := os.Create(htmlPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", htmlPath, err)
		}
		output.WriteMatchesHTML(f, report)
		if err := f.Close(); err != nil {
			return fmt.Errorf("write %s: %w", htmlPath, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", htmlPath)
	}
	return nil
}
