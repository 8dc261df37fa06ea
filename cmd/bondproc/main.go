// Command bondproc runs the event processor: intake, sequencing,
// application, and the report/live-dashboard HTTP façade. The "serve"
// command is the long-lived server; "seed" and "report" are offline
// utilities over the same store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bondbackoffice/eventproc/internal/config"
	"github.com/bondbackoffice/eventproc/internal/httpapi"
	"github.com/bondbackoffice/eventproc/internal/processor"
	"github.com/bondbackoffice/eventproc/internal/report"
	"github.com/bondbackoffice/eventproc/internal/seed"
	"github.com/bondbackoffice/eventproc/internal/sequencer"
	"github.com/bondbackoffice/eventproc/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "seed":
		cmdSeed(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: bondproc <command> [options]

Commands:
  serve    Run the intake/report HTTP server
  seed     Load the initial_fx/bond_details/initial_cash CSV files
  report   Generate one report to stdout or a file

Common options:
  --config <path>   YAML config file (optional; env BONDPROC_* overrides)

Seed options:
  --fx <path>     initial_fx.csv (default from config)
  --bond <path>   bond_details.csv (default from config)
  --cash <path>   initial_cash.csv (default from config)

Report options:
  --kind <name>       cash_level_portfolio | position_level_portfolio |
                       bond_level_portfolio | currency_level_portfolio | exclusions
  --target-id <id>    event id to reconstruct state as of
  --out <path>        write to this file instead of stdout`)
}

func loadConfig(args []string) config.Config {
	configPath := flagValue(args, "--config", "")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func flagValue(args []string, name, def string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

func cmdServe(args []string) {
	cfg := loadConfig(args)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "bondproc")

	s, err := store.Open(cfg.Store.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	proc := processor.New(s, logger)
	seq := sequencer.New(proc.Apply, s.LastReleased, logger)
	engine := report.New(s)

	srv := httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr, OutputDir: cfg.Store.OutputDir}, httpapi.Deps{
		Sequencer: seq,
		Reports:   engine,
		Reference: s,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start() })
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("bondproc exited with error", "error", err)
		os.Exit(1)
	}
}

func cmdSeed(args []string) {
	cfg := loadConfig(args)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "bondproc-seed")

	s, err := store.Open(cfg.Store.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	files := seed.Files{
		FX:   flagValue(args, "--fx", cfg.Seed.FXPath),
		Bond: flagValue(args, "--bond", cfg.Seed.BondPath),
		Cash: flagValue(args, "--cash", cfg.Seed.CashPath),
	}
	if err := seed.Load(context.Background(), s, files); err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seed complete")
}

func cmdReport(args []string) {
	cfg := loadConfig(args)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "bondproc-report")

	kindName := flagValue(args, "--kind", "")
	targetIDStr := flagValue(args, "--target-id", "")
	outPath := flagValue(args, "--out", "")

	if kindName == "" || targetIDStr == "" {
		fmt.Fprintln(os.Stderr, "Error: --kind and --target-id are required")
		os.Exit(1)
	}
	var targetID int64
	if _, err := fmt.Sscanf(targetIDStr, "%d", &targetID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad --target-id %q: %v\n", targetIDStr, err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.Store.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	engine := report.New(s)
	rows, err := engine.Generate(context.Background(), targetID, report.Kind(kindName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", outPath, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteCSV(out, report.Kind(kindName), rows); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing csv: %v\n", err)
		os.Exit(1)
	}
}
