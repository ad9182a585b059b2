package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/internal/output"
	"github.com/zai-protocol/zai-sim/internal/report"
	"github.com/zai-protocol/zai-sim/internal/scenario"
	"github.com/zai-protocol/zai-sim/pkg/observability"
)

// CLI flags
var (
	scenarioName = flag.String("scenario", "", "Scenario id to run (see -list)")
	suite        = flag.Bool("suite", false, "Run the full stress suite")
	list         = flag.Bool("list", false, "List available scenario ids")
	profile      = flag.String("profile", "", "YAML config profile to overlay")
	blocks       = flag.Int("blocks", 0, "Block count override")
	seed         = flag.Int64("seed", 0, "Seed override")
	outDir       = flag.String("out", "", "Report output directory override")
	format       = flag.String("format", "", "Per-block metrics format: csv, json")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	help         = flag.Bool("help", false, "Show help message")
	version      = flag.Bool("version", false, "Show version information")
)

const (
	appName    = "zai-sim"
	appVersion = "1.0.0"
	appDesc    = "ZAI stablecoin stress simulator"
)

func main() {
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		return
	}
	if *list {
		for _, id := range scenario.All() {
			fmt.Println(id.Name())
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *profile != "" {
		if err := cfg.LoadProfile(*profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *blocks > 0 {
		cfg.Sim.Blocks = *blocks
	}
	if *seed != 0 {
		cfg.Sim.Seed = *seed
	}
	if *outDir != "" {
		cfg.Report.OutputDir = *outDir
	}
	if *format != "" {
		cfg.Report.Format = *format
	}
	if cfg.Report.Format != "csv" && cfg.Report.Format != "json" {
		fmt.Fprintf(os.Stderr, "Error: format must be 'csv' or 'json'\n")
		os.Exit(1)
	}

	if *verbose {
		cfg.Observability.LogLevel = "debug"
	}
	logger := observability.NewLogger(cfg.Observability)
	ctx := context.Background()

	var ids []scenario.ID
	switch {
	case *suite:
		ids = scenario.All()
	case *scenarioName != "":
		id := scenario.ID(*scenarioName)
		if !id.Valid() {
			fmt.Fprintf(os.Stderr, "Error: unknown scenario %q (try -list)\n", *scenarioName)
			os.Exit(1)
		}
		ids = []scenario.ID{id}
	default:
		fmt.Fprintf(os.Stderr, "Error: -scenario or -suite is required\n\n")
		showUsage()
		os.Exit(1)
	}

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: appVersion,
		Namespace:      "zai_sim",
		Enabled:        true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer metrics.Shutdown(ctx)

	results, err := runAll(ctx, logger, metrics, cfg, ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printTable(cfg, results)

	// The verdict is data, not a process status: exit 0 regardless.
}

func runAll(ctx context.Context, logger *observability.Logger, metrics *observability.MetricsProvider, cfg *config.Config, ids []scenario.ID) ([]output.ScenarioResult, error) {
	results := make([]output.ScenarioResult, 0, len(ids))

	for _, id := range ids {
		logger.Info(ctx, "running scenario", map[string]interface{}{
			"scenario": id.Name(),
			"blocks":   cfg.Sim.Blocks,
			"seed":     cfg.Sim.Seed,
		})

		started := time.Now()
		s, err := scenario.RunStress(id, cfg.Sim, cfg.Sim.Blocks, cfg.Sim.Seed)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", id.Name(), err)
		}

		runID := uuid.New().String()
		summary := output.ComputeSummary(s.Metrics)
		verdict := output.Evaluate(summary, cfg.Sim.Verdict)
		results = append(results, output.NewScenarioResult(runID, id.Name(), verdict, summary))

		metrics.RecordRun(ctx, id.Name(), string(verdict.Overall),
			time.Since(started).Seconds(),
			int64(summary.TotalLiquidations), summary.TotalBadDebt,
			int64(summary.BreakerTriggers), int64(summary.HaltBlocks))

		if err := writeArtifacts(cfg, id.Name(), runID, s.Metrics, verdict, summary); err != nil {
			return nil, err
		}
	}

	if len(ids) > 1 {
		html, err := report.GenerateMaster(results)
		if err != nil {
			return nil, err
		}
		if err := report.Save(html, filepath.Join(cfg.Report.OutputDir, "index.html")); err != nil {
			return nil, err
		}
	}
	if err := output.WriteResults(results, filepath.Join(cfg.Report.OutputDir, "results.json")); err != nil {
		return nil, err
	}

	return results, nil
}

func writeArtifacts(cfg *config.Config, name, runID string, metrics []output.Record, verdict output.Verdict, summary output.Summary) error {
	html, err := report.Generate(metrics, name, runID, verdict, summary)
	if err != nil {
		return err
	}
	if err := report.Save(html, filepath.Join(cfg.Report.OutputDir, name+".html")); err != nil {
		return err
	}

	metricsPath := filepath.Join(cfg.Report.OutputDir, name+"_metrics."+cfg.Report.Format)
	if cfg.Report.Format == "json" {
		return output.WriteJSON(metrics, metricsPath)
	}
	return output.WriteCSV(metrics, metricsPath)
}

func printTable(cfg *config.Config, results []output.ScenarioResult) {
	line := strings.Repeat("─", 104)
	fmt.Printf("\n  %s\n", line)
	fmt.Printf("  ZAI SIMULATOR — STRESS RESULTS (blocks=%d, seed=%d)\n", cfg.Sim.Blocks, cfg.Sim.Seed)
	fmt.Printf("  %s\n", line)
	fmt.Printf("  %-24s %10s %10s %10s %6s %12s %10s %6s %8s\n",
		"Scenario", "Verdict", "Mean Peg", "Max Peg", "Liqs", "Bad Debt", "Volatility", "Halts", "Breakers")
	fmt.Printf("  %s\n", line)

	var pass, soft, hard int
	for _, r := range results {
		switch r.Overall {
		case output.OutcomePass:
			pass++
		case output.OutcomeSoftFail:
			soft++
		case output.OutcomeHardFail:
			hard++
		}
		fmt.Printf("  %-24s %10s %9.4f%% %9.4f%% %6d %12.2f %10.4f %6d %8d\n",
			r.Name, r.Overall, r.MeanPeg*100, r.MaxPeg*100,
			r.Liquidations, r.BadDebt, r.Volatility, r.HaltBlocks, r.BreakerTriggers)
	}

	fmt.Printf("  %s\n", line)
	fmt.Printf("  TOTALS: %d PASS / %d SOFT FAIL / %d HARD FAIL out of %d scenarios\n", pass, soft, hard, len(results))
	fmt.Printf("  Reports saved to: %s\n\n", cfg.Report.OutputDir)
}

func showHelp() {
	fmt.Printf("%s - %s\n\n", appName, appDesc)
	showUsage()
	fmt.Println(`
Examples:
  zai-sim -scenario flat
  zai-sim -scenario black_thursday -blocks 5000 -seed 7
  zai-sim -suite -profile profiles/5m_200cr.yaml -out reports/5m`)
}

func showUsage() {
	fmt.Println("Usage:")
	flag.PrintDefaults()
}
