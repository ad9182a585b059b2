package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/internal/klines"
	"github.com/zai-protocol/zai-sim/pkg/observability"
)

// CLI flags
var (
	symbol   = flag.String("symbol", "", "Trading pair symbol (e.g. ZECUSDT)")
	interval = flag.String("interval", "", "Candle interval (e.g. 1h, 4h, 1d)")
	start    = flag.String("start", "", "Range start, RFC3339 or unix-ms")
	end      = flag.String("end", "", "Range end, RFC3339 or unix-ms (default: now)")
	out      = flag.String("out", "", "Output CSV path (default: <data_dir>/<symbol>_<interval>.csv)")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	help     = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		fmt.Println("kline-fetcher - pull OHLCV candles into CSV for price sequences")
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Klines.Symbol = *symbol
	}
	if *interval != "" {
		cfg.Klines.Interval = *interval
	}
	if *verbose {
		cfg.Observability.LogLevel = "debug"
	}

	if *start == "" {
		fmt.Fprintf(os.Stderr, "Error: -start is required\n")
		os.Exit(1)
	}
	startMS, err := parseTime(*start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -start: %v\n", err)
		os.Exit(1)
	}
	endMS := uint64(time.Now().UnixMilli())
	if *end != "" {
		if endMS, err = parseTime(*end); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -end: %v\n", err)
			os.Exit(1)
		}
	}

	logger := observability.NewLogger(cfg.Observability)
	ctx := context.Background()

	fetcher := klines.NewFetcher(cfg.Klines, logger)
	candles, err := fetcher.FetchRange(ctx, cfg.Klines.Symbol, cfg.Klines.Interval, startMS, endMS)
	if err != nil {
		logger.Error(ctx, "fetch failed", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Klines.DataDir, fmt.Sprintf("%s_%s.csv", cfg.Klines.Symbol, cfg.Klines.Interval))
	}
	if err := klines.SaveCSV(candles, path); err != nil {
		logger.Error(ctx, "save failed", err)
		os.Exit(1)
	}

	logger.Info(ctx, "saved candles", map[string]interface{}{
		"count": len(candles),
		"path":  path,
	})
}

// parseTime accepts RFC3339 or a raw unix-millisecond integer.
func parseTime(s string) (uint64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return uint64(t.UnixMilli()), nil
	}
	var ms uint64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return 0, fmt.Errorf("not RFC3339 or unix-ms: %q", s)
	}
	return ms, nil
}
