package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/pkg/observability"
)

// CLI flags
var (
	addr    = flag.String("addr", ":8080", "Listen address")
	dir     = flag.String("dir", "", "Report directory to serve (default from config)")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	help    = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		fmt.Println("report-server - serve generated simulation reports with health and metrics endpoints")
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Report.OutputDir = *dir
	}
	if *verbose {
		cfg.Observability.LogLevel = "debug"
	}

	logger := observability.NewLogger(cfg.Observability)
	ctx := context.Background()

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: "1.0.0",
		Namespace:      "zai_sim",
		Enabled:        true,
	})
	if err != nil {
		logger.Error(ctx, "metrics setup failed", err)
		os.Exit(1)
	}
	defer metrics.Shutdown(ctx)

	checker := observability.NewHealthChecker(logger)
	checker.RegisterCheck("report_dir", observability.ReportDirCheck(cfg.Report.OutputDir))

	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/health", checker.Handler())
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Report.OutputDir)))

	handler := cors.Default().Handler(loggingMiddleware(logger, r))

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(ctx, "serving reports", map[string]interface{}{
		"addr": *addr,
		"dir":  cfg.Report.OutputDir,
	})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(ctx, "server failed", err)
		os.Exit(1)
	}
}

// loggingMiddleware logs each request at debug level.
func loggingMiddleware(logger *observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug(r.Context(), "request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}
