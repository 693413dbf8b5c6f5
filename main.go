package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/engine"
	"forum-scheduler/formatter"
	"forum-scheduler/metrics"
	"forum-scheduler/parser"
)

func main() {
	// Optional .env file supplies flag defaults
	_ = godotenv.Load()

	// Define flags
	staffPath := flag.String("staff", envOr("SCHEDULER_STAFF", ""), "Staff roster CSV file (required)")
	requestsPath := flag.String("requests", envOr("SCHEDULER_REQUESTS", ""), "Supplier requests CSV file (required)")
	opportunityPath := flag.String("opportunity", envOr("SCHEDULER_OPPORTUNITY", ""), "Opportunity table CSV file (required)")
	configPath := flag.String("config", envOr("SCHEDULER_CONFIG", ""), "YAML configuration file (default: built-in event config)")
	format := flag.String("format", "text", "Output format: text|json|csv")
	seeds := flag.Int("seeds", envInt("SCHEDULER_SEEDS", 0), "Outer search seed count (0 = config value)")
	addOnSeeds := flag.Int("addon-seeds", envInt("SCHEDULER_ADDON_SEEDS", -1), "Add-on search seed count (-1 = config value, 0 = disabled)")
	workers := flag.Int("workers", envInt("SCHEDULER_WORKERS", 0), "Trial worker pool size (0 = config value)")
	verbose := flag.Bool("verbose", false, "Development logging")
	metricsAddr := flag.String("metrics-addr", "", "Address to expose Prometheus metrics (e.g., :9090)")
	pushGateway := flag.String("push-url", "", "Pushgateway URL to push metrics to (e.g., http://localhost:9091)")
	wait := flag.Bool("wait", false, "Keep process running after completion to allow for metric scraping")

	// Parse command-line flags
	flag.Parse()

	log, err := buildLogger(*verbose)
	if err != nil {
		fmt.Printf("Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Start metrics server if address provided
	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			fmt.Printf("Metrics server listening on %s/metrics\n", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				fmt.Printf("Metrics server error: %v\n", err)
			}
		}()
	}

	// Validate required input flags
	if *staffPath == "" || *requestsPath == "" || *opportunityPath == "" {
		fmt.Println("Error: -staff, -requests and -opportunity flags are required")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate format enum
	validFormats := map[string]bool{"text": true, "json": true, "csv": true}
	if !validFormats[*format] {
		fmt.Printf("Error: format must be one of: text, json, csv (got: %s)\n", *format)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *seeds > 0 {
		cfg.Seeds = *seeds
	}
	if *addOnSeeds >= 0 {
		cfg.AddOnSeeds = *addOnSeeds
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	staff, err := parseFile(*staffPath, parser.ParseStaff)
	if err != nil {
		fmt.Printf("Error parsing staff roster: %v\n", err)
		os.Exit(1)
	}
	suppliers, err := parseFile(*requestsPath, parser.ParseRequests)
	if err != nil {
		fmt.Printf("Error parsing requests: %v\n", err)
		os.Exit(1)
	}
	rows, err := parseFile(*opportunityPath, parser.ParseOpportunities)
	if err != nil {
		fmt.Printf("Error parsing opportunity table: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg, suppliers, staff, rows, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	result, err := eng.Run()
	if err != nil {
		fmt.Printf("Error generating schedule: %v\n", err)
		os.Exit(1)
	}

	cal := cfg.Calendar()
	switch *format {
	case "json":
		fmt.Print(formatter.FormatJSON(result, cal))
	case "csv":
		fmt.Print(formatter.FormatCSV(result, cal))
	default: // "text"
		fmt.Print(formatter.FormatText(result, cal))
	}

	// Handle metrics pushing or waiting
	if *pushGateway != "" {
		jobName := "forum_scheduler"
		if err := push.New(*pushGateway, jobName).Gatherer(metrics.Registry).Push(); err != nil {
			fmt.Fprintf(os.Stderr, "Error pushing to Pushgateway: %v\n", err)
		} else {
			fmt.Println("\nMetrics successfully pushed to Pushgateway")
		}
	}

	if *wait && *metricsAddr != "" {
		fmt.Println("\nProcess kept alive for metric scraping. Press Ctrl+C to exit.")
		// Wait for interrupt signal
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		fmt.Println("\nExiting...")
	} else if *metricsAddr != "" && *pushGateway == "" {
		// Small delay to allow final scrape if not waiting explicitly
		// but typically batch jobs should use pushgateway or wait
		time.Sleep(100 * time.Millisecond)
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func parseFile[T any](path string, parse func(r io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return parse(f)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
