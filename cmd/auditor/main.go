package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/audit"
	"site-auditor/pkg/config"
	"site-auditor/pkg/models"
	"site-auditor/pkg/render"
	"site-auditor/pkg/storage"
)

const (
	screenshotWidth  = 390
	screenshotHeight = 844
)

func main() {
	// --- Early Initialization & Flags ---
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	urlFlag := flag.String("url", "", "Seed URL to audit (required)")
	configFileFlag := flag.String("config", "", "Path to YAML config file (optional)")
	logLevelFlag := flag.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	chromeFlag := flag.Bool("chrome", false, "Render pages in headless Chrome instead of plain HTTP")
	safeFlag := flag.Bool("safe", false, "Safe mode: force the plain HTTP renderer")
	storeFlag := flag.Bool("store", false, "Persist the report to the local state store")
	jsonFlag := flag.Bool("json", false, "Print the full report as JSON instead of a summary")
	flag.Parse()

	// --- Logger Configuration ---
	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevelFlag, err)
	} else {
		log.SetLevel(level)
	}

	if *urlFlag == "" {
		log.Fatal("Error: -url flag is required.")
	}

	// --- Load Application Configuration ---
	cfg := config.Default()
	if *configFileFlag != "" {
		log.Infof("Loading configuration from %s", *configFileFlag)
		cfg, err = config.Load(*configFileFlag)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
	}
	if *chromeFlag {
		cfg.Chrome.Enabled = true
	}
	if *safeFlag {
		cfg.SafeMode = true
	}
	warnings, err := cfg.Validate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	// --- Context & Signal Handling ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Shutting down...", sig)
		cancel()
		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// --- Run the Audit ---
	entry := logrus.NewEntry(log)
	auditor := audit.New(cfg, nil, entry)

	start := time.Now()
	report, err := auditor.Audit(ctx, *urlFlag)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}
	log.Infof("Audit of %s finished in %s", report.Domain, time.Since(start).Round(time.Millisecond))

	// --- Persist Artifacts (Optional) ---
	if *storeFlag {
		persist(ctx, cfg, report, entry)
	}

	// --- Output ---
	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}
	printSummary(os.Stdout, report)
}

// persist stores the report under a fresh job id, plus a mobile screenshot
// when the Chrome renderer is available. Storage failures are logged, never
// fatal: the report has already been produced.
func persist(ctx context.Context, cfg *config.Config, report *models.Report, entry *logrus.Entry) {
	store, err := storage.NewBadgerStore(cfg.StateDir, entry)
	if err != nil {
		entry.Errorf("Failed to open report store: %v", err)
		return
	}
	defer store.Close()

	jobID := storage.NewJobID()
	if err := store.SaveReport(jobID, report); err != nil {
		entry.Errorf("Failed to save report: %v", err)
		return
	}
	entry.WithField("job_id", jobID).Info("Report saved")

	if cfg.Chrome.Enabled && !cfg.SafeMode {
		shooter := render.NewChromeRenderer(render.ChromeOptions{
			ChromePath: cfg.Chrome.Path,
			UserAgent:  cfg.UserAgent,
			Headless:   cfg.Chrome.HeadlessEnabled(),
		}, entry)
		png, err := shooter.Screenshot(ctx, "https://"+report.Domain+"/", screenshotWidth, screenshotHeight)
		if err != nil {
			entry.Warnf("Screenshot failed (non-fatal): %v", err)
		} else if err := store.SaveScreenshot(jobID, png); err != nil {
			entry.Errorf("Failed to save screenshot: %v", err)
		}
	}
}

func printSummary(w io.Writer, report *models.Report) {
	fmt.Fprintf(w, "\n%s - score %d/100 (raw %d)\n", report.Domain, report.Score, report.ScoreRaw)
	fmt.Fprintf(w, "  technical %d | seo %d | legal %d | ux %d\n",
		report.Breakdown.Technical, report.Breakdown.SEO, report.Breakdown.Legal, report.Breakdown.UXDesign)
	fmt.Fprintf(w, "  %s\n", report.Summary)
	if report.QuickWin != nil {
		fmt.Fprintf(w, "\n  Start here: %s [%s]\n", report.QuickWin.Title, report.QuickWin.Severity)
		if report.QuickWin.Recommendation != "" {
			fmt.Fprintf(w, "  %s\n", report.QuickWin.Recommendation)
		}
	}
	if len(report.Issues) > 0 {
		fmt.Fprintln(w, "\n  Findings:")
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "    [%-6s] %-10s %s\n", issue.Severity, issue.Category, issue.Title)
		}
	}
	fmt.Fprintln(w)
}
