package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentwatch/config"
	"rentwatch/httputil"
	"rentwatch/logging"
	"rentwatch/monitor"
	"rentwatch/notify"
	"rentwatch/scheduler"
	"rentwatch/scraper"
	"rentwatch/storage"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to YAML config")
	runOnce    = flag.Bool("once", false, "Run one cycle and exit")
	showStats  = flag.Bool("stats", false, "Print store stats and exit")
	exportPath = flag.String("export", "", "Export active listings as JSON to the given path and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.Log.Path, cfg.Log.MaxSizeMB)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting rentwatch...")

	ctx := context.Background()

	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage: %s", cfg.Storage.Driver)

	if *showStats {
		out, err := monitor.FormatStats(ctx, store)
		if err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
		fmt.Print(out)
		return
	}

	if *exportPath != "" {
		if err := monitor.ExportSnapshot(ctx, store, cfg, *exportPath); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	}

	client := httputil.NewScrapingClient(cfg.API.Timeout())
	fetcher := scraper.NewFetcher(cfg, client)

	mailer := notify.NewSMTPMailer(
		cfg.Notifications.SenderEmail,
		cfg.Notifications.SenderPassword,
		cfg.Notifications.SMTPHost,
		cfg.Notifications.SMTPPort,
	)
	notifier := notify.NewNotifier(&cfg.Notifications, mailer)

	mon := monitor.New(cfg, store, fetcher, notifier)

	if *runOnce {
		cycleCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := mon.RunCycle(cycleCtx); err != nil {
			log.Printf("Cycle failed: %v", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, mon)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}
