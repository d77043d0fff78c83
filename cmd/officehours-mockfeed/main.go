package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/config"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/mockfeed"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	tick := flag.Duration("tick", 0, "Override the interval between generated changes")
	seed := flag.Int64("seed", 0, "Random seed for generated changes (0 picks one)")
	still := flag.Bool("still", false, "Serve the seeded data without generating changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.MockFeed.Port = *port
	}
	if *tick > 0 {
		cfg.MockFeed.Tick = *tick
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	entry := log.NewEntry(logger).WithField("component", "mockfeed")

	store := mockfeed.NewStore()
	queueID := mockfeed.Seed(store)
	server := mockfeed.NewServer(store, entry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*still {
		entry.WithFields(log.Fields{"queue": queueID, "tick": cfg.MockFeed.Tick, "seed": *seed}).Info("Generating changes")
		gen := mockfeed.NewGenerator(server, queueID, *seed)
		gen.Start(ctx, cfg.MockFeed.Tick)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.MockFeed.Host, cfg.MockFeed.Port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("Shutting down...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	entry.WithField("addr", addr).Info("Mock office-hours server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		entry.Fatalf("Server error: %v", err)
	}
}
