package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/api"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/app"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/config"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	baseURL := flag.String("url", "", "Override the office-hours server base URL")
	queueID := flag.Int("queue", 1, "Queue to manage")
	userID := flag.Int("user", 0, "Signed-in user id; follows the user feed when set")
	poll := flag.Bool("poll", false, "Poll the queue over REST instead of following the live feed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Server.BaseURL = *baseURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// The screen belongs to Bubble Tea, so logs only go to a file.
	logger, closeLog, err := logging.New(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Fallback: io.Discard,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	entry := log.NewEntry(logger).WithFields(log.Fields{"queue": *queueID, "user": *userID})

	client := api.New(cfg.Server.BaseURL, api.WithLogger(entry.WithField("component", "api")))
	m := app.New(client, app.Options{
		BaseURL:         cfg.Server.BaseURL,
		QueueID:         *queueID,
		UserID:          *userID,
		Poll:            *poll,
		RefreshInterval: cfg.Refresh.Interval,
		EventLifetime:   cfg.Changes.EventLifetime,
		Live: []live.Option{
			live.WithMaxRetries(cfg.Live.MaxRetries),
			live.WithBackoff(cfg.Live.ReconnectBaseDelay, cfg.Live.ReconnectMaxDelay),
			live.WithKeepalive(cfg.Live.PingInterval, cfg.Live.PongTimeout),
		},
		Log: entry,
	})

	entry.WithField("poll", *poll).Info("Starting TUI")
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		entry.WithError(err).Error("TUI exited")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
