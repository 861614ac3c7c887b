package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/backend"
	"github.com/vthunder/focuspet/internal/config"
	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/input"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/notify"
	"github.com/vthunder/focuspet/internal/store"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $FOCUS_CONFIG)")
	flag.Parse()

	log.Println("focusd - attention-aware focus tracker")
	log.Println("======================================")

	config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	if err := os.MkdirAll(cfg.StatePath, 0755); err != nil {
		log.Fatalf("Failed to create state dir: %v", err)
	}

	// Persistence
	db, err := store.Open(cfg.Store.Path, cfg.Store.Driver)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()
	log.Printf("[main] Store: %s (%s)", db.Path(), cfg.Store.Driver)

	actLog := activity.NewLog(cfg.ActivityDir())

	// Session loop
	session := focus.NewSession(focus.Config{
		UserID:     cfg.UserID,
		Thresholds: cfg.Thresholds,
		Browsers:   cfg.Browsers,
	}, actLog)
	session.AddSink(db)

	var client *backend.Client
	if cfg.HasBackend() {
		client = backend.NewClient(cfg.Backend.URL, cfg.Backend.Token)
		session.AddSink(client)
		log.Printf("[main] Backend: %s", cfg.Backend.URL)
	}
	if cfg.HasDiscord() {
		d, err := notify.DialDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			log.Fatalf("Failed to set up Discord: %v", err)
		}
		session.AddSink(d)
	}
	if cfg.NotifyFile != "" {
		session.AddSink(notify.NewFile(cfg.NotifyFile))
	}
	session.AddSink(focus.SinkFunc(func(_ context.Context, r focus.Record) error {
		log.Printf("[main] Session %s finished: score %d, looking %dms, away %dms",
			r.ID, r.FocusScore, r.LookingMs, r.AwayMs)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lists and rules
	state := lists.NewState()
	rules := lists.NewRuleSync(state, lists.FileInstaller{Path: cfg.Lists.RulesFile})
	rules.Attach()
	if err := rules.Sync(ctx); err != nil {
		log.Printf("Warning: initial rule sync failed: %v", err)
	}

	var poller *lists.Poller
	if client != nil {
		poller = lists.NewPoller(client, state, cfg.Backend.PollInterval)
		poller.Start()
	} else {
		go func() {
			if err := lists.Watch(ctx, cfg.Lists.File, state); err != nil {
				log.Printf("[lists] Watch stopped: %v", err)
			}
		}()
		log.Printf("[main] Lists: %s", cfg.Lists.File)
	}

	if browsers, err := input.RunningBrowsers(cfg.Browsers); err == nil && len(browsers) > 0 {
		log.Printf("[main] Browsers running: %v", browsers)
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- session.Run(ctx) }()

	// Events arrive as JSON lines on stdin
	feedDone := make(chan error, 1)
	go func() {
		f := &input.Feeder{Session: session, Resolver: input.NewResolver()}
		st, err := f.Feed(ctx, os.Stdin)
		log.Printf("[main] Input closed: %d frames, %d windows, %d controls, %d malformed",
			st.Frames, st.Windows, st.Controls, st.Malformed)
		feedDone <- err
	}()

	log.Println("[main] Running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-feedDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[main] Input error: %v", err)
		}
	}

	log.Println("[main] Shutting down...")
	if poller != nil {
		poller.Stop()
	}
	cancel()

	select {
	case <-loopDone:
	case <-time.After(10 * time.Second):
		log.Println("[main] Session loop did not stop in time")
	}

	log.Println("[main] Goodbye!")
}
