// Command focus-native-host is the browser native-messaging host. It serves
// list state, compiled rules and navigation decisions over stdin/stdout.
// Logs go to stderr since stdout carries the protocol.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/config"
	"github.com/vthunder/focuspet/internal/lists"
	"github.com/vthunder/focuspet/internal/nativehost"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $FOCUS_CONFIG)")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetPrefix("focus-native-host ")

	config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := lists.NewState()
	if err := lists.Apply(cfg.Lists.File, state); err != nil {
		log.Printf("Warning: failed to load lists: %v", err)
	}

	// Changes pushed by the extension are persisted so the daemon and CLI
	// see them; the watcher's reload of our own write is a no-op.
	state.OnChange(func(sn lists.Snapshot) {
		f := lists.File{SessionOn: sn.SessionOn, Allowlist: sn.Lists.Allow, Blacklist: sn.Lists.Block}
		if err := lists.SaveFile(cfg.Lists.File, f); err != nil {
			log.Printf("Warning: failed to save lists: %v", err)
		}
	})
	go func() {
		if err := lists.Watch(ctx, cfg.Lists.File, state); err != nil {
			log.Printf("[lists] Watch stopped: %v", err)
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		os.Exit(0)
	}()

	host := nativehost.New(state)
	host.Log = activity.NewLog(cfg.ActivityDir())
	if err := host.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
