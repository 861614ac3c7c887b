// Command focus-mcp exposes focus stats, sessions and rule tools over MCP.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/focuspet/internal/config"
	"github.com/vthunder/focuspet/internal/store"
)

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[focus-mcp] ")

	config.LoadEnv()
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.Open(cfg.Store.Path, cfg.Store.Driver)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	s := server.NewMCPServer(
		"focus-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	t := &tools{store: db, listsFile: cfg.Lists.File}
	t.register(s)

	log.Printf("Serving store %s", db.Path())
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
