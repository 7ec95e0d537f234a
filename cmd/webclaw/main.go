package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webclaw/internal/config"
	"webclaw/internal/host"
	mcpserver "webclaw/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "Path to the webclaw config file")
	portFlag := flag.Int("port", 0, "Force the bridge WebSocket port (overrides config and WEBCLAW_PORT)")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *showVersion {
		fmt.Printf("%s %s\n", cfg.Server.Name, cfg.Server.Version)
		return
	}
	if *portFlag != 0 {
		cfg.Bridge.Port = *portFlag
	}

	// Redirect logging to file: stderr interferes with the MCP stdio protocol.
	if cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			log.SetOutput(io.Discard)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := host.Bind(cfg.Bridge.Port)
	if err != nil {
		fmt.Fprintln(os.Stderr, host.BindDiagnostic(err))
		os.Exit(1)
	}
	defer func() { _ = manager.Shutdown(context.Background()) }()
	log.Printf("bridge listening on ws://127.0.0.1:%d", manager.Port())

	if !cfg.Browser.IsAutoLaunch() {
		manager.SetLauncher(func() error { return nil })
		log.Printf("browser auto-launch disabled; waiting for a client to attach")
	}

	server := mcpserver.NewServer(cfg, manager)
	log.Printf("starting webclaw MCP stdio server")
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited with error: %v", err)
	}
}
