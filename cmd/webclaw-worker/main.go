// webclaw-worker is the bridge client: it attaches to a webclaw host over
// WebSocket and serves browser operations. By default tabs are in-process
// page models; with --devtools-url they are live Chrome pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webclaw/internal/chrome"
	"webclaw/internal/host"
	"webclaw/internal/worker"
)

func main() {
	hostURL := flag.String("host-url", fmt.Sprintf("ws://127.0.0.1:%d", host.PortRangeStart), "webclaw host WebSocket URL")
	devtoolsURL := flag.String("devtools-url", "", "Chrome DevTools endpoint for the live backend (e.g. ws://127.0.0.1:9222)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var w *worker.Worker
	if *devtoolsURL != "" {
		manager, err := chrome.Attach(ctx, *devtoolsURL)
		if err != nil {
			log.Fatalf("failed to attach to chrome: %v", err)
		}
		defer func() { _ = manager.Close() }()
		log.Printf("live backend attached to %s", *devtoolsURL)
		w = worker.New(func(id int) worker.Tab {
			tab, err := manager.NewTab(id)
			if err != nil {
				log.Fatalf("failed to open live tab %d: %v", id, err)
			}
			return tab
		})
	} else {
		w = worker.NewPageWorker()
	}

	client := worker.NewClient(*hostURL, w)
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("worker exited: %v", err)
		os.Exit(1)
	}
}
