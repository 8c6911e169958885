// Command riverined runs a riverine core with a default stream forest:
// every ingested event is indexed, expiry notifications flow back
// through the forest, and the configured sinks and peer forwarder
// receive a copy of the traffic.
//
// Deployments with bespoke graphs embed pkg/riverine directly instead;
// see the examples directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randalmurphal/riverine/pkg/riverine"
	"github.com/randalmurphal/riverine/pkg/riverine/config"
	"github.com/randalmurphal/riverine/pkg/riverine/observability"
	"github.com/randalmurphal/riverine/pkg/riverine/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := observability.NewLogger(cfg.Logging.Level)

	core, err := riverine.NewCore(cfg,
		riverine.WithLogger(log),
		riverine.WithMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return err
	}

	roots := []riverine.Stream{core.IndexStream()}
	var closers []func() error

	if cfg.Sinks.Webhook.Enabled {
		hook, err := sink.NewWebhook(sink.WebhookConfig{
			URL:     cfg.Sinks.Webhook.URL,
			Timeout: cfg.Sinks.Webhook.Timeout,
			Headers: cfg.Sinks.Webhook.Headers,
		})
		if err != nil {
			return err
		}
		async := sink.NewAsync("webhook", hook, 0, log, nil, nil)
		closers = append(closers, async.Close)
		roots = append(roots, async)
	}

	if cfg.Sinks.Archive.Enabled {
		archive, err := sink.NewArchive(cfg.Sinks.Archive.Path)
		if err != nil {
			return err
		}
		async := sink.NewAsync("archive", archive, 0, log, nil, nil)
		closers = append(closers, async.Close)
		roots = append(roots, async)
	}

	if fwd := core.Forwarder(); fwd != nil {
		roots = append(roots, fwd)
	}

	core.SetRoots(roots...)
	if err := core.Start(); err != nil {
		return err
	}
	log.Info("riverined started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := core.Stop(ctx); err != nil {
		return err
	}
	for _, close := range closers {
		if err := close(); err != nil {
			log.Error("sink close failed", "error", err.Error())
		}
	}
	return nil
}
