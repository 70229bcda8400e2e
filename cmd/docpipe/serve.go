package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/poiesic/docpipe/natsbus"
	"github.com/poiesic/docpipe/orchestrator"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Accept requests over NATS and publish results as they complete",
		Action: serveAction,
		Flags: append(append(storeFlags(), aiFlags()...),
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "Connect to an external NATS server instead of starting an embedded one",
			},
			&cli.IntFlag{
				Name:  "nats-port",
				Usage: "Port for the embedded NATS server (defaults to nats.port)",
			},
		),
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("nats-url"); v != "" {
		cfg.NATS.URL = v
	}
	if c.IsSet("nats-port") {
		cfg.NATS.Port = c.Int("nats-port")
	}

	logger := slog.Default().With("component", "serve")

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	var client *natsbus.Client
	if cfg.NATS.URL == "" {
		bus, err := natsbus.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		defer bus.Close()
		logger.Info("embedded NATS started", "url", bus.ClientURL())

		client, err = natsbus.NewClient(bus)
		if err != nil {
			return err
		}
	} else {
		client, err = natsbus.NewClientFromURL(cfg.NATS.URL)
		if err != nil {
			return err
		}
	}
	defer client.Close()

	topics := natsbus.Topics{Prefix: cfg.NATS.Prefix}
	oc := cfg.Orchestrator
	orch, err := engine.NewOrchestrator(
		orchestrator.WithMaxConcurrency(oc.MaxConcurrency),
		orchestrator.WithRateLimit(oc.RateLimit, oc.RateWindow),
		orchestrator.WithRetries(oc.MaxRetries, oc.RetryDelay),
		orchestrator.WithTimeout(oc.Timeout),
		orchestrator.WithStatisticsInterval(oc.StatisticsInterval),
		orchestrator.WithBufferSize(oc.BufferSize),
		orchestrator.WithPublisher(natsbus.NewPublisher(client, topics)),
	)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	drain(&wg, orch, logger)

	sub, err := natsbus.SubscribeRequests(client, topics, orch.Submit, slog.Default(), cfg.Orchestrator.BufferSize)
	if err != nil {
		orch.Close()
		wg.Wait()
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	logger.Info("accepting requests", "subject", topics.Requests())

	<-ctx.Done()
	logger.Info("shutting down")

	if err := sub.Unsubscribe(); err != nil {
		logger.Warn("unsubscribe failed", "error", err)
	}
	err = orch.Close()
	wg.Wait()
	if err := client.Flush(); err != nil {
		logger.Warn("flush failed", "error", err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// drain logs everything the orchestrator emits until its channels close.
func drain(wg *sync.WaitGroup, orch *orchestrator.Orchestrator, logger *slog.Logger) {
	wg.Add(3)
	go func() {
		defer wg.Done()
		for res := range orch.Successes() {
			logger.Info("request succeeded", "id", res.RequestID, "elapsed", res.Elapsed, "tokens", res.Usage.TotalTokens)
		}
	}()
	go func() {
		defer wg.Done()
		for res := range orch.Errors() {
			logger.Warn("request failed", "id", res.RequestID, "error", res.Error)
		}
	}()
	go func() {
		defer wg.Done()
		for s := range orch.Statistics() {
			logger.Info("statistics", "succeeded", s.Succeeded, "failed", s.Failed, "rate", s.SuccessRate)
		}
	}()
}
