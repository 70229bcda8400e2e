package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/poiesic/docpipe/reextract"
	"github.com/urfave/cli/v2"
)

func reextractCommand() *cli.Command {
	return &cli.Command{
		Name:   "reextract",
		Usage:  "Re-run field extraction over stored OCR text",
		Action: reextractAction,
		Flags: append(append(storeFlags(), aiFlags()...),
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of records written back per transaction (defaults to dispatch.batch_size)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum extractor calls in flight (defaults to dispatch.max_concurrency)",
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N records",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "failed-only",
				Usage: "Only re-extract records whose extraction failed",
			},
			&cli.DurationFlag{
				Name:  "since",
				Usage: "Only re-extract records stored within this long ago (e.g. 24h)",
			},
		),
	}
}

func reextractAction(c *cli.Context) error {
	if c.Duration("since") < 0 {
		return fmt.Errorf("since must not be negative")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	rc := reextract.DefaultConfig()
	rc.BatchSize = cfg.Dispatch.BatchSize
	if c.IsSet("batch-size") {
		rc.BatchSize = c.Int("batch-size")
	}
	rc.Concurrency = cfg.Dispatch.MaxConcurrency
	rc.MaxRetries = cfg.Dispatch.MaxRetries
	rc.RetryDelay = cfg.Dispatch.RetryDelay
	rc.ReportInterval = c.Int("report-interval")
	rc.FailedOnly = c.Bool("failed-only")
	if d := c.Duration("since"); d > 0 {
		rc.Since = time.Now().Add(-d)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	summary, err := engine.NewReextractor(rc, c.App.ErrWriter).Run(ctx)
	if err != nil {
		return fmt.Errorf("re-extraction failed: %w", err)
	}
	if summary.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d record(s) could not be re-extracted", summary.Failed), 1)
	}
	return nil
}
