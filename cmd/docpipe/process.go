package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/urfave/cli/v2"
)

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Run document images through OCR and extraction and store the results",
		ArgsUsage: "FILE...",
		Action:    processAction,
		Flags: append(append(storeFlags(), aiFlags()...),
			&cli.StringFlag{
				Name:  "type",
				Usage: "Document type hint (check, receipt, unknown)",
				Value: string(core.DocumentTypeUnknown),
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum documents in flight (defaults to dispatch.max_concurrency)",
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N documents",
				Value: 1,
			},
		),
	}
}

func processAction(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	docType, err := parseDocumentType(c.String("type"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Store.Path)
	fmt.Fprintf(c.App.ErrWriter, "OCR: %s (%s)\n", cfg.AI.OCRModel, cfg.AI.OCRHost)
	fmt.Fprintf(c.App.ErrWriter, "Extraction: %s (%s)\n", cfg.AI.ExtractionModel, cfg.AI.ExtractionHost)
	fmt.Fprintln(c.App.ErrWriter)

	tracker := pipeline.NewProgressTracker(c.App.ErrWriter, len(paths), c.Int("report-interval"), nil)
	tracker.Start()
	outcomes := buildProcessPipeline(engine, paths, docType, cfg.Dispatch.MaxConcurrency, tracker).Run(ctx)

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Status", "Tokens", "Elapsed", "Detail"})
	for o := range outcomes {
		if o.Err != nil {
			t.AppendRow(table.Row{"", "failed", "", "", o.Err.Error()})
			continue
		}
		t.AppendRow(table.Row{o.Value.RequestID, "ok", o.Value.Usage.TotalTokens, o.Value.Elapsed.Round(time.Millisecond), o.Value.Payload})
	}
	tracker.Finish()
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d failed", tracker.Failed()), "", tracker.Elapsed().Round(time.Millisecond), ""})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 60}})
	t.Render()

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := tracker.Failed(); n > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d document(s) failed", n, len(paths)), 1)
	}
	return nil
}

// buildProcessPipeline reads each path and runs it through the engine.
// Failures are wrapped with the path they belong to.
func buildProcessPipeline(engine *docpipe.Engine, paths []string, docType core.DocumentType, concurrency int, tracker *pipeline.ProgressTracker) *pipeline.Pipeline[*core.Result] {
	read := pipeline.NodeFunc[string, *core.Request](func(ctx context.Context, path string) (*core.Request, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &core.Request{ID: path, Input: data, Kind: core.InputKindImage, DocumentType: docType}, nil
	})

	handle := pipeline.Then[string, *core.Request, *core.Result](read, engine.Handler())
	labeled := pipeline.NodeFunc[string, *core.Result](func(ctx context.Context, path string) (*core.Result, error) {
		res, err := handle.Process(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return res, nil
	})

	return pipeline.Through(
		pipeline.From(pipeline.FromSlice(paths...)),
		pipeline.WithProgress[string, *core.Result](labeled, pipeline.TrackProgress[string](tracker)),
		pipeline.WithConcurrency(concurrency),
	).Build()
}

func parseDocumentType(s string) (core.DocumentType, error) {
	switch dt := core.DocumentType(s); dt {
	case core.DocumentTypeCheck, core.DocumentTypeReceipt, core.DocumentTypeUnknown:
		return dt, nil
	default:
		return "", fmt.Errorf("invalid document type %q: must be one of check, receipt, unknown", s)
	}
}
