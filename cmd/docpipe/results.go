package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/urfave/cli/v2"
)

func resultsCommand() *cli.Command {
	return &cli.Command{
		Name:   "results",
		Usage:  "List stored extraction results",
		Action: resultsAction,
		Flags: append(storeFlags(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of most recent results to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "request",
				Usage: "Show the result stored for a single request ID",
			},
			&cli.BoolFlag{
				Name:  "payload",
				Usage: "Include the extracted payload column",
			},
		),
	}
}

func resultsAction(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	repo, err := badger.NewRepository(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer repo.Close()

	var records []*core.ResultRecord
	if id := c.String("request"); id != "" {
		rec, err := repo.GetResultByRequestID(c.Context, id)
		if errors.Is(err, storage.ErrNotFound) {
			return cli.Exit(fmt.Sprintf("no result stored for request %q", id), 1)
		}
		if err != nil {
			return err
		}
		records = append(records, rec)
	} else {
		records, err = repo.GetRecentResults(c.Context, limit)
		if err != nil {
			return err
		}
	}

	renderResults(c, records, c.Bool("payload"))
	return nil
}

func renderResults(c *cli.Context, records []*core.ResultRecord, withPayload bool) {
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetStyle(table.StyleLight)

	header := table.Row{"ID", "Request", "MIME", "Type", "Success", "Confidence", "Model", "Tokens", "Inserted"}
	if withPayload {
		header = append(header, "Payload")
	}
	t.AppendHeader(header)

	for _, r := range records {
		row := table.Row{
			r.Id.String(),
			r.RequestID,
			r.MimeType,
			r.DocumentType,
			r.Success,
			fmt.Sprintf("%.2f", r.Confidence),
			r.Model,
			r.TotalTokens,
			r.InsertedAt.Local().Format(time.DateTime),
		}
		if withPayload {
			payload := r.Payload
			if !r.Success {
				payload = r.Error
			}
			row = append(row, payload)
		}
		t.AppendRow(row)
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 10, WidthMax: 60},
	})
	t.AppendFooter(table.Row{fmt.Sprintf("%d result(s)", len(records))})
	t.Render()
}
