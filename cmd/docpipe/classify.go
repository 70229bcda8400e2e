package main

import (
	"fmt"
	"os"

	"github.com/poiesic/docpipe/mime"
	"github.com/urfave/cli/v2"
)

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Detect the MIME type of files from their leading bytes",
		ArgsUsage: "FILE...",
		Action:    classifyAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "data-uri",
				Usage: "Print the data URI instead of the label",
			},
		},
	}
}

func classifyAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	trie, err := mime.NewDefaultTrie()
	if err != nil {
		return err
	}
	classifier, err := mime.NewClassifier(trie, nil)
	if err != nil {
		return err
	}

	out := c.App.Writer
	failed := 0
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if c.Bool("data-uri") {
			uri, err := classifier.Process(c.Context, data)
			if err != nil {
				failed++
				fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintln(out, uri)
			continue
		}

		label, err := classifier.Detect(data)
		if err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", path, label)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) not recognized", failed), 1)
	}
	return nil
}
