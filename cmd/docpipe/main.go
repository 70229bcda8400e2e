// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/dispatch"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docpipe",
		Usage: "Classify, recognize and extract fields from document images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"DOCPIPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			classifyCommand(),
			processCommand(),
			serveCommand(),
			resultsCommand(),
			reextractCommand(),
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := c.String("log-level")
	if levelStr == "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		levelStr = cfg.Log.Level
	}

	level, err := config.ParseLevel(levelStr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// storeFlags are shared by commands that open the result store.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (defaults to store.path)",
		},
	}
}

// aiFlags override the ai section of the config file.
func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ocr-host",
			Usage: "OCR service host URL",
		},
		&cli.StringFlag{
			Name:  "ocr-model",
			Usage: "Vision model used for OCR",
		},
		&cli.StringFlag{
			Name:  "extraction-host",
			Usage: "Extraction service host URL (defaults to ocr-host when only that is given)",
		},
		&cli.StringFlag{
			Name:  "extraction-model",
			Usage: "Chat model used for field extraction",
		},
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if v := c.String("db"); v != "" {
		cfg.Store.Path = v
	}
	if v := c.String("ocr-host"); v != "" {
		cfg.AI.OCRHost = v
		if !c.IsSet("extraction-host") {
			cfg.AI.ExtractionHost = v
		}
	}
	if v := c.String("extraction-host"); v != "" {
		cfg.AI.ExtractionHost = v
	}
	if v := c.String("ocr-model"); v != "" {
		cfg.AI.OCRModel = v
	}
	if v := c.String("extraction-model"); v != "" {
		cfg.AI.ExtractionModel = v
	}
	if c.IsSet("concurrency") {
		cfg.Dispatch.MaxConcurrency = c.Int("concurrency")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openEngine builds an engine from cfg.
func openEngine(cfg *config.Config, opts ...docpipe.EngineOption) (*docpipe.Engine, error) {
	retry := dispatch.WithRetry(cfg.Dispatch.MaxRetries, cfg.Dispatch.RetryDelay)
	opts = append([]docpipe.EngineOption{
		docpipe.WithAIConfig(cfg.AIConfig()),
		docpipe.WithDispatchOptions(
			dispatch.WithMaxConcurrency(cfg.Dispatch.MaxConcurrency),
			retry,
			dispatch.WithBackoff(cfg.Dispatch.Backoff),
		),
	}, opts...)

	engine, err := docpipe.Open(cfg.Store.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}
