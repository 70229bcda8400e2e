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

// Package docpipe wires the document pipeline together: signature
// classification, bounded OCR dispatch, field extraction and result storage.
package docpipe

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/clock"
	"github.com/poiesic/docpipe/dispatch"
	"github.com/poiesic/docpipe/mime"
	"github.com/poiesic/docpipe/orchestrator"
	"github.com/poiesic/docpipe/reextract"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
)

type Engine struct {
	repo       storage.ResultRepository
	provider   ai.Provider
	classifier *mime.Classifier
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	base       *slog.Logger
	logger     *slog.Logger
	closed     atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	repo         storage.ResultRepository
	inMemory     bool
	trie         *mime.Trie
	dispatchOpts []dispatch.Option
	clock        clock.Clock
	logger       *slog.Logger
}

// WithAIConfig sets the collaborator configuration used to build the
// default OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider supplies the OCR and extraction collaborators directly.
func WithProvider(p ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithRepository supplies the result store. The engine closes it on Close.
func WithRepository(repo storage.ResultRepository) EngineOption {
	return func(o *engineOptions) {
		o.repo = repo
	}
}

// WithInMemoryStore keeps results in memory instead of at the given path.
func WithInMemoryStore() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithTrie replaces the default signature table.
func WithTrie(trie *mime.Trie) EngineOption {
	return func(o *engineOptions) {
		o.trie = trie
	}
}

// WithDispatchOptions configures the OCR dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) EngineOption {
	return func(o *engineOptions) {
		o.dispatchOpts = append(o.dispatchOpts, opts...)
	}
}

func WithClock(clk clock.Clock) EngineOption {
	return func(o *engineOptions) {
		o.clock = clk
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open builds an engine that stores results in a BadgerDB database at path.
func Open(path string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	clk := clock.OrReal(options.clock)

	trie := options.trie
	if trie == nil {
		var err error
		if trie, err = mime.NewDefaultTrie(); err != nil {
			return nil, err
		}
	}
	classifier, err := mime.NewClassifier(trie, options.logger)
	if err != nil {
		return nil, err
	}

	repo := options.repo
	if repo == nil {
		if options.inMemory {
			repo, err = badger.NewMemoryRepository()
		} else {
			repo, err = badger.NewRepository(path)
		}
		if err != nil {
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	dispatchOpts := append([]dispatch.Option{
		dispatch.WithClock(clk),
		dispatch.WithLogger(options.logger),
	}, options.dispatchOpts...)
	dispatcher, err := dispatch.New(provider.OCR(), dispatchOpts...)
	if err != nil {
		provider.Close()
		repo.Close()
		return nil, err
	}

	return &Engine{
		repo:       repo,
		provider:   provider,
		classifier: classifier,
		dispatcher: dispatcher,
		clock:      clk,
		base:       options.logger,
		logger:     options.logger.With("component", "engine"),
	}, nil
}

// Close stops the dispatcher and releases the provider and store.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := e.dispatcher.Close(); err != nil {
		e.logger.Error("error closing dispatcher", "err", err)
		errs = append(errs, err)
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Error("error closing result repository", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) Repository() storage.ResultRepository {
	return e.repo
}

func (e *Engine) Classifier() *mime.Classifier {
	return e.classifier
}

func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// NewOrchestrator creates an orchestrator that runs requests through the engine.
func (e *Engine) NewOrchestrator(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	opts = append([]orchestrator.Option{
		orchestrator.WithClock(e.clock),
		orchestrator.WithLogger(e.base),
	}, opts...)
	return orchestrator.New(e.Handler(), opts...)
}

// NewReextractor creates a Reextractor that feeds stored OCR text back
// through the engine's extractor.
func (e *Engine) NewReextractor(cfg *reextract.Config, progress io.Writer) *reextract.Reextractor {
	return reextract.New(e.repo, e.provider.Extractor(), cfg, progress,
		reextract.WithClock(e.clock),
		reextract.WithLogger(e.base),
	)
}
