// Package app assembles the statement pipeline from its parts. The server and
// the CLI share it so both tokenize identically.
package app

import (
	"fmt"
	"log/slog"

	"stmtguard/internal/anonymizer"
	"stmtguard/internal/anonymizer/flatten"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/correlation"
	"stmtguard/internal/dedupe/metrics"
	"stmtguard/internal/dedupe/ports"
	"stmtguard/internal/dedupe/service"
	"stmtguard/internal/provider"
)

// Options carries everything optional; zero values are usable.
type Options struct {
	Logger *slog.Logger
	// PathSpecFile extends the built-in catalog with YAML specs.
	PathSpecFile      string
	DisableCombined   bool
	Metrics           *metrics.Metrics
	Publisher         ports.EventPublisher
	MaxFlattenRecords int
}

type Components struct {
	Catalog    *pathspec.Catalog
	Flattener  *flatten.Flattener
	Extractor  *provider.Extractor
	Anonymizer *anonymizer.Anonymizer
	Engine     *correlation.Engine
	Service    *service.Service
}

// LoadCatalog returns the built-in catalog, extended from path when set.
func LoadCatalog(path string) (*pathspec.Catalog, error) {
	catalog := pathspec.Default()
	if path == "" {
		return catalog, nil
	}
	specs, err := pathspec.LoadFile(path)
	if err != nil {
		return nil, err
	}
	extended, err := catalog.With(specs...)
	if err != nil {
		return nil, fmt.Errorf("extend path spec catalog: %w", err)
	}
	return extended, nil
}

// New wires the pipeline over one index.
func New(index ports.Index, opts Options) (*Components, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	catalog, err := LoadCatalog(opts.PathSpecFile)
	if err != nil {
		return nil, err
	}

	flatOpts := []flatten.Option{flatten.WithLogger(logger)}
	if opts.MaxFlattenRecords != 0 {
		flatOpts = append(flatOpts, flatten.WithMaxRecords(opts.MaxFlattenRecords))
	}
	flattener, err := flatten.New(flatten.NewPathMapCache(), flatOpts...)
	if err != nil {
		return nil, err
	}
	extractor, err := provider.New(flattener, provider.WithLogger(logger), provider.WithCatalog(catalog))
	if err != nil {
		return nil, err
	}
	anon, err := anonymizer.New(flattener,
		anonymizer.WithLogger(logger),
		anonymizer.WithCatalog(catalog),
		anonymizer.WithCombinedTokens(!opts.DisableCombined),
	)
	if err != nil {
		return nil, err
	}
	engine, err := correlation.New(index, index, correlation.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	svcOpts := []service.Option{service.WithLogger(logger), service.WithMetrics(opts.Metrics)}
	if opts.Publisher != nil {
		svcOpts = append(svcOpts, service.WithPublisher(opts.Publisher))
	}
	svc, err := service.New(extractor, anon, engine, index, svcOpts...)
	if err != nil {
		return nil, err
	}

	return &Components{
		Catalog:    catalog,
		Flattener:  flattener,
		Extractor:  extractor,
		Anonymizer: anon,
		Engine:     engine,
		Service:    svc,
	}, nil
}
