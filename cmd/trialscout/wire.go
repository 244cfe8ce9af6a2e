// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pdiddy/trialscout/internal/aggregate"
	"github.com/pdiddy/trialscout/internal/engine"
	"github.com/pdiddy/trialscout/internal/profile"
	"github.com/pdiddy/trialscout/internal/sources"
	"github.com/pdiddy/trialscout/pkg/types"
)

// app holds the wired components for one command run.
type app struct {
	cfg          types.Config
	orchestrator *aggregate.Orchestrator
	engine       *engine.Engine
	profiles     *profile.Store
	registry     *prometheus.Registry
}

// Close releases the profile store.
func (a *app) Close() error {
	if a.profiles != nil {
		return a.profiles.Close()
	}
	return nil
}

// buildAdapters returns the enabled provider adapters in canonical order.
func buildAdapters(cfg types.SearchConfig) []sources.Adapter {
	client := &http.Client{Timeout: cfg.Timeout}
	var adapters []sources.Adapter
	if !cfg.Sources.PubMed.Disabled {
		adapters = append(adapters, sources.NewPublicationsAdapter(client, cfg.Sources.PubMed, cfg.UserAgent))
	}
	if !cfg.Sources.Trials.Disabled {
		adapters = append(adapters, sources.NewTrialsAdapter(client, cfg.Sources.Trials, cfg.UserAgent))
	}
	if !cfg.Sources.ORCID.Disabled {
		adapters = append(adapters, sources.NewExpertsAdapter(client, cfg.Sources.ORCID, cfg.UserAgent,
			cfg.ExpertDetailConcurrency, logger))
	}
	return adapters
}

// newApp wires adapters, orchestrator, profile store and engine from cfg.
// coalesced enables per-caller coalescing when the config allows it.
func newApp(cfg types.Config, coalesced bool) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := aggregate.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	opts := []aggregate.Option{
		aggregate.WithTimeout(cfg.Search.SourceTimeout),
		aggregate.WithDefaultMaxResults(cfg.Search.MaxResults),
		aggregate.WithBreaker(cfg.Search.Breaker),
		aggregate.WithMetrics(metrics),
		aggregate.WithLogger(logger),
	}
	for _, kind := range types.AllSources {
		opts = append(opts, aggregate.WithSourceTimeout(kind, cfg.Search.TimeoutFor(kind)))
	}
	orch, err := aggregate.New(buildAdapters(cfg.Search), opts...)
	if err != nil {
		return nil, err
	}

	store, err := profile.NewStore(cfg.Profile)
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{
		engine.WithProfiles(store),
		engine.WithLogger(logger),
	}
	if coalesced && cfg.Coalesce.Enabled {
		engOpts = append(engOpts, engine.WithCoalescing(cfg.Coalesce.QuietPeriod))
	}

	return &app{
		cfg:          cfg,
		orchestrator: orch,
		engine:       engine.New(orch, engOpts...),
		profiles:     store,
		registry:     reg,
	}, nil
}
