// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the search entry point. It turns a caller request
// (free text, explicit terms, or the caller's stored profile) into an
// expanded SearchQuery, coalesces rapid repeats from the same caller, and
// runs the aggregate fan-out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trialscout/internal/coalesce"
	"github.com/pdiddy/trialscout/internal/conditions"
	"github.com/pdiddy/trialscout/internal/profile"
	"github.com/pdiddy/trialscout/pkg/types"
)

// Aggregator runs one fan-out across the selected sources.
type Aggregator interface {
	Aggregate(ctx context.Context, q types.SearchQuery, kinds []types.SourceKind) (types.AggregatedResult, error)
}

// Profiles reads stored caller profiles.
type Profiles interface {
	Get(ctx context.Context, callerID string) (types.Profile, error)
}

// Corrector rewrites free text before condition extraction, for example
// to fix spelling. It is optional.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// Request is one call to Search.
type Request struct {
	// CallerID identifies the logical caller. Requests with a caller id are
	// coalesced and may fall back to the caller's stored profile.
	CallerID string

	// Text is a free-text narrative. It takes precedence over Terms.
	Text string

	Terms      []string
	Location   *types.Location
	Global     bool
	MaxResults int

	// Sources restricts the fan-out; empty means every registered source.
	Sources []types.SourceKind
}

// Response is the outcome of Search.
type Response struct {
	// Conditions are the terms the query was built from, before synonym
	// expansion.
	Conditions []string `json:"conditions"`

	Query  types.SearchQuery      `json:"query"`
	Result types.AggregatedResult `json:"result"`
}

type job struct {
	query   types.SearchQuery
	sources []types.SourceKind
}

// key identifies equivalent jobs; an equal job joins a running one.
func (j job) key() string {
	kinds := make([]string, len(j.sources))
	for i, k := range j.sources {
		kinds[i] = string(k)
	}
	return j.query.Key() + "|" + strings.Join(kinds, ",")
}

// Engine wires query construction to an Aggregator.
type Engine struct {
	agg       Aggregator
	profiles  Profiles
	corrector Corrector
	coalescer *coalesce.Coalescer[job, types.AggregatedResult]
	quiet     time.Duration
	logger    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProfiles enables the stored-profile fallback.
func WithProfiles(p Profiles) Option {
	return func(e *Engine) { e.profiles = p }
}

// WithCorrector sets the free-text corrector.
func WithCorrector(c Corrector) Option {
	return func(e *Engine) { e.corrector = c }
}

// WithCoalescing coalesces requests per caller using the given quiet period.
func WithCoalescing(quiet time.Duration) Option {
	return func(e *Engine) {
		if quiet <= 0 {
			quiet = coalesce.DefaultQuietPeriod
		}
		e.quiet = quiet
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over agg.
func New(agg Aggregator, opts ...Option) *Engine {
	e := &Engine{agg: agg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.quiet > 0 {
		e.coalescer = coalesce.New[job, types.AggregatedResult](e.run, e.quiet, e.logger.With().Str("component", "coalesce").Logger(),
			coalesce.WithIdentity[job, types.AggregatedResult](job.key))
	}
	return e
}

// Search builds the query for req and runs it. Only a ConfigurationError,
// a superseded request (coalesce.ErrSuperseded), or ctx ending return an
// error; source failures are reported inside the result.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	q, terms, err := e.BuildQuery(ctx, req)
	if err != nil {
		return Response{}, err
	}

	j := job{query: q, sources: req.Sources}
	var res types.AggregatedResult
	if e.coalescer != nil && req.CallerID != "" {
		res, err = e.coalescer.Submit(ctx, req.CallerID, j)
	} else {
		res, err = e.run(ctx, j)
	}
	if err != nil {
		return Response{}, err
	}

	e.logger.Info().
		Str("caller", req.CallerID).
		Str("query", q.Key()).
		Int("records", len(res.Records)).
		Bool("partial", res.Partial).
		Msg("search completed")
	return Response{Conditions: terms, Query: q, Result: res}, nil
}

func (e *Engine) run(ctx context.Context, j job) (types.AggregatedResult, error) {
	return e.agg.Aggregate(ctx, j.query, j.sources)
}

// BuildQuery resolves the request's terms and returns the expanded query
// along with the unexpanded terms. Precedence: free text, then explicit
// terms, then the caller's stored profile.
func (e *Engine) BuildQuery(ctx context.Context, req Request) (types.SearchQuery, []string, error) {
	loc := req.Location
	if loc != nil && loc.IsZero() {
		loc = nil
	}

	var terms []string
	switch text := strings.TrimSpace(req.Text); {
	case text != "":
		terms = e.termsFromText(ctx, text)
	case len(cleanTerms(req.Terms)) > 0:
		terms = cleanTerms(req.Terms)
	default:
		p, err := e.storedProfile(ctx, req.CallerID)
		if err != nil {
			return types.SearchQuery{}, nil, err
		}
		terms = cleanTerms(p.Conditions)
		if loc == nil && p.Location != nil && !p.Location.IsZero() {
			stored := *p.Location
			loc = &stored
		}
	}
	if len(terms) == 0 {
		return types.SearchQuery{}, nil, &types.ConfigurationError{Reason: "no search terms, narrative, or stored conditions"}
	}

	q := types.SearchQuery{
		Terms:      conditions.Expand(terms),
		Location:   loc,
		Global:     req.Global,
		MaxResults: req.MaxResults,
	}
	return q, terms, nil
}

// termsFromText extracts condition tags from text; text naming no known
// condition is searched as-is.
func (e *Engine) termsFromText(ctx context.Context, text string) []string {
	if e.corrector != nil {
		corrected, err := e.corrector.Correct(ctx, text)
		switch {
		case err != nil:
			e.logger.Warn().Err(err).Msg("text correction failed, using original")
		case strings.TrimSpace(corrected) != "":
			text = strings.TrimSpace(corrected)
		}
	}
	if tags := conditions.Extract(text); len(tags) > 0 {
		return conditions.Names(tags)
	}
	return []string{text}
}

func (e *Engine) storedProfile(ctx context.Context, callerID string) (types.Profile, error) {
	if e.profiles == nil || callerID == "" {
		return types.Profile{}, &types.ConfigurationError{Reason: "no search terms or narrative"}
	}
	p, err := e.profiles.Get(ctx, callerID)
	if errors.Is(err, profile.ErrNotFound) {
		return types.Profile{}, &types.ConfigurationError{Reason: fmt.Sprintf("no search terms and no stored profile for %q", callerID)}
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

func cleanTerms(in []string) []string {
	var out []string
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
