// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a query out to the source adapters concurrently,
// merges and deduplicates their records, and applies location filtering.
// A failing or slow source degrades the result to partial; it never fails
// the call.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trialscout/internal/sources"
	"github.com/pdiddy/trialscout/pkg/types"
)

const (
	defaultSourceTimeout = 10 * time.Second
	defaultMaxResults    = 20
)

// Orchestrator owns the registered adapters and the per-source policy.
type Orchestrator struct {
	adapters map[types.SourceKind]sources.Adapter
	timeouts map[types.SourceKind]time.Duration
	breakers map[types.SourceKind]*breaker
	brkCfg   *types.BreakerConfig
	defaults []types.SourceKind
	timeout  time.Duration
	max      int
	metrics  *Metrics
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the default per-source deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSourceTimeout overrides the deadline for one source.
func WithSourceTimeout(kind types.SourceKind, d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeouts[kind] = d
		}
	}
}

// WithDefaultMaxResults sets the cap used when a query gives none.
func WithDefaultMaxResults(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.max = n
		}
	}
}

// WithBreaker guards every source with a circuit breaker.
func WithBreaker(cfg types.BreakerConfig) Option {
	return func(o *Orchestrator) { o.brkCfg = &cfg }
}

// WithMetrics records per-source outcomes.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New registers adapters in the given order; that order is also the
// default source set. Registering two adapters of one kind is an error.
func New(adapters []sources.Adapter, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		adapters: make(map[types.SourceKind]sources.Adapter, len(adapters)),
		timeouts: make(map[types.SourceKind]time.Duration),
		breakers: make(map[types.SourceKind]*breaker),
		timeout:  defaultSourceTimeout,
		max:      defaultMaxResults,
		logger:   zerolog.Nop(),
	}
	for _, a := range adapters {
		kind := a.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("adapter has unknown source kind %q", kind)
		}
		if _, dup := o.adapters[kind]; dup {
			return nil, fmt.Errorf("duplicate adapter for source %q", kind)
		}
		o.adapters[kind] = a
		o.defaults = append(o.defaults, kind)
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.brkCfg != nil {
		for kind := range o.adapters {
			o.breakers[kind] = newBreaker(kind, *o.brkCfg, o.logger)
		}
	}
	return o, nil
}

// Sources returns the registered source kinds in registration order.
func (o *Orchestrator) Sources() []types.SourceKind {
	return append([]types.SourceKind(nil), o.defaults...)
}

// sourceResult is what one adapter task hands back to the merge step.
type sourceResult struct {
	kind    types.SourceKind
	records []types.Record
	err     error
	elapsed time.Duration
}

// Aggregate queries the requested sources (all registered sources when
// kinds is empty) and returns the merged result. Only a configuration
// problem returns an error; source failures are reported in the result.
func (o *Orchestrator) Aggregate(ctx context.Context, q types.SearchQuery, kinds []types.SourceKind) (types.AggregatedResult, error) {
	selected, err := o.resolve(kinds)
	if err != nil {
		return types.AggregatedResult{}, err
	}
	if q.IsEmpty() {
		return types.AggregatedResult{}, &types.ConfigurationError{Reason: "query has no search terms"}
	}

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = o.max
	}
	req := sources.Request{Terms: q.Terms, MaxResults: maxResults}
	if q.Location != nil && !q.Global {
		req.Location = q.Location.String()
		req.Near = q.Location
	}

	ch := make(chan sourceResult, len(selected))
	for _, kind := range selected {
		kind := kind // per-iteration copy (Go 1.22 loop semantics)
		go func() {
			ch <- o.run(ctx, kind, req)
		}()
	}

	// Arrival order is kept for the merge.
	arrived := make([]sourceResult, 0, len(selected))
	for range selected {
		arrived = append(arrived, <-ch)
	}

	res := types.AggregatedResult{SourceErrors: make(map[types.SourceKind]error, len(selected))}
	lists := make([][]types.Record, 0, len(arrived))
	for _, sr := range arrived {
		res.SourceErrors[sr.kind] = sr.err
		if sr.err != nil {
			res.Partial = true
			o.logger.Warn().Str("source", string(sr.kind)).Err(sr.err).Dur("duration", sr.elapsed).Msg("source failed")
			continue
		}
		o.logger.Debug().Str("source", string(sr.kind)).Int("records", len(sr.records)).Dur("duration", sr.elapsed).Msg("source completed")
		lists = append(lists, sr.records)
	}

	merged, removed := dedupe(interleave(lists))
	if removed > 0 {
		o.logger.Debug().Int("duplicates", removed).Msg("duplicates removed")
	}
	merged = Filter(merged, q.Location, q.Global)
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	res.Records = merged
	return res, nil
}

// resolve validates the requested kinds against the registered adapters.
func (o *Orchestrator) resolve(kinds []types.SourceKind) ([]types.SourceKind, error) {
	if len(o.adapters) == 0 {
		return nil, &types.ConfigurationError{Reason: "no source adapters registered"}
	}
	if len(kinds) == 0 {
		return o.Sources(), nil
	}
	seen := make(map[types.SourceKind]bool, len(kinds))
	var out []types.SourceKind
	for _, k := range kinds {
		if _, ok := o.adapters[k]; !ok {
			return nil, &types.ConfigurationError{Reason: fmt.Sprintf("unknown source %q", k)}
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// run executes one adapter under its own deadline. It returns by the
// deadline even if the adapter ignores its context.
func (o *Orchestrator) run(parent context.Context, kind types.SourceKind, req sources.Request) sourceResult {
	timeout := o.timeout
	if d, ok := o.timeouts[kind]; ok {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	adapter := o.adapters[kind]
	fetch := func() ([]types.Record, error) { return adapter.Fetch(ctx, req) }
	call := fetch
	if b := o.breakers[kind]; b != nil {
		call = func() ([]types.Record, error) { return b.execute(fetch) }
	}

	done := make(chan sourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sourceResult{kind: kind, err: &sources.MalformedResponseError{Source: kind, Err: fmt.Errorf("adapter panic: %v", r)}}
			}
		}()
		records, err := call()
		done <- sourceResult{kind: kind, records: records, err: err}
	}()

	var sr sourceResult
	select {
	case sr = <-done:
	case <-ctx.Done():
		sr = sourceResult{kind: kind, err: &sources.TransportError{Source: kind, Err: ctx.Err()}}
	}
	sr.elapsed = time.Since(start)
	if sr.err != nil {
		sr.records = nil
		sr.err = classify(kind, sr.err)
	}
	o.metrics.observe(kind, sr.err, sr.elapsed, len(sr.records))
	return sr
}

// classify wraps bare errors so every recorded failure belongs to the
// transport or malformed-response class.
func classify(kind types.SourceKind, err error) error {
	if sources.IsTransport(err) || sources.IsMalformed(err) {
		return err
	}
	return &sources.TransportError{Source: kind, Err: err}
}

// interleave merges per-source lists round-robin: the first record of each
// list in arrival order, then the second of each, and so on. Relative order
// within a source is preserved.
func interleave(lists [][]types.Record) []types.Record {
	total := 0
	longest := 0
	for _, l := range lists {
		total += len(l)
		longest = max(longest, len(l))
	}
	out := make([]types.Record, 0, total)
	for i := 0; i < longest; i++ {
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
			}
		}
	}
	return out
}

// dedupe drops records whose ID was already seen; the first occurrence
// wins. Records with a blank ID are kept as-is.
func dedupe(records []types.Record) ([]types.Record, int) {
	seen := make(map[string]bool, len(records))
	out := make([]types.Record, 0, len(records))
	removed := 0
	for _, r := range records {
		key := strings.TrimSpace(r.ID)
		if key != "" {
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
		}
		out = append(out, r)
	}
	return out, removed
}
