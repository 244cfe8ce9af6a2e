// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialscout/internal/coalesce"
	"github.com/pdiddy/trialscout/internal/profile"
	"github.com/pdiddy/trialscout/pkg/types"
)

type fakeAggregator struct {
	mu      sync.Mutex
	calls   atomic.Int32
	queries []types.SearchQuery
	kinds   [][]types.SourceKind
	delay   time.Duration
}

func (f *fakeAggregator) Aggregate(ctx context.Context, q types.SearchQuery, kinds []types.SourceKind) (types.AggregatedResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.AggregatedResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.kinds = append(f.kinds, kinds)
	f.mu.Unlock()
	return types.AggregatedResult{
		Records:      []types.Record{{ID: "pmid-1", Kind: types.SourcePublication, Title: q.Terms[0]}},
		SourceErrors: map[types.SourceKind]error{types.SourcePublication: nil},
	}, nil
}

func (f *fakeAggregator) last() types.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type fakeProfiles map[string]types.Profile

func (f fakeProfiles) Get(_ context.Context, id string) (types.Profile, error) {
	p, ok := f[id]
	if !ok {
		return types.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

type fakeCorrector struct {
	out string
	err error
}

func (c fakeCorrector) Correct(context.Context, string) (string, error) { return c.out, c.err }

func TestSearchFromNarrative(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg)

	resp, err := e.Search(context.Background(), Request{Text: "I have Brain Cancer and recently diagnosed with Glioblastoma"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Brain Cancer", "Glioma"}, resp.Conditions)
	assert.Subset(t, resp.Query.Terms, []string{"Brain Cancer", "Glioma"})
	assert.Len(t, resp.Result.Records, 1)
	assert.Equal(t, resp.Query, agg.last())
}

func TestSearchTextWithoutKnownConditionIsSearchedAsIs(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg)

	resp, err := e.Search(context.Background(), Request{Text: "  rare mitochondrial disorder "})
	require.NoError(t, err)
	assert.Equal(t, []string{"rare mitochondrial disorder"}, resp.Conditions)
}

func TestSearchTermsAreExpanded(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg)

	resp, err := e.Search(context.Background(), Request{
		Terms:      []string{"diabetes", " "},
		Location:   &types.Location{City: "Boston"},
		MaxResults: 7,
		Sources:    []types.SourceKind{types.SourceTrial},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"diabetes"}, resp.Conditions)
	assert.Subset(t, resp.Query.Terms, []string{"diabetes", "diabetes mellitus", "diabetic", "hyperglycemia", "insulin resistance"})
	assert.Equal(t, 7, resp.Query.MaxResults)
	require.NotNil(t, resp.Query.Location)
	assert.Equal(t, "Boston", resp.Query.Location.City)
	assert.Equal(t, []types.SourceKind{types.SourceTrial}, agg.kinds[0])
}

func TestFreeTextTakesPrecedence(t *testing.T) {
	e := New(&fakeAggregator{}, WithProfiles(fakeProfiles{"alice": {CallerID: "alice", Conditions: []string{"Asthma"}}}))

	_, terms, err := e.BuildQuery(context.Background(), Request{CallerID: "alice", Text: "my migraine is worse", Terms: []string{"copd"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Migraine"}, terms)

	_, terms, err = e.BuildQuery(context.Background(), Request{CallerID: "alice", Terms: []string{"copd"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"copd"}, terms)
}

func TestProfileFallback(t *testing.T) {
	profiles := fakeProfiles{"alice": {
		CallerID:   "alice",
		Conditions: []string{"Asthma", "COPD"},
		Location:   &types.Location{City: "Leeds", Country: "UK"},
	}}
	e := New(&fakeAggregator{}, WithProfiles(profiles))

	q, terms, err := e.BuildQuery(context.Background(), Request{CallerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Asthma", "COPD"}, terms)
	require.NotNil(t, q.Location)
	assert.Equal(t, "Leeds", q.Location.City)

	q, _, err = e.BuildQuery(context.Background(), Request{CallerID: "alice", Location: &types.Location{City: "York"}})
	require.NoError(t, err)
	assert.Equal(t, "York", q.Location.City, "an explicit location overrides the stored one")
}

func TestEmptyRequestIsConfigurationError(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg, WithProfiles(fakeProfiles{}))

	for _, req := range []Request{
		{},
		{Text: "   ", Terms: []string{""}},
		{CallerID: "ghost"},
	} {
		_, err := e.Search(context.Background(), req)
		var ce *types.ConfigurationError
		assert.ErrorAs(t, err, &ce)
	}
	assert.Equal(t, int32(0), agg.calls.Load())
}

func TestCorrector(t *testing.T) {
	e := New(&fakeAggregator{}, WithCorrector(fakeCorrector{out: "parkinson's disease"}))
	_, terms, err := e.BuildQuery(context.Background(), Request{Text: "parkinsns desease"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Parkinson's Disease"}, terms)

	e = New(&fakeAggregator{}, WithCorrector(fakeCorrector{err: errors.New("offline")}))
	_, terms, err = e.BuildQuery(context.Background(), Request{Text: "asthma attacks"})
	require.NoError(t, err, "corrector failures fall back to the original text")
	assert.Equal(t, []string{"Asthma"}, terms)
}

func TestSearchCoalescesPerCaller(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg, WithCoalescing(50*time.Millisecond))

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i, text := range []string{"asth", "asthma", "asthma and copd"} {
		i, text := i, text // per-iteration copy (Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Search(context.Background(), Request{CallerID: "alice", Text: text})
		}()
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), agg.calls.Load())
	assert.ErrorIs(t, errs[0], coalesce.ErrSuperseded)
	assert.ErrorIs(t, errs[1], coalesce.ErrSuperseded)
	assert.NoError(t, errs[2])
	assert.Subset(t, agg.last().Terms, []string{"Asthma", "COPD"})
}

func TestSearchRepeatWhileExecutingJoinsRun(t *testing.T) {
	agg := &fakeAggregator{delay: 100 * time.Millisecond}
	e := New(agg, WithCoalescing(20*time.Millisecond))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		i := i // per-iteration copy (Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Search(context.Background(), Request{CallerID: "alice", Terms: []string{"diabetes"}})
		}()
		time.Sleep(60 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), agg.calls.Load())
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestSearchDistinctQueryWhileExecutingRestarts(t *testing.T) {
	agg := &fakeAggregator{delay: 100 * time.Millisecond}
	e := New(agg, WithCoalescing(20*time.Millisecond))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, term := range []string{"diabetes", "asthma"} {
		i, term := i, term // per-iteration copy (Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Search(context.Background(), Request{CallerID: "alice", Terms: []string{term}})
		}()
		time.Sleep(60 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(2), agg.calls.Load())
	assert.ErrorIs(t, errs[0], coalesce.ErrSuperseded)
	assert.NoError(t, errs[1])
}

func TestSearchWithoutCallerIsNotCoalesced(t *testing.T) {
	agg := &fakeAggregator{}
	e := New(agg, WithCoalescing(time.Second))

	start := time.Now()
	_, err := e.Search(context.Background(), Request{Terms: []string{"asthma"}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(1), agg.calls.Load())
}
