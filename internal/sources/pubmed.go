// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/trialscout/internal/httputil"
	"github.com/pdiddy/trialscout/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities root.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const (
	pubmedMaxIDs        = 100
	unknownJournal      = "Unknown journal"
	untitledPublication = "Untitled publication"
	publicationIDPrefix = "pmid-"
)

// PublicationsAdapter queries PubMed: an esearch call for relevance-ordered
// PMIDs followed by one batched esummary call for their metadata.
type PublicationsAdapter struct {
	httpSource
	baseURL string
	apiKey  string
	email   string
}

// NewPublicationsAdapter builds the PubMed adapter.
func NewPublicationsAdapter(client *http.Client, cfg types.SourceConfig, userAgent string) *PublicationsAdapter {
	return &PublicationsAdapter{
		httpSource: httpSource{
			kind:      types.SourcePublication,
			client:    client,
			policy:    httputil.Policy{Limiter: httputil.NewLimiter(cfg.RatePerSecond, cfg.Burst), MaxRetries: cfg.MaxRetries},
			userAgent: userAgent,
		},
		baseURL: baseOr(cfg.BaseURL, pubmedAPIBase),
		apiKey:  cfg.APIKey,
		email:   cfg.Email,
	}
}

// Kind returns the source kind.
func (a *PublicationsAdapter) Kind() types.SourceKind { return types.SourcePublication }

// Fetch searches PubMed and returns publication records in provider
// relevance order. A search with no hits returns an empty list, not an
// error.
func (a *PublicationsAdapter) Fetch(ctx context.Context, req Request) (records []types.Record, err error) {
	defer recoverMalformed(a.kind, &records, &err)

	term := orJoin(req.Terms)
	if term == "" {
		return nil, nil
	}

	ids, err := a.search(ctx, term, req.limit(pubmedMaxIDs))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	summaries, err := a.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		sum, ok := summaries[id]
		if !ok {
			continue
		}
		records = append(records, toPublicationRecord(id, sum, req.Terms))
	}
	return records, nil
}

func (a *PublicationsAdapter) params(extra url.Values) url.Values {
	extra.Set("db", "pubmed")
	extra.Set("retmode", "json")
	if a.apiKey != "" {
		extra.Set("api_key", a.apiKey)
	}
	if a.email != "" {
		extra.Set("email", a.email)
		extra.Set("tool", "trialscout")
	}
	return extra
}

func (a *PublicationsAdapter) search(ctx context.Context, term string, retmax int) ([]string, error) {
	params := a.params(url.Values{
		"term":   {term},
		"retmax": {strconv.Itoa(retmax)},
		"sort":   {"relevance"},
	})

	var sr esearchResponse
	if err := a.getJSON(ctx, a.baseURL+"/esearch.fcgi?"+params.Encode(), &sr); err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range sr.Result.IDList {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (a *PublicationsAdapter) summaries(ctx context.Context, ids []string) (map[string]esummaryDoc, error) {
	params := a.params(url.Values{"id": {strings.Join(ids, ",")}})

	var raw esummaryResponse
	if err := a.getJSON(ctx, a.baseURL+"/esummary.fcgi?"+params.Encode(), &raw); err != nil {
		return nil, err
	}

	docs := make(map[string]esummaryDoc, len(ids))
	for _, id := range ids {
		msg, ok := raw.Result[id]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(msg, &doc); err != nil {
			return nil, &MalformedResponseError{Source: a.kind, Err: fmt.Errorf("summary for %s: %w", id, err)}
		}
		// NCBI reports per-ID lookup failures inside the entry.
		if doc.Error != "" {
			continue
		}
		docs[id] = doc
	}
	return docs, nil
}

func toPublicationRecord(id string, doc esummaryDoc, terms []string) types.Record {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = untitledPublication
	}

	journal := strings.TrimSpace(doc.FullJournalName)
	if journal == "" {
		journal = strings.TrimSpace(doc.Source)
	}
	if journal == "" {
		journal = unknownJournal
	}

	authors := []string{}
	for _, au := range doc.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			authors = append(authors, name)
		}
	}

	return types.Record{
		ID:                publicationIDPrefix + id,
		Kind:              types.SourcePublication,
		Title:             title,
		MatchedConditions: matchTerms(terms, title, journal),
		Publication: &types.PublicationRecord{
			Year:    parseYear(doc.PubDate),
			Authors: authors,
			Journal: journal,
		},
	}
}

// parseYear reads the leading four-digit year from a PubMed date such as
// "2023 Mar 15" or "2021". Unparseable dates yield 0.
func parseYear(pubdate string) int {
	s := strings.TrimSpace(pubdate)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return y
}

// E-utilities JSON structures.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse keeps entries raw: "result" mixes a "uids" array with
// one object per PMID.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	UID             string           `json:"uid"`
	Title           string           `json:"title"`
	PubDate         string           `json:"pubdate"`
	Source          string           `json:"source"`
	FullJournalName string           `json:"fulljournalname"`
	Authors         []esummaryAuthor `json:"authors"`
	Error           string           `json:"error"`
}

type esummaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}
