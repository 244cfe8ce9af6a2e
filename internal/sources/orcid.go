// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/trialscout/internal/httputil"
	"github.com/pdiddy/trialscout/pkg/types"
)

// orcidAPIBase is the ORCID public API root.
var orcidAPIBase = "https://pub.orcid.org/v3.0"

// orcidProfileBase prefixes the human-facing profile URL.
var orcidProfileBase = "https://orcid.org/"

// mapExpert converts one ORCID record. Tests replace it.
var mapExpert = toExpertRecord

const (
	orcidMaxRows          = 200
	defaultDetailWorkers  = 5
	genericSpecialty      = "Researcher"
	specialtyKeywordCount = 3
	expertIDPrefix        = "orcid-"
	orcidVisibilityPublic = "public"
)

// ExpertsAdapter queries ORCID: one search for researcher identifiers, then
// one record fetch per identifier through a bounded worker pool. A failed
// detail fetch drops that candidate only.
type ExpertsAdapter struct {
	httpSource
	baseURL string
	workers int
	logger  zerolog.Logger
}

// NewExpertsAdapter builds the ORCID adapter. workers caps simultaneous
// detail fetches (default 5).
func NewExpertsAdapter(client *http.Client, cfg types.SourceConfig, userAgent string, workers int, logger zerolog.Logger) *ExpertsAdapter {
	if workers <= 0 {
		workers = defaultDetailWorkers
	}
	return &ExpertsAdapter{
		httpSource: httpSource{
			kind:      types.SourceExpert,
			client:    client,
			policy:    httputil.Policy{Limiter: httputil.NewLimiter(cfg.RatePerSecond, cfg.Burst), MaxRetries: cfg.MaxRetries},
			userAgent: withContact(userAgent, cfg.Email),
		},
		baseURL: baseOr(cfg.BaseURL, orcidAPIBase),
		workers: workers,
		logger:  logger.With().Str("source", string(types.SourceExpert)).Logger(),
	}
}

// Kind returns the source kind.
func (a *ExpertsAdapter) Kind() types.SourceKind { return types.SourceExpert }

// Fetch returns expert records in search order.
func (a *ExpertsAdapter) Fetch(ctx context.Context, req Request) (records []types.Record, err error) {
	defer recoverMalformed(a.kind, &records, &err)

	q := orJoin(req.Terms)
	if q == "" {
		return nil, nil
	}

	ids, err := a.search(ctx, q, req.limit(orcidMaxRows))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Each worker writes only its own slot; order follows the search.
	slots := make([]*types.Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, id := range ids {
		i, id := i, id // per-iteration copy (Go 1.22 loop semantics)
		g.Go(func() error {
			// A mapping panic drops this candidate only.
			defer func() {
				if r := recover(); r != nil {
					a.logger.Warn().Str("orcid", id).Interface("panic", r).Msg("expert detail dropped")
				}
			}()
			rec, err := a.detail(gctx, id, req.Terms)
			if err != nil {
				a.logger.Debug().Str("orcid", id).Err(err).Msg("expert detail skipped")
				return nil
			}
			slots[i] = &rec
			return nil
		})
	}
	g.Wait()

	// A cancelled or expired call is a transport failure, not an empty result.
	if ctx.Err() != nil {
		return nil, &TransportError{Source: a.kind, Err: ctx.Err()}
	}

	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

func (a *ExpertsAdapter) search(ctx context.Context, q string, rows int) ([]string, error) {
	params := url.Values{
		"q":    {q},
		"rows": {strconv.Itoa(rows)},
	}

	var sr orcidSearchResponse
	if err := a.getJSON(ctx, a.baseURL+"/search/?"+params.Encode(), &sr); err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, r := range sr.Result {
		if r.Identifier == nil {
			continue
		}
		id := strings.TrimSpace(r.Identifier.Path)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) == rows {
			break
		}
	}
	return ids, nil
}

func (a *ExpertsAdapter) detail(ctx context.Context, id string, terms []string) (types.Record, error) {
	var rec orcidRecord
	if err := a.getJSON(ctx, a.baseURL+"/"+url.PathEscape(id)+"/record", &rec); err != nil {
		return types.Record{}, err
	}
	return mapExpert(id, rec, terms), nil
}

func toExpertRecord(id string, rec orcidRecord, terms []string) types.Record {
	var (
		name     string
		keywords []string
		email    *string
		country  string
	)

	if p := rec.Person; p != nil {
		name = personName(p.Name)
		if p.Keywords != nil {
			for _, kw := range p.Keywords.Keyword {
				if c := strings.TrimSpace(kw.Content); c != "" {
					keywords = append(keywords, c)
				}
			}
		}
		if p.Emails != nil {
			for _, e := range p.Emails.Email {
				if strings.EqualFold(e.Visibility, orcidVisibilityPublic) && strings.TrimSpace(e.Email) != "" {
					addr := strings.TrimSpace(e.Email)
					email = &addr
					break
				}
			}
		}
		if p.Addresses != nil && len(p.Addresses.Address) > 0 && p.Addresses.Address[0].Country != nil {
			country = strings.TrimSpace(p.Addresses.Address[0].Country.Value)
		}
	}
	if name == "" {
		name = "ORCID " + id
	}

	specialty := genericSpecialty
	if len(keywords) > 0 {
		n := min(len(keywords), specialtyKeywordCount)
		specialty = strings.Join(keywords[:n], ", ")
	}

	ex := &types.ExpertRecord{
		ExternalID: types.StringPtr(id),
		Specialty:  specialty,
		Conditions: matchTerms(terms, keywords...),
		Country:    country,
		ProfileURL: types.StringPtr(orcidProfileBase + id),
		Email:      email,
	}
	if ex.Conditions == nil {
		ex.Conditions = []string{}
	}

	var affiliation string
	if act := rec.Activities; act != nil {
		if org := firstEmployer(act.Employments); org != nil {
			affiliation = strings.TrimSpace(org.Name)
			if org.Address != nil {
				ex.City = strings.TrimSpace(org.Address.City)
				if c := strings.TrimSpace(org.Address.Country); c != "" {
					ex.Country = c
				}
			}
		}
		if act.Works != nil {
			count := len(act.Works.Group)
			ex.PublicationCount = &count
		}
	}
	ex.Affiliation = types.StringPtr(affiliation)

	texts := append([]string{specialty, affiliation}, keywords...)
	return types.Record{
		ID:                expertIDPrefix + id,
		Kind:              types.SourceExpert,
		Title:             name,
		MatchedConditions: matchTerms(terms, texts...),
		Expert:            ex,
	}
}

// personName prefers the credit name, then "given family".
func personName(n *orcidName) string {
	if n == nil {
		return ""
	}
	if n.CreditName != nil {
		if v := strings.TrimSpace(n.CreditName.Value); v != "" {
			return v
		}
	}
	var parts []string
	if n.GivenNames != nil {
		if v := strings.TrimSpace(n.GivenNames.Value); v != "" {
			parts = append(parts, v)
		}
	}
	if n.FamilyName != nil {
		if v := strings.TrimSpace(n.FamilyName.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func firstEmployer(emp *orcidAffiliations) *orcidOrganization {
	if emp == nil {
		return nil
	}
	for _, g := range emp.Groups {
		for _, s := range g.Summaries {
			if s.Employment != nil && s.Employment.Organization != nil {
				return s.Employment.Organization
			}
		}
	}
	return nil
}

// ORCID v3.0 JSON structures.
type orcidSearchResponse struct {
	NumFound int                 `json:"num-found"`
	Result   []orcidSearchResult `json:"result"`
}

type orcidSearchResult struct {
	Identifier *orcidIdentifier `json:"orcid-identifier"`
}

type orcidIdentifier struct {
	URI  string `json:"uri"`
	Path string `json:"path"`
}

type orcidRecord struct {
	Person     *orcidPerson     `json:"person"`
	Activities *orcidActivities `json:"activities-summary"`
}

type orcidPerson struct {
	Name      *orcidName      `json:"name"`
	Keywords  *orcidKeywords  `json:"keywords"`
	Emails    *orcidEmails    `json:"emails"`
	Addresses *orcidAddresses `json:"addresses"`
}

type orcidValue struct {
	Value string `json:"value"`
}

type orcidName struct {
	GivenNames *orcidValue `json:"given-names"`
	FamilyName *orcidValue `json:"family-name"`
	CreditName *orcidValue `json:"credit-name"`
}

type orcidKeywords struct {
	Keyword []struct {
		Content string `json:"content"`
	} `json:"keyword"`
}

type orcidEmails struct {
	Email []struct {
		Email      string `json:"email"`
		Visibility string `json:"visibility"`
	} `json:"email"`
}

type orcidAddresses struct {
	Address []struct {
		Country *orcidValue `json:"country"`
	} `json:"address"`
}

type orcidActivities struct {
	Employments *orcidAffiliations `json:"employments"`
	Works       *orcidWorks        `json:"works"`
}

type orcidAffiliations struct {
	Groups []struct {
		Summaries []struct {
			Employment *struct {
				DepartmentName string             `json:"department-name"`
				Organization   *orcidOrganization `json:"organization"`
			} `json:"employment-summary"`
		} `json:"summaries"`
	} `json:"affiliation-group"`
}

type orcidOrganization struct {
	Name    string `json:"name"`
	Address *struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"address"`
}

type orcidWorks struct {
	Group []struct{} `json:"group"`
}
