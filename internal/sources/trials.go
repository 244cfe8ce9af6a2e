// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/trialscout/internal/httputil"
	"github.com/pdiddy/trialscout/pkg/types"
)

// trialsAPIBase is the ClinicalTrials.gov v2 API root.
var trialsAPIBase = "https://clinicaltrials.gov/api/v2"

const (
	trialsMaxPageSize = 1000
	untitledStudy     = "Untitled study"
)

// TrialsAdapter queries ClinicalTrials.gov with one paged studies request
// filtered by condition and, optionally, location.
type TrialsAdapter struct {
	httpSource
	baseURL string
}

// NewTrialsAdapter builds the ClinicalTrials.gov adapter.
func NewTrialsAdapter(client *http.Client, cfg types.SourceConfig, userAgent string) *TrialsAdapter {
	return &TrialsAdapter{
		httpSource: httpSource{
			kind:      types.SourceTrial,
			client:    client,
			policy:    httputil.Policy{Limiter: httputil.NewLimiter(cfg.RatePerSecond, cfg.Burst), MaxRetries: cfg.MaxRetries},
			userAgent: userAgent,
		},
		baseURL: baseOr(cfg.BaseURL, trialsAPIBase),
	}
}

// Kind returns the source kind.
func (a *TrialsAdapter) Kind() types.SourceKind { return types.SourceTrial }

// Fetch returns trial records in provider order. Studies without an NCT
// identifier cannot be deduplicated and are skipped; every other missing
// field falls back to a default.
func (a *TrialsAdapter) Fetch(ctx context.Context, req Request) (records []types.Record, err error) {
	defer recoverMalformed(a.kind, &records, &err)

	terms := cleanTerms(req.Terms)
	if len(terms) == 0 {
		return nil, nil
	}

	params := url.Values{
		"query.cond": {strings.Join(terms, ",")},
		"pageSize":   {strconv.Itoa(req.limit(trialsMaxPageSize))},
		"format":     {"json"},
	}
	if loc := strings.TrimSpace(req.Location); loc != "" {
		params.Set("query.locn", loc)
	}

	var sr studiesResponse
	if err := a.getJSON(ctx, a.baseURL+"/studies?"+params.Encode(), &sr); err != nil {
		return nil, err
	}

	for _, st := range sr.Studies {
		rec, ok := toTrialRecord(st, req.Terms, req.Near)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func toTrialRecord(st study, terms []string, near *types.Location) (types.Record, bool) {
	ps := st.Protocol
	if ps == nil || ps.Identification == nil || strings.TrimSpace(ps.Identification.NCTID) == "" {
		return types.Record{}, false
	}
	ident := ps.Identification

	title := strings.TrimSpace(ident.BriefTitle)
	if title == "" {
		title = strings.TrimSpace(ident.OfficialTitle)
	}
	if title == "" {
		title = untitledStudy
	}

	tr := &types.TrialRecord{
		Status:     StatusFromProvider(""),
		Phase:      PhaseFromProvider(nil),
		Conditions: []string{},
	}
	if ps.Status != nil {
		tr.Status = StatusFromProvider(ps.Status.OverallStatus)
	}
	if ps.Design != nil {
		tr.Phase = PhaseFromProvider(ps.Design.Phases)
	}
	if ps.Conditions != nil {
		for _, c := range ps.Conditions.Conditions {
			if c = strings.TrimSpace(c); c != "" {
				tr.Conditions = append(tr.Conditions, c)
			}
		}
	}
	if ps.ContactsLocations != nil && len(ps.ContactsLocations.Locations) > 0 {
		site := pickSite(ps.ContactsLocations.Locations, near)
		tr.City = strings.TrimSpace(site.City)
		tr.Country = strings.TrimSpace(site.Country)
	}
	if ps.Description != nil {
		tr.Description = types.StringPtr(strings.TrimSpace(ps.Description.BriefSummary))
	}
	if ps.Sponsors != nil && ps.Sponsors.LeadSponsor != nil {
		tr.Sponsor = types.StringPtr(strings.TrimSpace(ps.Sponsors.LeadSponsor.Name))
	}

	texts := append([]string{title}, tr.Conditions...)
	return types.Record{
		ID:                strings.TrimSpace(ident.NCTID),
		Kind:              types.SourceTrial,
		Title:             title,
		MatchedConditions: matchTerms(terms, texts...),
		Trial:             tr,
	}, true
}

// pickSite returns the first located site matching near, or the first site
// when near is unset or no site matches.
func pickSite(sites []studyLocation, near *types.Location) studyLocation {
	if near != nil && !near.IsZero() {
		for _, s := range sites {
			loc := types.Location{City: s.City, Country: s.Country}
			if !loc.IsZero() && loc.Matches(*near) {
				return s
			}
		}
	}
	return sites[0]
}

// StatusFromProvider maps the provider's status vocabulary by substring.
// "not" is checked before "recruit", so "Active, not recruiting" and
// "NOT_YET_RECRUITING" are NotRecruiting.
func StatusFromProvider(s string) types.TrialStatus {
	v := strings.ToLower(s)
	switch {
	case strings.Contains(v, "not"):
		return types.StatusNotRecruiting
	case strings.Contains(v, "recruit"):
		return types.StatusRecruiting
	case strings.Contains(v, "active"):
		return types.StatusActive
	case strings.Contains(v, "complet"):
		return types.StatusCompleted
	}
	return types.StatusUnknown
}

// PhaseFromProvider maps phase strings ("PHASE2", "Phase 1/Phase 2",
// "EARLY_PHASE1") to the highest phase digit present.
func PhaseFromProvider(phases []string) types.TrialPhase {
	v := strings.Join(phases, " ")
	switch {
	case strings.Contains(v, "4"):
		return types.PhaseIV
	case strings.Contains(v, "3"):
		return types.PhaseIII
	case strings.Contains(v, "2"):
		return types.PhaseII
	case strings.Contains(v, "1"):
		return types.PhaseI
	}
	return types.PhaseNotSpecified
}

// ClinicalTrials.gov v2 JSON structures. Every module is a pointer so a
// missing object decodes to nil.
type studiesResponse struct {
	Studies       []study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

type study struct {
	Protocol *protocolSection `json:"protocolSection"`
}

type protocolSection struct {
	Identification    *identificationModule    `json:"identificationModule"`
	Status            *statusModule            `json:"statusModule"`
	Design            *designModule            `json:"designModule"`
	Conditions        *conditionsModule        `json:"conditionsModule"`
	ContactsLocations *contactsLocationsModule `json:"contactsLocationsModule"`
	Description       *descriptionModule       `json:"descriptionModule"`
	Sponsors          *sponsorModule           `json:"sponsorCollaboratorsModule"`
}

type identificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

type statusModule struct {
	OverallStatus string `json:"overallStatus"`
}

type designModule struct {
	Phases []string `json:"phases"`
}

type conditionsModule struct {
	Conditions []string `json:"conditions"`
}

type contactsLocationsModule struct {
	Locations []studyLocation `json:"locations"`
}

type studyLocation struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

type descriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

type sponsorModule struct {
	LeadSponsor *leadSponsor `json:"leadSponsor"`
}

type leadSponsor struct {
	Name string `json:"name"`
}
