// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the trialscout engine.
// Covers the condition registry entry (ConditionTag), the per-request
// SearchQuery, the normalized record envelope with its publication, trial,
// and expert variants, and the AggregatedResult returned to callers.
//
// All values are built per request and not mutated after construction.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// SourceKind identifies one of the external data providers.
type SourceKind string

const (
	SourcePublication SourceKind = "publication"
	SourceTrial       SourceKind = "trial"
	SourceExpert      SourceKind = "expert"
)

// AllSources lists every known source kind in canonical order.
var AllSources = []SourceKind{SourcePublication, SourceTrial, SourceExpert}

// Valid reports whether k names a known source.
func (k SourceKind) Valid() bool {
	switch k {
	case SourcePublication, SourceTrial, SourceExpert:
		return true
	}
	return false
}

// ParseSourceKind accepts the canonical names plus the provider aliases
// ("pubmed", "trials", "clinicaltrials", "orcid", "experts").
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "publication", "publications", "pubmed":
		return SourcePublication, nil
	case "trial", "trials", "clinicaltrials":
		return SourceTrial, nil
	case "expert", "experts", "orcid":
		return SourceExpert, nil
	}
	return "", &ConfigurationError{Reason: fmt.Sprintf("unknown source %q", s)}
}

// ConditionTag is a canonical condition name plus the lowercase trigger
// phrases used to detect it in free text.
type ConditionTag struct {
	Name     string   `json:"name" yaml:"name"`
	Triggers []string `json:"triggers" yaml:"triggers"`
}

// Location is an optional city/country pair. Empty fields mean "unset".
type Location struct {
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
}

// IsZero reports whether neither city nor country is set.
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.City) == "" && strings.TrimSpace(l.Country) == ""
}

// String joins the set fields with ", ".
func (l Location) String() string {
	var parts []string
	if c := strings.TrimSpace(l.City); c != "" {
		parts = append(parts, c)
	}
	if c := strings.TrimSpace(l.Country); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

// Matches reports whether l lies within query. Each field of l that is set
// must contain the corresponding query field, case-insensitively; unset
// fields on either side never exclude.
func (l Location) Matches(query Location) bool {
	return fieldContains(l.City, query.City) && fieldContains(l.Country, query.Country)
}

func fieldContains(value, want string) bool {
	value = strings.TrimSpace(value)
	want = strings.TrimSpace(want)
	if value == "" || want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(want))
}

// SearchQuery holds the normalized parameters for one aggregate call.
type SearchQuery struct {
	// Terms is the (usually expanded) term set, in first-seen order.
	Terms []string `json:"terms" yaml:"terms"`

	// Location is nil when the caller gave no location.
	Location *Location `json:"location,omitempty" yaml:"location,omitempty"`

	// Global disables location filtering entirely.
	Global bool `json:"global" yaml:"global"`

	// MaxResults caps the merged record count.
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// IsEmpty reports whether the query carries no usable terms.
func (q SearchQuery) IsEmpty() bool {
	for _, t := range q.Terms {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

// Key returns a stable string identifying the query, used for logging and
// for comparing coalesced requests.
func (q SearchQuery) Key() string {
	terms := append([]string(nil), q.Terms...)
	sort.Strings(terms)
	loc := ""
	if q.Location != nil {
		loc = strings.ToLower(q.Location.String())
	}
	return fmt.Sprintf("%s|%s|%t|%d", strings.Join(terms, ","), loc, q.Global, q.MaxResults)
}

// TrialStatus is the normalized recruitment status of a trial.
type TrialStatus string

const (
	StatusRecruiting    TrialStatus = "recruiting"
	StatusActive        TrialStatus = "active"
	StatusCompleted     TrialStatus = "completed"
	StatusNotRecruiting TrialStatus = "not_recruiting"
	StatusUnknown       TrialStatus = "unknown"
)

// TrialPhase is the normalized phase of a trial.
type TrialPhase string

const (
	PhaseI            TrialPhase = "I"
	PhaseII           TrialPhase = "II"
	PhaseIII          TrialPhase = "III"
	PhaseIV           TrialPhase = "IV"
	PhaseNotSpecified TrialPhase = "not_specified"
)

// Record is the common envelope shared by every normalized result. Exactly
// one of Publication, Trial, or Expert is non-nil and matches Kind.
type Record struct {
	// ID is globally unique and provider-prefixed ("pmid-123", "NCT01234567",
	// "orcid-0000-0001-2345-6789").
	ID string `json:"id" yaml:"id"`

	Kind SourceKind `json:"kind" yaml:"kind"`

	// Title is the article or study title, or the expert's name.
	Title string `json:"title" yaml:"title"`

	// MatchedConditions lists the query terms found in the record.
	MatchedConditions []string `json:"matched_conditions,omitempty" yaml:"matched_conditions,omitempty"`

	Publication *PublicationRecord `json:"publication,omitempty" yaml:"publication,omitempty"`
	Trial       *TrialRecord       `json:"trial,omitempty" yaml:"trial,omitempty"`
	Expert      *ExpertRecord      `json:"expert,omitempty" yaml:"expert,omitempty"`
}

// Place returns the record's location, if its variant carries one.
func (r Record) Place() Location {
	switch {
	case r.Trial != nil:
		return Location{City: r.Trial.City, Country: r.Trial.Country}
	case r.Expert != nil:
		return Location{City: r.Expert.City, Country: r.Expert.Country}
	}
	return Location{}
}

// PublicationRecord holds article metadata from the publications provider.
type PublicationRecord struct {
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Authors  []string `json:"authors" yaml:"authors"`
	Journal  string   `json:"journal" yaml:"journal"`
	Abstract *string  `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// TrialRecord holds study metadata from the trials provider.
type TrialRecord struct {
	Status      TrialStatus `json:"status" yaml:"status"`
	Phase       TrialPhase  `json:"phase" yaml:"phase"`
	Conditions  []string    `json:"conditions" yaml:"conditions"`
	City        string      `json:"city,omitempty" yaml:"city,omitempty"`
	Country     string      `json:"country,omitempty" yaml:"country,omitempty"`
	Sponsor     *string     `json:"sponsor,omitempty" yaml:"sponsor,omitempty"`
	Description *string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// ExpertRecord holds researcher metadata from the experts provider.
type ExpertRecord struct {
	ExternalID       *string  `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	Specialty        string   `json:"specialty" yaml:"specialty"`
	Conditions       []string `json:"conditions" yaml:"conditions"`
	City             string   `json:"city,omitempty" yaml:"city,omitempty"`
	Country          string   `json:"country,omitempty" yaml:"country,omitempty"`
	Affiliation      *string  `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	PublicationCount *int     `json:"publication_count,omitempty" yaml:"publication_count,omitempty"`
	ProfileURL       *string  `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`

	// Email is set only when the provider marks the address public.
	Email *string `json:"email,omitempty" yaml:"email,omitempty"`
}

// AggregatedResult is the merged outcome of one aggregate call.
type AggregatedResult struct {
	Records []Record `json:"records"`

	// SourceErrors has one entry per requested source; a nil value means the
	// source succeeded.
	SourceErrors map[SourceKind]error `json:"-"`

	// Partial is true iff at least one SourceErrors value is non-nil.
	Partial bool `json:"partial"`
}

// ErrorStrings returns the non-nil source errors keyed by source name,
// suitable for JSON or YAML output.
func (r AggregatedResult) ErrorStrings() map[string]string {
	out := make(map[string]string)
	for k, err := range r.SourceErrors {
		if err != nil {
			out[string(k)] = err.Error()
		}
	}
	return out
}

// ConfigurationError reports an invalid request: an unknown source, or a
// query with no terms and no narrative. It is the only error class that
// aborts a search.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// StringPtr returns a pointer to s, or nil if s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
