// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources adapts the external providers (PubMed, ClinicalTrials.gov,
// ORCID) to the normalized record model. Each adapter issues its
// provider-specific requests and maps the response defensively: missing
// nested fields become defaults, never failures.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/trialscout/internal/httputil"
	"github.com/pdiddy/trialscout/pkg/types"
)

// Adapter fetches normalized records from one provider. Implementations
// honour ctx cancellation and deadlines, and return every failure as an
// error value together with a nil record list.
type Adapter interface {
	Kind() types.SourceKind
	Fetch(ctx context.Context, req Request) ([]types.Record, error)
}

// Request holds the per-call adapter parameters.
type Request struct {
	Terms []string

	// Location is the provider-side location query; Near is the same
	// location in structured form, used to pick the matching site of a
	// multi-site record. Both are empty in global mode.
	Location string
	Near     *types.Location

	MaxResults int
}

const defaultMaxResults = 20

func (r Request) limit(ceiling int) int {
	n := r.MaxResults
	if n <= 0 {
		n = defaultMaxResults
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}

// TransportError reports a network, timeout, or HTTP status failure
// reaching a provider.
type TransportError struct {
	Source types.SourceKind
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a provider response that does not match
// the expected shape.
type MalformedResponseError struct {
	Source types.SourceKind
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s malformed response: %v", e.Source, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is, or wraps, a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// httpSource carries the plumbing shared by the adapters.
type httpSource struct {
	kind      types.SourceKind
	client    *http.Client
	policy    httputil.Policy
	userAgent string
}

// getJSON issues a GET and decodes the JSON body into v. Failures are
// classified as TransportError or MalformedResponseError.
func (s httpSource) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &TransportError{Source: s.kind, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.Do(ctx, client, req, s.policy)
	if err != nil {
		return &TransportError{Source: s.kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &TransportError{Source: s.kind, Err: fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		// A body cut short by cancellation is a transport failure.
		if ctx.Err() != nil {
			return &TransportError{Source: s.kind, Err: ctx.Err()}
		}
		return &MalformedResponseError{Source: s.kind, Err: err}
	}
	return nil
}

// recoverMalformed converts a panic during response mapping into a
// MalformedResponseError so nothing escapes the adapter boundary.
func recoverMalformed(kind types.SourceKind, records *[]types.Record, err *error) {
	if r := recover(); r != nil {
		*records = nil
		*err = &MalformedResponseError{Source: kind, Err: fmt.Errorf("panic while mapping response: %v", r)}
	}
}

// orJoin builds a boolean OR query, quoting multi-word terms.
func orJoin(terms []string) string {
	var parts []string
	for _, t := range cleanTerms(terms) {
		if strings.ContainsAny(t, " \t") {
			t = `"` + t + `"`
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " OR ")
}

// cleanTerms trims terms and drops blanks and case-insensitive duplicates.
func cleanTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// matchTerms returns the query terms occurring in any of texts, compared
// case-insensitively, in query order.
func matchTerms(terms []string, texts ...string) []string {
	haystack := strings.ToLower(strings.Join(texts, "\n"))
	var matched []string
	for _, t := range cleanTerms(terms) {
		if strings.Contains(haystack, strings.ToLower(t)) {
			matched = append(matched, t)
		}
	}
	return matched
}

// baseOr returns override when set, otherwise def, without a trailing slash.
func baseOr(override, def string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return strings.TrimRight(def, "/")
}

// withContact appends a mailto contact to the User-Agent when one is known.
func withContact(userAgent, email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return userAgent
	}
	if userAgent == "" {
		return "mailto:" + email
	}
	return userAgent + " (mailto:" + email + ")"
}
