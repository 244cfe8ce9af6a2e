// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render formats aggregated results for people and tools: a
// fixed-width table, JSON, and CSL-YAML for the publication records.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/trialscout/pkg/types"
)

// Document is the serialized form of one search, shared by the CLI's JSON
// output and the HTTP API.
type Document struct {
	Conditions   []string          `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Terms        []string          `json:"terms,omitempty" yaml:"terms,omitempty"`
	Records      []types.Record    `json:"records" yaml:"records"`
	Partial      bool              `json:"partial" yaml:"partial"`
	SourceErrors map[string]string `json:"source_errors,omitempty" yaml:"source_errors,omitempty"`
}

// NewDocument builds a Document. conditions and terms may be nil.
func NewDocument(res types.AggregatedResult, conditions, terms []string) Document {
	records := res.Records
	if records == nil {
		records = []types.Record{}
	}
	doc := Document{
		Conditions: conditions,
		Terms:      terms,
		Records:    records,
		Partial:    res.Partial,
	}
	if errs := res.ErrorStrings(); len(errs) > 0 {
		doc.SourceErrors = errs
	}
	return doc
}

// FormatTable writes records as a human-readable table to w, followed by a
// summary line and any per-source failures.
func FormatTable(res types.AggregatedResult, w io.Writer) {
	if len(res.Records) == 0 {
		if res.Partial {
			fmt.Fprintln(w, "Results unavailable, try again.")
		} else {
			fmt.Fprintln(w, "No results found.")
		}
		writeSourceErrors(res, w)
		return
	}

	fmt.Fprintf(w, "%-4s  %-11s  %-56s  %-24s  %s\n",
		"Rank", "Kind", "Title", "Detail", "Location")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, r := range res.Records {
		fmt.Fprintf(w, "%-4d  %-11s  %-56s  %-24s  %s\n",
			i+1, r.Kind, truncate(r.Title, 56), truncate(detail(r), 24), r.Place().String())
	}

	fmt.Fprintf(w, "\n%d results", len(res.Records))
	if res.Partial {
		fmt.Fprint(w, " (partial)")
	}
	fmt.Fprintln(w)
	writeSourceErrors(res, w)
}

// FormatJSON writes the document as indented JSON to w.
func FormatJSON(doc Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// detail summarizes the variant-specific fields in one short cell.
func detail(r types.Record) string {
	switch {
	case r.Publication != nil:
		p := r.Publication
		parts := []string{formatAuthors(p.Authors)}
		if p.Year > 0 {
			parts = append(parts, fmt.Sprintf("%d", p.Year))
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	case r.Trial != nil:
		return fmt.Sprintf("%s, phase %s", r.Trial.Status, r.Trial.Phase)
	case r.Expert != nil:
		if r.Expert.Affiliation != nil {
			return *r.Expert.Affiliation
		}
		return r.Expert.Specialty
	}
	return ""
}

func writeSourceErrors(res types.AggregatedResult, w io.Writer) {
	errs := res.ErrorStrings()
	if len(errs) == 0 {
		return
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "warning: source %s failed: %s\n", name, errs[name])
	}
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 18)
	default:
		return truncate(authors[0], 12) + " et al."
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
